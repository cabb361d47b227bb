// Package redoc serves a ReDoc page for a single OpenAPI document.
package redoc

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/theroutercompany/apidocs/internal/uitemplate"
)

const (
	defaultRoutePrefix   = "api-docs"
	defaultDocumentTitle = "API Docs"
	defaultSpecURL       = "../swagger/v1/swagger.json"
	defaultScriptURL     = "https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"
)

//go:embed index.html
var indexTemplate []byte

// ConfigObject is passed to Redoc.init. See the ReDoc documentation for the
// meaning of each option; AdditionalItems covers the rest.
type ConfigObject struct {
	DisableSearch           bool   `json:"disableSearch" yaml:"disableSearch"`
	ExpandResponses         string `json:"expandResponses" yaml:"expandResponses"`
	HideDownloadButton      bool   `json:"hideDownloadButton" yaml:"hideDownloadButton"`
	HideHostname            bool   `json:"hideHostname" yaml:"hideHostname"`
	NativeScrollbars        bool   `json:"nativeScrollbars" yaml:"nativeScrollbars"`
	NoAutoAuth              bool   `json:"noAutoAuth" yaml:"noAutoAuth"`
	PathInMiddlePanel       bool   `json:"pathInMiddlePanel" yaml:"pathInMiddlePanel"`
	RequiredPropsFirst      bool   `json:"requiredPropsFirst" yaml:"requiredPropsFirst"`
	SortPropsAlphabetically bool   `json:"sortPropsAlphabetically" yaml:"sortPropsAlphabetically"`
	UntrustedSpec           bool   `json:"untrustedSpec" yaml:"untrustedSpec"`
	ScrollYOffset           *int   `json:"scrollYOffset,omitempty" yaml:"scrollYOffset"`

	AdditionalItems map[string]any `json:"-" yaml:"additionalItems"`
}

// MarshalJSON flattens AdditionalItems into the object; named fields win.
func (c ConfigObject) MarshalJSON() ([]byte, error) {
	type plain ConfigObject
	raw, err := json.Marshal(plain(c))
	if err != nil || len(c.AdditionalItems) == 0 {
		return raw, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for key, value := range c.AdditionalItems {
		if _, exists := fields[key]; exists {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("additional item %q: %w", key, err)
		}
		fields[key] = encoded
	}
	return json.Marshal(fields)
}

// Options configure the ReDoc page.
type Options struct {
	RoutePrefix   string       `yaml:"routePrefix"`
	DocumentTitle string       `yaml:"documentTitle"`
	HeadContent   string       `yaml:"headContent"`
	SpecURL       string       `yaml:"specUrl"`
	ScriptURL     string       `yaml:"scriptUrl"`
	ConfigObject  ConfigObject `yaml:"configObject"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		RoutePrefix:   defaultRoutePrefix,
		DocumentTitle: defaultDocumentTitle,
		SpecURL:       defaultSpecURL,
		ScriptURL:     defaultScriptURL,
		ConfigObject:  ConfigObject{ExpandResponses: "200,201"},
	}
}

func (o *Options) EnableUntrustedSpec() { o.ConfigObject.UntrustedSpec = true }
func (o *Options) DisableSearch() { o.ConfigObject.DisableSearch = true }
func (o *Options) HideDownloadButton() { o.ConfigObject.HideDownloadButton = true }
func (o *Options) HideHostname() { o.ConfigObject.HideHostname = true }
func (o *Options) NativeScrollbars() { o.ConfigObject.NativeScrollbars = true }
func (o *Options) RequiredPropsFirst() { o.ConfigObject.RequiredPropsFirst = true }
func (o *Options) SortPropsAlphabetically() { o.ConfigObject.SortPropsAlphabetically = true }
func (o *Options) ExpandResponses(codes string) { o.ConfigObject.ExpandResponses = codes }

// ScrollYOffset reserves space for a fixed page header.
func (o *Options) ScrollYOffset(offset int) { o.ConfigObject.ScrollYOffset = &offset }

// InjectStylesheet adds a stylesheet link to the page head.
func (o *Options) InjectStylesheet(path string) {
	o.HeadContent += fmt.Sprintf(`<link href="%s" rel="stylesheet" type="text/css" />`+"\n", uitemplate.Text(path))
}

// UI serves the ReDoc index page.
type UI struct {
	page    uitemplate.Page
	options Options
}

// New renders the index page for opts.
func New(opts Options) (*UI, error) {
	defaults := DefaultOptions()
	opts.RoutePrefix = uitemplate.NormalizePrefix(opts.RoutePrefix)
	if strings.TrimSpace(opts.DocumentTitle) == "" {
		opts.DocumentTitle = defaults.DocumentTitle
	}
	if strings.TrimSpace(opts.SpecURL) == "" {
		opts.SpecURL = defaults.SpecURL
	}
	if strings.TrimSpace(opts.ScriptURL) == "" {
		opts.ScriptURL = defaults.ScriptURL
	}

	specURL, err := uitemplate.JSON(opts.SpecURL)
	if err != nil {
		return nil, err
	}
	config, err := uitemplate.JSON(opts.ConfigObject)
	if err != nil {
		return nil, err
	}

	body := uitemplate.Render(indexTemplate, uitemplate.Values{
		"DocumentTitle": uitemplate.Text(opts.DocumentTitle),
		"HeadContent":   opts.HeadContent,
		"ScriptURL":     uitemplate.Text(opts.ScriptURL),
		"SpecURL":       specURL,
		"ConfigObject":  config,
	})
	return &UI{page: uitemplate.Page{Prefix: opts.RoutePrefix, Body: body}, options: opts}, nil
}

func (u *UI) Options() Options { return u.options }

func (u *UI) Index() []byte { return append([]byte(nil), u.page.Body...) }

// Middleware serves the page under its route prefix; other requests go to next.
func (u *UI) Middleware(next http.Handler) http.Handler {
	return u.page.Middleware(next)
}

func (u *UI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.page.Middleware(nil).ServeHTTP(w, r)
}

// Middleware builds a UI from opts and returns its middleware.
func Middleware(opts Options) (func(http.Handler) http.Handler, error) {
	ui, err := New(opts)
	if err != nil {
		return nil, err
	}
	return ui.Middleware, nil
}
