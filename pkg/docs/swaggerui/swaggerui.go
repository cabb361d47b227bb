package swaggerui

import (
	_ "embed"
	"net/http"
	"strings"

	"github.com/theroutercompany/apidocs/internal/uitemplate"
)

//go:embed index.html
var indexTemplate []byte

// UI serves the Swagger UI index page.
type UI struct {
	page    uitemplate.Page
	options Options
}

// New renders the index page for opts. Zero-valued fields fall back to
// DefaultOptions; a config without URLs points at "v1/swagger.json".
func New(opts Options) (*UI, error) {
	opts = withDefaults(opts)

	config, err := uitemplate.JSON(opts.ConfigObject)
	if err != nil {
		return nil, err
	}
	oauth, err := uitemplate.JSON(opts.OAuthConfigObject)
	if err != nil {
		return nil, err
	}
	interceptors, err := uitemplate.JSON(opts.Interceptors)
	if err != nil {
		return nil, err
	}

	body := uitemplate.Render(indexTemplate, uitemplate.Values{
		"DocumentTitle":     uitemplate.Text(opts.DocumentTitle),
		"HeadContent":       opts.HeadContent,
		"StylesPath":        uitemplate.Text(opts.StylesPath),
		"ScriptBundlePath":  uitemplate.Text(opts.ScriptBundlePath),
		"ScriptPresetsPath": uitemplate.Text(opts.ScriptPresetsPath),
		"ConfigObject":      config,
		"OAuthConfigObject": oauth,
		"Interceptors":      interceptors,
	})

	return &UI{
		page:    uitemplate.Page{Prefix: opts.RoutePrefix, Body: body},
		options: opts,
	}, nil
}

// Options returns the effective options after defaults were applied.
func (u *UI) Options() Options {
	return u.options
}

// Index returns the rendered index document.
func (u *UI) Index() []byte {
	return append([]byte(nil), u.page.Body...)
}

// Middleware serves the UI under its route prefix and passes other requests
// to next.
func (u *UI) Middleware(next http.Handler) http.Handler {
	return u.page.Middleware(next)
}

// ServeHTTP serves the UI and answers 404 for anything else.
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

func withDefaults(opts Options) Options {
	defaults := DefaultOptions()

	opts.RoutePrefix = uitemplate.NormalizePrefix(opts.RoutePrefix)
	if strings.TrimSpace(opts.DocumentTitle) == "" {
		opts.DocumentTitle = defaults.DocumentTitle
	}
	base := strings.TrimRight(strings.TrimSpace(opts.AssetsBaseURL), "/")
	if base == "" {
		base = defaults.AssetsBaseURL
	}
	opts.AssetsBaseURL = base
	if opts.StylesPath == "" {
		opts.StylesPath = base + "/swagger-ui.css"
	}
	if opts.ScriptBundlePath == "" {
		opts.ScriptBundlePath = base + "/swagger-ui-bundle.js"
	}
	if opts.ScriptPresetsPath == "" {
		opts.ScriptPresetsPath = base + "/swagger-ui-standalone-preset.js"
	}

	cfg := &opts.ConfigObject
	if len(cfg.URLs) == 0 {
		cfg.URLs = []URLDescriptor{{URL: "v1/swagger.json", Name: "v1"}}
	}
	if cfg.DefaultModelRendering == "" {
		cfg.DefaultModelRendering = defaults.ConfigObject.DefaultModelRendering
	}
	if cfg.DocExpansion == "" {
		cfg.DocExpansion = defaults.ConfigObject.DocExpansion
	}
	if cfg.SupportedSubmitMethods == nil {
		cfg.SupportedSubmitMethods = AllSubmitMethods()
	}
	if opts.OAuthConfigObject.ScopeSeparator == "" {
		opts.OAuthConfigObject.ScopeSeparator = defaults.OAuthConfigObject.ScopeSeparator
	}
	return opts
}
