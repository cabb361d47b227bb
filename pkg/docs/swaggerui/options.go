// Package swaggerui serves Swagger UI for one or more OpenAPI documents.
//
// The UI assets are loaded from a CDN (or any base URL supplied through
// Options.AssetsBaseURL); this package only renders the index page with the
// configured options injected.
package swaggerui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/theroutercompany/apidocs/internal/uitemplate"
)

const (
	defaultRoutePrefix   = "swagger"
	defaultDocumentTitle = "Swagger UI"
	defaultAssetsBaseURL = "https://unpkg.com/swagger-ui-dist@5"
	// DefaultValidatorURL is used by EnableValidator when no URL is given.
	DefaultValidatorURL = "https://validator.swagger.io/validator"
)

// DocExpansion controls the default expansion of operations and tags.
type DocExpansion string

const (
	DocExpansionList DocExpansion = "list"
	DocExpansionFull DocExpansion = "full"
	DocExpansionNone DocExpansion = "none"
)

// ModelRendering controls how schemas are first shown.
type ModelRendering string

const (
	ModelRenderingExample ModelRendering = "example"
	ModelRenderingModel   ModelRendering = "model"
)

// SubmitMethod is an HTTP method that "Try it out" may use.
type SubmitMethod string

const (
	SubmitGet     SubmitMethod = "get"
	SubmitPut     SubmitMethod = "put"
	SubmitPost    SubmitMethod = "post"
	SubmitDelete  SubmitMethod = "delete"
	SubmitOptions SubmitMethod = "options"
	SubmitHead    SubmitMethod = "head"
	SubmitPatch   SubmitMethod = "patch"
	SubmitTrace   SubmitMethod = "trace"
)

// AllSubmitMethods enables "Try it out" for every method.
func AllSubmitMethods() []SubmitMethod {
	return []SubmitMethod{SubmitGet, SubmitPut, SubmitPost, SubmitDelete, SubmitOptions, SubmitHead, SubmitPatch, SubmitTrace}
}

// URLDescriptor names one OpenAPI document shown in the top bar.
type URLDescriptor struct {
	URL  string `json:"url" yaml:"url"`
	Name string `json:"name" yaml:"name"`
}

// ConfigObject is passed verbatim to SwaggerUIBundle.
type ConfigObject struct {
	URLs                     []URLDescriptor `json:"urls,omitempty" yaml:"urls"`
	DeepLinking              bool            `json:"deepLinking" yaml:"deepLinking"`
	PersistAuthorization     bool            `json:"persistAuthorization" yaml:"persistAuthorization"`
	DisplayOperationID       bool            `json:"displayOperationId" yaml:"displayOperationId"`
	DefaultModelsExpandDepth int             `json:"defaultModelsExpandDepth" yaml:"defaultModelsExpandDepth"`
	DefaultModelExpandDepth  int             `json:"defaultModelExpandDepth" yaml:"defaultModelExpandDepth"`
	DefaultModelRendering    ModelRendering  `json:"defaultModelRendering" yaml:"defaultModelRendering"`
	DisplayRequestDuration   bool            `json:"displayRequestDuration" yaml:"displayRequestDuration"`
	DocExpansion             DocExpansion    `json:"docExpansion" yaml:"docExpansion"`
	Filter                   *string         `json:"filter,omitempty" yaml:"filter"`
	MaxDisplayedTags         *int            `json:"maxDisplayedTags,omitempty" yaml:"maxDisplayedTags"`
	ShowExtensions           bool            `json:"showExtensions" yaml:"showExtensions"`
	ShowCommonExtensions     bool            `json:"showCommonExtensions" yaml:"showCommonExtensions"`
	TryItOutEnabled          bool            `json:"tryItOutEnabled" yaml:"tryItOutEnabled"`
	SupportedSubmitMethods   []SubmitMethod  `json:"supportedSubmitMethods" yaml:"supportedSubmitMethods"`
	ValidatorURL             *string         `json:"validatorUrl" yaml:"validatorUrl"`
	OAuth2RedirectURL        string          `json:"oauth2RedirectUrl,omitempty" yaml:"oauth2RedirectUrl"`
	Plugins                  []string        `json:"plugins,omitempty" yaml:"plugins"`

	// AdditionalItems are merged into the top level of the encoded object.
	// Named fields win on key collisions.
	AdditionalItems map[string]any `json:"-" yaml:"additionalItems"`
}

// MarshalJSON flattens AdditionalItems into the object.
func (c ConfigObject) MarshalJSON() ([]byte, error) {
	type plain ConfigObject
	return mergeAdditional(plain(c), c.AdditionalItems)
}

// OAuthConfigObject is passed to ui.initOAuth.
type OAuthConfigObject struct {
	ClientID                                  string            `json:"clientId,omitempty" yaml:"clientId"`
	ClientSecret                              string            `json:"clientSecret,omitempty" yaml:"clientSecret"`
	Realm                                     string            `json:"realm,omitempty" yaml:"realm"`
	AppName                                   string            `json:"appName,omitempty" yaml:"appName"`
	ScopeSeparator                            string            `json:"scopeSeparator" yaml:"scopeSeparator"`
	Scopes                                    []string          `json:"scopes,omitempty" yaml:"scopes"`
	AdditionalQueryStringParams               map[string]string `json:"additionalQueryStringParams,omitempty" yaml:"additionalQueryStringParams"`
	UseBasicAuthenticationWithAccessCodeGrant bool              `json:"useBasicAuthenticationWithAccessCodeGrant" yaml:"useBasicAuthenticationWithAccessCodeGrant"`
	UsePkceWithAuthorizationCodeGrant         bool              `json:"usePkceWithAuthorizationCodeGrant" yaml:"usePkceWithAuthorizationCodeGrant"`
}

// InterceptorFunctions hold JavaScript function source evaluated in the
// browser, for example "(req) => { req.headers['x-a'] = 'b'; return req; }".
type InterceptorFunctions struct {
	RequestInterceptorFunction  string `json:"RequestInterceptorFunction,omitempty" yaml:"requestInterceptorFunction"`
	ResponseInterceptorFunction string `json:"ResponseInterceptorFunction,omitempty" yaml:"responseInterceptorFunction"`
}

// Options configure the Swagger UI page.
type Options struct {
	RoutePrefix       string               `yaml:"routePrefix"`
	DocumentTitle     string               `yaml:"documentTitle"`
	HeadContent       string               `yaml:"headContent"`
	AssetsBaseURL     string               `yaml:"assetsBaseUrl"`
	StylesPath        string               `yaml:"stylesPath"`
	ScriptBundlePath  string               `yaml:"scriptBundlePath"`
	ScriptPresetsPath string               `yaml:"scriptPresetsPath"`
	ConfigObject      ConfigObject         `yaml:"configObject"`
	OAuthConfigObject OAuthConfigObject    `yaml:"oauthConfigObject"`
	Interceptors      InterceptorFunctions `yaml:"interceptors"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		RoutePrefix:   defaultRoutePrefix,
		DocumentTitle: defaultDocumentTitle,
		AssetsBaseURL: defaultAssetsBaseURL,
		ConfigObject: ConfigObject{
			DefaultModelsExpandDepth: 1,
			DefaultModelExpandDepth:  1,
			DefaultModelRendering:    ModelRenderingExample,
			DocExpansion:             DocExpansionList,
			SupportedSubmitMethods:   AllSubmitMethods(),
		},
		OAuthConfigObject: OAuthConfigObject{ScopeSeparator: " "},
	}
}

// SwaggerEndpoint adds a document to the top-bar selector.
func (o *Options) SwaggerEndpoint(url, name string) {
	o.ConfigObject.URLs = append(o.ConfigObject.URLs, URLDescriptor{URL: url, Name: name})
}

// EnableDeepLinking makes tags and operations addressable by URL fragment.
func (o *Options) EnableDeepLinking() { o.ConfigObject.DeepLinking = true }

// EnablePersistAuthorization keeps authorization data across reloads.
func (o *Options) EnablePersistAuthorization() { o.ConfigObject.PersistAuthorization = true }

// DisplayOperationID shows operationId in the operations list.
func (o *Options) DisplayOperationID() { o.ConfigObject.DisplayOperationID = true }

// DisplayRequestDuration shows "Try it out" request durations.
func (o *Options) DisplayRequestDuration() { o.ConfigObject.DisplayRequestDuration = true }

// DefaultModelsExpandDepth sets the models section depth; -1 hides it.
func (o *Options) DefaultModelsExpandDepth(depth int) { o.ConfigObject.DefaultModelsExpandDepth = depth }

// DefaultModelExpandDepth sets the depth of model examples.
func (o *Options) DefaultModelExpandDepth(depth int) { o.ConfigObject.DefaultModelExpandDepth = depth }

// DefaultModelRendering selects example or model view first.
func (o *Options) DefaultModelRendering(r ModelRendering) { o.ConfigObject.DefaultModelRendering = r }

// DocExpansion sets the default expansion of operations.
func (o *Options) DocExpansion(e DocExpansion) { o.ConfigObject.DocExpansion = e }

// EnableFilter shows the tag filter box, optionally pre-filled.
func (o *Options) EnableFilter(expression ...string) {
	value := strings.Join(expression, " ")
	o.ConfigObject.Filter = &value
}

// MaxDisplayedTags limits the number of tagged operations shown.
func (o *Options) MaxDisplayedTags(count int) { o.ConfigObject.MaxDisplayedTags = &count }

// ShowExtensions shows vendor extensions on operations and parameters.
func (o *Options) ShowExtensions() { o.ConfigObject.ShowExtensions = true }

// ShowCommonExtensions shows pattern, maxLength and similar keywords.
func (o *Options) ShowCommonExtensions() { o.ConfigObject.ShowCommonExtensions = true }

// EnableTryItOutByDefault opens "Try it out" on every operation.
func (o *Options) EnableTryItOutByDefault() { o.ConfigObject.TryItOutEnabled = true }

// EnableValidator enables the online validator badge.
func (o *Options) EnableValidator(url ...string) {
	value := DefaultValidatorURL
	if len(url) > 0 && url[0] != "" {
		value = url[0]
	}
	o.ConfigObject.ValidatorURL = &value
}

// SupportedSubmitMethods restricts the methods "Try it out" may use.
func (o *Options) SupportedSubmitMethods(methods ...SubmitMethod) {
	o.ConfigObject.SupportedSubmitMethods = append([]SubmitMethod{}, methods...)
}

// OAuth2RedirectURL overrides the OAuth redirect page.
func (o *Options) OAuth2RedirectURL(url string) { o.ConfigObject.OAuth2RedirectURL = url }

// InjectStylesheet adds a stylesheet link to the page head.
func (o *Options) InjectStylesheet(path string, media ...string) {
	m := "screen"
	if len(media) > 0 && media[0] != "" {
		m = media[0]
	}
	o.HeadContent += fmt.Sprintf(`<link href="%s" rel="stylesheet" media="%s" type="text/css" />`+"\n", uitemplate.Text(path), uitemplate.Text(m))
}

// InjectJavascript adds a script element to the page head.
func (o *Options) InjectJavascript(path string, scriptType ...string) {
	typ := "text/javascript"
	if len(scriptType) > 0 && scriptType[0] != "" {
		typ = scriptType[0]
	}
	o.HeadContent += fmt.Sprintf(`<script src="%s" type="%s"></script>`+"\n", uitemplate.Text(path), uitemplate.Text(typ))
}

// UseRequestInterceptor installs a JavaScript request interceptor.
func (o *Options) UseRequestInterceptor(fn string) { o.Interceptors.RequestInterceptorFunction = fn }

// UseResponseInterceptor installs a JavaScript response interceptor.
func (o *Options) UseResponseInterceptor(fn string) { o.Interceptors.ResponseInterceptorFunction = fn }

// OAuthClientID sets the default OAuth client id.
func (o *Options) OAuthClientID(id string) { o.OAuthConfigObject.ClientID = id }

// OAuthScopes sets the default OAuth scopes.
func (o *Options) OAuthScopes(scopes ...string) { o.OAuthConfigObject.Scopes = scopes }

// OAuthUsePkce enables PKCE for the authorization code flow.
func (o *Options) OAuthUsePkce() { o.OAuthConfigObject.UsePkceWithAuthorizationCodeGrant = true }

func mergeAdditional(v any, additional map[string]any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil || len(additional) == 0 {
		return raw, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for key, value := range additional {
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
