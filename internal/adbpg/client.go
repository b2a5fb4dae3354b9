// Package adbpg is a typed facade over the AnalyticDB for PostgreSQL OpenAPI.
// Tool, model and endpoint parameters (strings, comma lists, JSON-encoded
// arrays) are normalized here into RPC requests, and response bodies are
// returned as [Response] values for path-based access.
//
// Calls are synchronous and never retried at this layer. Transport failures
// are returned as [*RemoteError].
package adbpg

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
)

const (
	// apiVersion is the gpdb OpenAPI version every action targets.
	apiVersion = "2016-05-03"

	// openPlatformEndpoint issues temporary upload grants for local files.
	openPlatformEndpoint = "openplatform.aliyuncs.com"
	openPlatformVersion  = "2019-12-19"
)

// caller is the subset of *openapi.Client the facade uses.
// Tests inject a fake to capture requests and script responses.
type caller interface {
	CallApi(params *openapi.Params, request *openapi.OpenApiRequest, runtime *util.RuntimeOptions) (map[string]interface{}, error)
}

// Client is the API facade. One Client owns one immutable Credentials value.
type Client struct {
	// creds is the connection and tenancy configuration.
	creds *Credentials
	// api issues gpdb RPC calls.
	api caller
	// openPlatform issues AuthorizeFileUpload calls.
	openPlatform caller
	// httpClient posts local files to the granted object storage bucket.
	httpClient *http.Client
	// runtime carries per-call timeouts.
	runtime *util.RuntimeOptions
	// log records every call's outcome.
	log *slog.Logger
	// metrics is optional; nil disables recording.
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for call outcomes.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics enables remote call metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient overrides the client used for object storage uploads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a Client from creds.
func New(creds *Credentials, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, fmt.Errorf("adbpg: credentials must not be nil")
	}

	c := &Client{
		creds:      creds,
		log:        slog.Default(),
		httpClient: &http.Client{Timeout: time.Duration(creds.ReadTimeout) * time.Millisecond},
		runtime: &util.RuntimeOptions{
			ReadTimeout:    tea.Int(creds.ReadTimeout),
			ConnectTimeout: tea.Int(creds.ConnectTimeout),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	api, err := openapi.NewClient(c.openapiConfig(endpoint))
	if err != nil {
		return nil, fmt.Errorf("adbpg: build api client: %w", err)
	}
	c.api = api

	op, err := openapi.NewClient(c.openapiConfig(openPlatformEndpoint))
	if err != nil {
		return nil, fmt.Errorf("adbpg: build open platform client: %w", err)
	}
	c.openPlatform = op

	return c, nil
}

// Credentials returns the client's credentials.
func (c *Client) Credentials() *Credentials { return c.creds }

// openapiConfig builds the SDK config for the given endpoint.
func (c *Client) openapiConfig(endpoint string) *openapi.Config {
	cfg := &openapi.Config{
		AccessKeyId:     tea.String(c.creds.AccessKeyID),
		AccessKeySecret: tea.String(c.creds.AccessKeySecret),
		RegionId:        tea.String(c.creds.RegionID),
		Endpoint:        tea.String(endpoint),
		ReadTimeout:     tea.Int(c.creds.ReadTimeout),
		ConnectTimeout:  tea.Int(c.creds.ConnectTimeout),
		UserAgent:       tea.String(userAgent),
	}
	if c.creds.Protocol != "" {
		cfg.Protocol = tea.String(c.creds.Protocol)
	}
	return cfg
}

// rpcParams describes an RPC-style action with a form-encoded body.
func rpcParams(action, version, bodyType string) *openapi.Params {
	return &openapi.Params{
		Action:      tea.String(action),
		Version:     tea.String(version),
		Protocol:    tea.String("HTTPS"),
		Pathname:    tea.String("/"),
		Method:      tea.String("POST"),
		AuthType:    tea.String("AK"),
		Style:       tea.String("RPC"),
		ReqBodyType: tea.String("formData"),
		BodyType:    tea.String(bodyType),
	}
}

// call issues a gpdb action and decodes its JSON body.
func (c *Client) call(ctx context.Context, action string, f form) (*Response, error) {
	return c.invoke(ctx, c.api, action, apiVersion, f)
}

// invoke issues one RPC and records its outcome.
func (c *Client) invoke(ctx context.Context, api caller, action, version string, f form) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("adbpg: %s: %w", action, err)
	}

	c.log.Debug("adbpg: request",
		slog.String("action", action),
		slog.Group("params", f.logAttrs()...),
	)
	start := time.Now()
	res, err := api.CallApi(rpcParams(action, version, "json"), &openapi.OpenApiRequest{
		Body: map[string]interface{}(f),
	}, c.runtime)
	elapsed := time.Since(start)

	if err != nil {
		rerr := newRemoteError(action, err)
		c.metrics.observe(action, elapsed, rerr)
		c.log.Error("adbpg: call failed",
			slog.String("action", action),
			slog.Duration("duration", elapsed),
			slog.String("code", rerr.Code),
			slog.Any("error", err),
		)
		return nil, rerr
	}

	body, _ := res["body"].(map[string]interface{})
	resp := newResponse(body)
	c.metrics.observe(action, elapsed, nil)
	c.log.Info("adbpg: call ok",
		slog.String("action", action),
		slog.String("request_id", resp.RequestID()),
		slog.Duration("duration", elapsed),
	)
	c.log.Debug("adbpg: response body",
		slog.String("action", action),
		slog.String("body", string(resp.JSON())),
	)
	return resp, nil
}

// instanceForm carries the instance and region every action needs.
func (c *Client) instanceForm() form {
	f := form{}
	f.set("DBInstanceId", c.creds.DBInstanceID)
	f.set("RegionId", c.creds.RegionID)
	return f
}

// namespaceForm adds namespace credentials for data-plane actions.
func (c *Client) namespaceForm() form {
	f := c.instanceForm()
	f.set("Namespace", c.creds.Namespace)
	f.set("NamespacePassword", c.creds.NamespacePassword)
	return f
}

// managerForm adds the manager account for control-plane actions.
func (c *Client) managerForm() form {
	f := c.instanceForm()
	f.set("ManagerAccount", c.creds.ManagerAccount)
	f.set("ManagerAccountPassword", c.creds.ManagerAccountPassword)
	return f
}
