// Copyright 2019 The Morning Consult, LLC or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//         https://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package vault

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/vault/sdk/helper/jsonutil"
	"golang.org/x/xerrors"

	"github.com/morningconsult/docker-credential-pmp-login/config"
)

const (
	// APIPrefix is the path under which the vault serves its REST API.
	APIPrefix = "/restapi/json/v1"

	// ResourceTypeApplication is the only resource type whose accounts
	// are discovered.
	ResourceTypeApplication = "Application"

	// DefaultTimeout bounds a single request when Options.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	statusSuccess = "Success"
)

// ErrNoPassword is returned when a password response carries no
// PASSWORD field.
var ErrNoPassword = xerrors.New("no password found in response")

// EndpointError is returned when an endpoint could not be called or
// its response could not be decoded. URL includes the auth token.
type EndpointError struct {
	URL string
	Err error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("error calling %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *EndpointError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the vault answered a request but
// reported that the operation failed.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("operation %s: %s", strings.ToLower(e.Status), e.Message)
}

// Options is used to configure a new Client
type Options struct {
	Logger hclog.Logger

	// HTTPClient carries the transport and its TLS verification
	// policy. A pooled client is used when nil.
	HTTPClient *http.Client

	// Timeout bounds each request. DefaultTimeout is used when zero.
	Timeout time.Duration
}

// Client calls the REST endpoints of the password vault.
type Client struct {
	logger  hclog.Logger
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a new Client.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		logger:  logger,
		http:    httpClient,
		timeout: timeout,
	}
}

// ListResources returns every resource visible to the auth token.
func (c *Client) ListResources(ctx context.Context, cfg config.Config) ([]Resource, error) {
	var resp resourcesResponse
	if err := c.call(ctx, cfg, endpointResources, "/resources", &resp); err != nil {
		return nil, err
	}
	return resp.Operation.Details, nil
}

// ListAccounts returns the accounts of the resource identified by groupID.
func (c *Client) ListAccounts(ctx context.Context, cfg config.Config, groupID string) ([]Account, error) {
	var resp accountsResponse
	p := "/resources/" + url.PathEscape(groupID) + "/accounts"
	if err := c.call(ctx, cfg, endpointAccounts, p, &resp); err != nil {
		return nil, err
	}
	return resp.Operation.Details.Accounts, nil
}

// GetPassword returns the password of an account. ErrNoPassword is
// returned when the response does not carry one.
func (c *Client) GetPassword(ctx context.Context, cfg config.Config, groupID, accountID string) (string, error) {
	var resp passwordResponse
	p := "/resources/" + url.PathEscape(groupID) + "/accounts/" + url.PathEscape(accountID) + "/password"
	if err := c.call(ctx, cfg, endpointPassword, p, &resp); err != nil {
		return "", err
	}
	if resp.Operation.Details.Password == nil {
		return "", ErrNoPassword
	}
	return *resp.Operation.Details.Password, nil
}

// EndpointURL builds the URL used to call path.
func EndpointURL(cfg config.Config, path string) string {
	query := url.Values{"AUTHTOKEN": []string{cfg.AuthToken}}
	return "https://" + cfg.Host + APIPrefix + path + "?" + query.Encode()
}

func (c *Client) call(ctx context.Context, cfg config.Config, endpoint, path string, out response) error {
	u := EndpointURL(cfg, path)

	err := c.do(ctx, u, out)
	if err != nil {
		// The URL carries the auth token; logs must be handled as secrets.
		c.logger.Error("error calling vault endpoint", "url", u, "error", err)
		requestsCounter.WithLabelValues(endpoint, "false").Inc()
		return &EndpointError{URL: u, Err: err}
	}
	requestsCounter.WithLabelValues(endpoint, "true").Inc()

	if r := out.result(); r.Status != "" && !strings.EqualFold(r.Status, statusSuccess) {
		c.logger.Error("vault reported a failed operation", "endpoint", endpoint, "status", r.Status, "message", r.Message)
		return &StatusError{Status: r.Status, Message: r.Message}
	}
	return nil
}

func (c *Client) do(ctx context.Context, u string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return xerrors.Errorf("error creating request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.Errorf("error making request: %w", err)
	}
	defer func() {
		io.Copy(ioutil.Discard, resp.Body) // nolint: errcheck
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return xerrors.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if err = jsonutil.DecodeJSONFromReader(resp.Body, out); err != nil {
		return xerrors.Errorf("error JSON-decoding response: %w", err)
	}
	return nil
}
