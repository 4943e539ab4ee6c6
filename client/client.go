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

package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"

	"github.com/morningconsult/docker-credential-pmp-login/cache"
	"github.com/morningconsult/docker-credential-pmp-login/config"
	"github.com/morningconsult/docker-credential-pmp-login/vault"
)

// Options is used to configure a new Client
type Options struct {
	Logger hclog.Logger

	// HTTPClient is used to call the vault. It determines the TLS
	// verification policy. A pooled client is used when nil.
	HTTPClient *http.Client

	// Timeout bounds every request made to the vault.
	Timeout time.Duration

	// ConfigDir is the directory holding the configuration file. When
	// empty, the APPSETTINGS_DIRECTORY environment variable is read on
	// every retrieval.
	ConfigDir string

	// TimeNow returns the current time. time.Now is used when nil.
	TimeNow func() time.Time
}

// Client retrieves passwords from the vault. Passwords are cached until
// the configuration file changes. It is safe for concurrent use.
type Client struct {
	logger    hclog.Logger
	vault     *vault.Client
	configDir string
	timeNow   func() time.Time

	directory *cache.Directory
	passwords *cache.PasswordCache

	reloads singleflight.Group
	fetches singleflight.Group

	mu         sync.Mutex
	status     reloadStatus
	config     *config.Config
	lastReload time.Time
	modTime    time.Time
}

// New creates a new Client. No I/O happens until the first retrieval.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	timeNow := opts.TimeNow
	if timeNow == nil {
		timeNow = time.Now
	}

	return &Client{
		logger: logger,
		vault: vault.NewClient(vault.Options{
			Logger:     logger.Named("vault"),
			HTTPClient: opts.HTTPClient,
			Timeout:    opts.Timeout,
		}),
		configDir: opts.ConfigDir,
		timeNow:   timeNow,
		directory: cache.NewDirectory(),
		passwords: cache.NewPasswordCache(),
		status:    statusNeedsReload,
	}
}

// RetrievePassword returns the password of the account named by the
// configured prefix followed by key. An empty string is returned on any
// failure; the cause is logged.
//
// An unknown key does not trigger account discovery. Once the account
// exists in the vault, the configuration file must be touched (or
// Invalidate called) for it to be found.
func (c *Client) RetrievePassword(ctx context.Context, key string) string {
	if !c.ensureFreshConfiguration(ctx) {
		retrievalsCounter.WithLabelValues(resultConfigError).Inc()
		return ""
	}

	c.mu.Lock()
	cfg := c.config
	lastReload := c.lastReload
	c.mu.Unlock()

	if cfg == nil {
		retrievalsCounter.WithLabelValues(resultConfigError).Inc()
		return ""
	}

	name := cfg.Prefix + key

	account, ok := c.directory.Lookup(name)
	if !ok {
		c.logger.Error("no account found for key; touch the configuration file once the account exists",
			"key", key, "account", name)
		retrievalsCounter.WithLabelValues(resultUnknownKey).Inc()
		return ""
	}

	if cached, ok := c.passwords.Get(name); ok && !cached.StaleSince(lastReload) {
		c.logger.Debug("password cache hit", "account", name)
		retrievalsCounter.WithLabelValues(resultHit).Inc()
		return cached.Value
	}

	c.logger.Debug("password cache miss", "account", name)

	// Shared by concurrent callers of the same account; see
	// ensureFreshConfiguration.
	ch := c.fetches.DoChan(name, func() (interface{}, error) {
		return c.fetchPassword(context.Background(), *cfg, name, account), nil
	})

	var password string
	select {
	case res := <-ch:
		password = res.Val.(string)
	case <-ctx.Done():
		c.logger.Error("stopped waiting for password", "account", name, "error", ctx.Err())
		retrievalsCounter.WithLabelValues(resultFetchError).Inc()
		return ""
	}

	if password == "" {
		retrievalsCounter.WithLabelValues(resultFetchError).Inc()
	} else {
		retrievalsCounter.WithLabelValues(resultMiss).Inc()
	}
	return password
}

// Invalidate forces the next retrieval to reload the configuration,
// rediscover every account and refetch every password.
func (c *Client) Invalidate() {
	c.logger.Info("reload requested")
	c.markNeedsReload()
}

func (c *Client) fetchPassword(ctx context.Context, cfg config.Config, name string, account cache.Account) string {
	fetchedAt := c.timeNow()

	password, err := c.vault.GetPassword(ctx, cfg, account.GroupID, account.AccountID)
	if err != nil {
		c.handleVaultError(err)
		c.logger.Error("error fetching password", "account", name, "error", err)
		return ""
	}

	c.passwords.Set(name, password, fetchedAt)
	c.logger.Info("password fetched", "account", name)
	return password
}

// handleVaultError forces a full reload after transport and decoding
// failures. Failures reported by the vault itself are left alone.
func (c *Client) handleVaultError(err error) {
	var endpointErr *vault.EndpointError
	if xerrors.As(err, &endpointErr) {
		c.markNeedsReload()
	}
}
