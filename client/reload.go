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

	"github.com/morningconsult/docker-credential-pmp-login/cache"
	"github.com/morningconsult/docker-credential-pmp-login/config"
	"github.com/morningconsult/docker-credential-pmp-login/vault"
)

type reloadStatus int

const (
	statusNeedsReload reloadStatus = iota
	statusReloadInProgress
	statusFresh
)

func (s reloadStatus) String() string {
	switch s {
	case statusFresh:
		return "fresh"
	case statusReloadInProgress:
		return "reload-in-progress"
	default:
		return "needs-reload"
	}
}

const reloadKey = "reload"

func (c *Client) markNeedsReload() {
	c.mu.Lock()
	c.status = statusNeedsReload
	c.mu.Unlock()
}

func (c *Client) configFile() (string, error) {
	if c.configDir != "" {
		return config.FilePathIn(c.configDir)
	}
	return config.FilePath()
}

// ensureFreshConfiguration reloads the configuration and rediscovers the
// accounts when the configuration file changed since it was last loaded
// or when a reload was requested. It returns false if the configuration
// is unusable or discovery found no accounts.
func (c *Client) ensureFreshConfiguration(ctx context.Context) bool {
	file, err := c.configFile()
	if err != nil {
		c.logger.Error("error locating configuration file", "error", err)
		c.markNeedsReload()
		return false
	}

	fresh, err := c.isFresh(file)
	if err != nil {
		c.logger.Error("error reading configuration file", "path", file, "error", err)
		c.markNeedsReload()
		return false
	}
	if fresh {
		return true
	}

	// The reload is shared by every waiting caller, so it must not be
	// cancelled with any one of them. Each vault request is still bounded
	// by the vault client's timeout.
	ch := c.reloads.DoChan(reloadKey, func() (interface{}, error) {
		// Another caller may have finished a reload in the meantime.
		if fresh, err := c.isFresh(file); err == nil && fresh {
			return true, nil
		}
		return c.reload(context.Background(), file), nil
	})

	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		c.logger.Error("stopped waiting for configuration reload", "error", ctx.Err())
		return false
	}
}

// isFresh stats the configuration file and reports whether it is the
// one that was last loaded successfully.
func (c *Client) isFresh(file string) (bool, error) {
	modTime, err := config.ModTime(file)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == statusFresh && modTime.Equal(c.modTime), nil
}

func (c *Client) reload(ctx context.Context, file string) bool {
	c.mu.Lock()
	c.status = statusReloadInProgress
	c.mu.Unlock()

	// Taken before reading so that a write racing with the read is
	// picked up by the next check.
	modTime, err := config.ModTime(file)
	if err != nil {
		c.logger.Error("error reading configuration file", "path", file, "error", err)
		c.markNeedsReload()
		reloadsCounter.WithLabelValues("false").Inc()
		return false
	}

	cfg, err := config.LoadConfig(file)
	if err != nil {
		for _, fieldErr := range config.FieldErrors(err) {
			c.logger.Error("error loading configuration file", "path", file, "error", fieldErr)
		}
		c.markNeedsReload()
		reloadsCounter.WithLabelValues("false").Inc()
		return false
	}

	c.mu.Lock()
	c.config = cfg
	c.lastReload = c.timeNow()
	c.modTime = modTime
	c.mu.Unlock()

	c.logger.Info("configuration loaded", "path", file, "host", cfg.Host, "prefix", cfg.Prefix)

	ok := c.rebuildDirectory(ctx, *cfg)

	// A vault call failing during discovery has already asked for
	// another reload.
	c.mu.Lock()
	if c.status == statusReloadInProgress {
		c.status = statusFresh
	}
	status := c.status
	c.mu.Unlock()

	reloadsCounter.WithLabelValues(boolLabel(ok)).Inc()
	c.logger.Debug("reload finished", "status", status, "accounts_found", ok)
	return ok
}

// rebuildDirectory replaces the account directory with the accounts of
// every Application resource. It returns true if at least one account
// was found.
func (c *Client) rebuildDirectory(ctx context.Context, cfg config.Config) bool {
	accounts := make(map[string]cache.Account)

	resources, err := c.vault.ListResources(ctx, cfg)
	if err != nil {
		c.handleVaultError(err)
		c.logger.Error("error listing resources", "error", err)
	}

	for _, resource := range resources {
		if resource.Type != vault.ResourceTypeApplication {
			continue
		}

		list, err := c.vault.ListAccounts(ctx, cfg, resource.ID)
		if err != nil {
			c.handleVaultError(err)
			c.logger.Error("error listing accounts", "resource", resource.Name, "resource_id", resource.ID, "error", err)
			continue
		}

		for _, account := range list {
			if account.ID == "" || account.Name == "" {
				continue
			}
			accounts[account.Name] = cache.Account{
				GroupID:   resource.ID,
				AccountID: account.ID,
			}
		}
	}

	c.directory.Replace(accounts)

	if len(accounts) == 0 {
		c.logger.Error("no accounts found in the vault")
		return false
	}

	c.logger.Info("accounts discovered", "count", len(accounts))
	return true
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
