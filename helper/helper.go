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

package helper

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/docker/docker-credential-helpers/credentials"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/xerrors"
)

// DefaultTimeout bounds a Get when Options.Timeout is zero. It leaves
// room for a full account discovery made of several vault requests.
const DefaultTimeout = 2 * time.Minute

var errNotImplemented = errors.New("not implemented")

type passwordRetriever interface {
	RetrievePassword(ctx context.Context, key string) string
}

// Options is used to configure a new Helper instance
type Options struct {
	Logger hclog.Logger
	Client passwordRetriever

	// Timeout bounds a single Get, including any reload of the
	// configuration it triggers.
	Timeout time.Duration
}

// Helper implements a Docker credential helper which will
// fetch the password of a registry from the password vault
// and pass it to the Docker daemon. The registry host is
// used both as the key of the account and as the username.
type Helper struct {
	logger  hclog.Logger
	client  passwordRetriever
	timeout time.Duration
}

// New creates a new Helper instance
func New(opts Options) *Helper {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	timeout := DefaultTimeout
	if opts.Timeout != 0 {
		timeout = opts.Timeout
	}

	return &Helper{
		logger:  logger,
		client:  opts.Client,
		timeout: timeout,
	}
}

// Add is not implemented
func (h *Helper) Add(creds *credentials.Credentials) error {
	return errNotImplemented
}

// Delete is not implemented
func (h *Helper) Delete(serverURL string) error {
	return errNotImplemented
}

// List is not implemented
func (h *Helper) List() (map[string]string, error) {
	return nil, errNotImplemented
}

// Get looks up the password of the registry in the vault.
func (h *Helper) Get(serverURL string) (string, string, error) {
	key, err := KeyFromServerURL(serverURL)
	if err != nil {
		h.logger.Error("error parsing registry URL", "error", err)
		return "", "", credentials.NewErrCredentialsNotFound()
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	password := h.client.RetrievePassword(ctx, key)
	if password == "" {
		h.logger.Error("no password retrieved for registry", "registry", key)
		return "", "", credentials.NewErrCredentialsNotFound()
	}

	return key, password, nil
}

// KeyFromServerURL returns the lower-cased host of a registry URL, which
// may be given with or without a scheme and path.
func KeyFromServerURL(serverURL string) (string, error) {
	raw := strings.TrimSpace(serverURL)
	if raw == "" {
		return "", xerrors.New("registry URL is empty")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", xerrors.Errorf("error parsing registry URL %q: %w", serverURL, err)
	}
	if u.Host == "" {
		return "", xerrors.Errorf("registry URL %q has no host", serverURL)
	}
	return strings.ToLower(u.Host), nil
}
