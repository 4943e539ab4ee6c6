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
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/docker-credential-helpers/credentials"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/vault/sdk/helper/jsonutil"

	"github.com/morningconsult/docker-credential-pmp-login/client"
	"github.com/morningconsult/docker-credential-pmp-login/config"
	"github.com/morningconsult/docker-credential-pmp-login/vault"
)

type testRetriever struct {
	passwords map[string]string
	keys      []string
	deadlines []time.Duration
}

func (r *testRetriever) RetrievePassword(ctx context.Context, key string) string {
	r.keys = append(r.keys, key)
	if deadline, ok := ctx.Deadline(); ok {
		r.deadlines = append(r.deadlines, time.Until(deadline))
	}
	return r.passwords[key]
}

func TestHelper_Add(t *testing.T) {
	h := New(Options{})
	err := h.Add(&credentials.Credentials{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "not implemented" {
		t.Fatalf("Errors differ:\n%v", cmp.Diff(err.Error(), "not implemented"))
	}
}

func TestHelper_Delete(t *testing.T) {
	h := New(Options{})
	err := h.Delete("")
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "not implemented" {
		t.Fatalf("Errors differ:\n%v", cmp.Diff(err.Error(), "not implemented"))
	}
}

func TestHelper_List(t *testing.T) {
	h := New(Options{})
	_, err := h.List()
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "not implemented" {
		t.Fatalf("Errors differ:\n%v", cmp.Diff(err.Error(), "not implemented"))
	}
}

func TestKeyFromServerURL(t *testing.T) {
	cases := []struct {
		name      string
		serverURL string
		key       string
		err       bool
	}{
		{"host-only", "registry.example.com", "registry.example.com", false},
		{"with-scheme-and-path", "https://Registry.Example.com/v2/", "registry.example.com", false},
		{"with-port", "registry.example.com:5000/v1", "registry.example.com:5000", false},
		{"empty", "  ", "", true},
		{"no-host", "https:///v2", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := KeyFromServerURL(tc.serverURL)
			if tc.err {
				if err == nil {
					t.Fatal("expected an error but didn't receive one")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if key != tc.key {
				t.Fatalf("Expected key %q, got %q", tc.key, key)
			}
		})
	}
}

func TestHelper_Get(t *testing.T) {
	retriever := &testRetriever{
		passwords: map[string]string{"registry.example.com": "secure password"},
	}
	h := New(Options{
		Logger: hclog.NewNullLogger(),
		Client: retriever,
	})

	username, password, err := h.Get("https://registry.example.com/v2/")
	if err != nil {
		t.Fatal(err)
	}
	if username != "registry.example.com" {
		t.Errorf("Expected username %q, got %q", "registry.example.com", username)
	}
	if password != "secure password" {
		t.Errorf("Expected password %q, got %q", "secure password", password)
	}

	_, _, err = h.Get("other.example.com")
	if !credentials.IsErrCredentialsNotFound(err) {
		t.Fatalf("Expected a credentials-not-found error, got %v", err)
	}

	_, _, err = h.Get("")
	if !credentials.IsErrCredentialsNotFound(err) {
		t.Fatalf("Expected a credentials-not-found error, got %v", err)
	}

	if diff := cmp.Diff([]string{"registry.example.com", "other.example.com"}, retriever.keys); diff != "" {
		t.Fatalf("Keys differ:\n%s", diff)
	}
}

func TestHelper_Timeout(t *testing.T) {
	cases := []struct {
		name    string
		timeout time.Duration
		max     time.Duration
		min     time.Duration
	}{
		{"default", 0, DefaultTimeout, DefaultTimeout - time.Minute},
		{"configured", 5 * time.Minute, 5 * time.Minute, 4 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retriever := &testRetriever{
				passwords: map[string]string{"registry.example.com": "secure password"},
			}
			h := New(Options{Client: retriever, Timeout: tc.timeout})

			if _, _, err := h.Get("registry.example.com"); err != nil {
				t.Fatal(err)
			}
			if len(retriever.deadlines) != 1 {
				t.Fatalf("Expected the retrieval to have a deadline")
			}
			if d := retriever.deadlines[0]; d > tc.max || d < tc.min {
				t.Fatalf("Expected a deadline within (%v, %v], got %v", tc.min, tc.max, d)
			}
		})
	}
}

func TestHelper_EndToEnd(t *testing.T) {
	server := vault.NewMockServer(t, vault.MockServerOptions{
		AuthToken: "5A1F0E2C-3F64-4E1A-8C8E-6B1F2B0C9D11",
		Resources: []vault.Resource{
			{ID: "12", Name: "registries", Type: vault.ResourceTypeApplication},
		},
		Accounts: map[string][]vault.Account{
			"12": {{ID: "34", Name: "docker/registry.example.com"}},
		},
		Passwords: map[string]string{
			"12/34": "secure password",
		},
	})

	dir := t.TempDir()
	data, err := jsonutil.EncodeJSON(config.Config{
		AuthToken: "5A1F0E2C-3F64-4E1A-8C8E-6B1F2B0C9D11",
		Host:      server.Host(),
		Prefix:    "docker/",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err = ioutil.WriteFile(filepath.Join(dir, config.FileName), data, 0600); err != nil {
		t.Fatal(err)
	}

	h := New(Options{
		Logger: hclog.NewNullLogger(),
		Client: client.New(client.Options{
			Logger:     hclog.NewNullLogger(),
			HTTPClient: server.Client(),
			ConfigDir:  dir,
		}),
	})

	username, password, err := h.Get("registry.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if username != "registry.example.com" {
		t.Errorf("Expected username %q, got %q", "registry.example.com", username)
	}
	if password != "secure password" {
		t.Errorf("Expected password %q, got %q", "secure password", password)
	}
}
