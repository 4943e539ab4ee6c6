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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/vault/sdk/helper/jsonutil"
)

// MockServerOptions configures the content served by a MockServer.
type MockServerOptions struct {
	// AuthToken is the only token the server accepts.
	AuthToken string

	Resources []Resource

	// Accounts maps resource IDs to their accounts.
	Accounts map[string][]Account

	// Passwords maps "<resource ID>/<account ID>" to a password. An
	// account without an entry gets a response without a PASSWORD field.
	Passwords map[string]string
}

// MockServer mimics the three REST endpoints of the vault over TLS and
// counts the calls made to each path. Clients must use Client() to
// trust its certificate.
type MockServer struct {
	*httptest.Server

	t    *testing.T
	mu   sync.Mutex
	opts MockServerOptions

	calls map[string]int
	fail  map[string]bool
	held  map[string]chan struct{}
}

// NewMockServer starts a MockServer. It is closed when the test ends.
func NewMockServer(t *testing.T, opts MockServerOptions) *MockServer {
	if opts.Accounts == nil {
		opts.Accounts = make(map[string][]Account)
	}
	if opts.Passwords == nil {
		opts.Passwords = make(map[string]string)
	}

	m := &MockServer{
		t:     t,
		opts:  opts,
		calls: make(map[string]int),
		fail:  make(map[string]bool),
		held:  make(map[string]chan struct{}),
	}
	m.Server = httptest.NewTLSServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Close)
	return m
}

// Host returns the host:port the server listens on.
func (m *MockServer) Host() string {
	return strings.TrimPrefix(m.URL, "https://")
}

// Calls returns the number of requests received for path, which is
// relative to APIPrefix (e.g. "/resources").
func (m *MockServer) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

// Hold makes requests for path wait until the returned function is
// called. The hold is released when the test ends.
func (m *MockServer) Hold(path string) (release func()) {
	ch := make(chan struct{})

	m.mu.Lock()
	m.held[path] = ch
	m.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, path)
			m.mu.Unlock()
			close(ch)
		})
	}
	m.t.Cleanup(release)
	return release
}

// SetPassword changes the password served for an account.
func (m *MockServer) SetPassword(groupID, accountID, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Passwords[groupID+"/"+accountID] = password
}

// SetFailing makes every request for path drop the connection without
// answering until it is called again with false.
func (m *MockServer) SetFailing(path string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[path] = fail
}

func (m *MockServer) handle(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	if !strings.HasPrefix(req.URL.Path, APIPrefix) {
		http.NotFound(w, req)
		return
	}
	p := strings.TrimPrefix(req.URL.Path, APIPrefix)

	m.mu.Lock()
	m.calls[p]++
	fail := m.fail[p]
	held := m.held[p]
	m.mu.Unlock()

	if held != nil {
		select {
		case <-held:
		case <-req.Context().Done():
			return
		}
	}

	if fail {
		m.dropConnection(w)
		return
	}

	if req.URL.Query().Get("AUTHTOKEN") != m.opts.AuthToken {
		m.write(w, map[string]interface{}{
			"operation": map[string]interface{}{
				"result": Result{Status: "Failed", Message: "Invalid API key received"},
			},
		})
		return
	}

	parts := strings.Split(strings.Trim(p, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "resources":
		m.write(w, m.resources())
	case len(parts) == 3 && parts[0] == "resources" && parts[2] == "accounts":
		m.write(w, m.accounts(parts[1]))
	case len(parts) == 5 && parts[0] == "resources" && parts[2] == "accounts" && parts[4] == "password":
		m.write(w, m.password(parts[1], parts[3]))
	default:
		http.NotFound(w, req)
	}
}

func (m *MockServer) resources() interface{} {
	var resp resourcesResponse
	resp.Operation.Result = Result{Status: "Success", Message: "Resources fetched successfully"}
	resp.Operation.Details = m.opts.Resources
	return resp
}

func (m *MockServer) accounts(groupID string) interface{} {
	var resp accountsResponse
	resp.Operation.Result = Result{Status: "Success", Message: "Resource details with account list fetched successfully"}
	resp.Operation.Details.ResourceID = groupID
	resp.Operation.Details.Accounts = m.opts.Accounts[groupID]
	return resp
}

func (m *MockServer) password(groupID, accountID string) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	var resp passwordResponse
	resp.Operation.Result = Result{Status: "Success", Message: "Password fetched successfully"}
	if pw, ok := m.opts.Passwords[groupID+"/"+accountID]; ok {
		resp.Operation.Details.Password = &pw
	}
	return resp
}

func (m *MockServer) write(w http.ResponseWriter, v interface{}) {
	payload, err := jsonutil.EncodeJSON(v)
	if err != nil {
		m.t.Logf("error marshaling response payload: %v", err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(payload); err != nil {
		m.t.Logf("error writing response: %v", err)
	}
}

func (m *MockServer) dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		// Not JSON, which the client treats the same way.
		w.Write([]byte("<html>bad gateway</html>")) // nolint: errcheck
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		m.t.Logf("error hijacking connection: %v", err)
		return
	}
	conn.Close()
}
