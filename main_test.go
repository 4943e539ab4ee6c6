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

package main

import (
	"io/ioutil"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/morningconsult/docker-credential-pmp-login/helper"
)

func TestParseFlags(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		expected options
		err      string
	}{
		{
			name:     "defaults",
			expected: options{timeout: 30 * time.Second, getTimeout: helper.DefaultTimeout},
		},
		{
			name:     "version",
			args:     []string{"-version"},
			expected: options{version: true, timeout: 30 * time.Second, getTimeout: helper.DefaultTimeout},
		},
		{
			name:     "timeouts",
			args:     []string{"-timeout", "1m", "-get-timeout", "10m"},
			expected: options{timeout: time.Minute, getTimeout: 10 * time.Minute},
		},
		{
			// A request timeout above the default lookup timeout must be
			// paired with a longer lookup timeout.
			name: "timeout-exceeds-get-timeout",
			args: []string{"-timeout", "5m"},
			err:  "-get-timeout (2m0s) must not be shorter than -timeout (5m0s)",
		},
		{
			name: "non-positive-timeout",
			args: []string{"-timeout", "0s"},
			err:  "-timeout must be positive, got 0s",
		},
		{
			name: "unknown-flag",
			args: []string{"-nope"},
			err:  "flag provided but not defined: -nope",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFlags(tc.args, ioutil.Discard)
			if tc.err != "" {
				if err == nil {
					t.Fatalf("Expected error %q, got none", tc.err)
				}
				if !strings.Contains(err.Error(), tc.err) {
					t.Fatalf("Expected error %q, got %q", tc.err, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.expected, got, cmp.AllowUnexported(options{})); diff != "" {
				t.Fatalf("Options differ:\n%s", diff)
			}
		})
	}
}
