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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	promNamespace = "pmp"
	subsystem     = "vault"

	endpointLabel = "endpoint"
	successLabel  = "success"

	endpointResources = "resources"
	endpointAccounts  = "accounts"
	endpointPassword  = "password"
)

var requestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: promNamespace,
	Subsystem: subsystem,
	Name:      "requests_total",
	Help:      "The number of requests made to the vault REST API",
}, []string{
	endpointLabel,
	successLabel,
})
