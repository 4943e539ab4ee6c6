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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	promNamespace = "pmp"
	subsystem     = "client"

	resultLabel  = "result"
	successLabel = "success"

	resultHit         = "hit"
	resultMiss        = "miss"
	resultUnknownKey  = "unknown_key"
	resultConfigError = "config_error"
	resultFetchError  = "fetch_error"
)

var (
	retrievalsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: subsystem,
		Name:      "retrievals_total",
		Help:      "The number of password retrievals, by outcome",
	}, []string{resultLabel})

	reloadsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: subsystem,
		Name:      "reloads_total",
		Help:      "The number of configuration reloads, by whether any account was discovered",
	}, []string{successLabel})
)
