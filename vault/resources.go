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

// Result is the outcome the vault reports for every operation.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Resource is a group of accounts.
type Resource struct {
	ID          string `json:"RESOURCE ID"`
	Name        string `json:"RESOURCE NAME"`
	Type        string `json:"RESOURCE TYPE"`
	Description string `json:"RESOURCE DESCRIPTION,omitempty"`
}

// Account is an account as listed inside a resource.
type Account struct {
	ID   string `json:"ACCOUNT ID"`
	Name string `json:"ACCOUNT NAME"`
}

type response interface {
	result() Result
}

type resourcesResponse struct {
	Operation struct {
		Result  Result     `json:"result"`
		Details []Resource `json:"Details"`
	} `json:"operation"`
}

func (r *resourcesResponse) result() Result { return r.Operation.Result }

type accountsResponse struct {
	Operation struct {
		Result  Result `json:"result"`
		Details struct {
			ResourceID string    `json:"RESOURCE ID"`
			Accounts   []Account `json:"ACCOUNT LIST"`
		} `json:"Details"`
	} `json:"operation"`
}

func (r *accountsResponse) result() Result { return r.Operation.Result }

type passwordResponse struct {
	Operation struct {
		Result  Result `json:"result"`
		Details struct {
			Password *string `json:"PASSWORD"`
		} `json:"Details"`
	} `json:"operation"`
}

func (r *passwordResponse) result() Result { return r.Operation.Result }
