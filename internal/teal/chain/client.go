// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package chain is the on-chain fetch collaborator (spec.md §6): reading
// an application's disassembled approval program and global state from
// an Algorand node, for the Application Inliner (internal/teal/inline).
package chain

import "context"

// GlobalValue is one application global-state entry (spec.md §6
// "global_state is a mapping key -> {type, value}").
type GlobalValue struct {
	IsBytes     bool
	UintValue   uint64
	BytesValue  string
}

// Client is the storage collaborator the inliner consumes (spec.md §6
// "On-chain fetch collaborator").
type Client interface {
	// ReadAppInfo fetches appID's current approval program source and
	// global state. With force false, a deleted/missing application is
	// reported via a typed NotFoundError rather than a generic error, so
	// callers can fall back to GetApp for the historical version.
	ReadAppInfo(ctx context.Context, appID uint64, force bool) (source string, state map[string]GlobalValue, err error)

	// GetApp fetches appID's historical approval program source (used
	// when the application has since been deleted).
	GetApp(ctx context.Context, appID uint64) (source string, err error)
}

// NotFoundError reports that an application id does not currently exist
// on chain.
type NotFoundError struct{ AppID uint64 }

func (e *NotFoundError) Error() string {
	return "chain: application not found"
}
