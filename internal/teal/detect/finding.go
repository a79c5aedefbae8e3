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

// Package detect is the vulnerability detection registry (spec.md
// §4.6): a set of predicates over a terminal Configuration, split by
// mode the way the original source splits registry/rule1 (application)
// from registry/rule2 (signature).
package detect

import (
	"fmt"

	"github.com/tealsec/tealsec/internal/teal/exec"
	"github.com/tealsec/tealsec/internal/teal/smt"
)

// Finding is one reported vulnerability (spec.md §6 "Findings output"):
// a human-readable line naming the vulnerability, the transaction
// indices involved, and, where applicable, the offending address.
type Finding struct {
	Name    string
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s", f.Name, f.Message)
}

// Predicate is one detector: Configuration, the shared solver, and the
// LSig address context (empty in application mode) in, an optional
// Finding out.
type Predicate func(cfg *exec.Configuration, solver smt.Solver, lsigAddress string) (Finding, bool)

// ApplicationPredicates is the full smart-contract (application mode)
// predicate catalog (spec.md §4.6 "Smart-contract predicates").
var ApplicationPredicates = []Predicate{
	arbitraryUpdate,
	arbitraryDelete,
	uncheckedGroupSize,
	forceClearState,
	uncheckedPaymentReceiver,
	uncheckedAssetReceiver,
	timestampDependency,
	symbolicInnerTxnFee,
	checkOptin,
}

// SignaturePredicates is the full logic-signature-mode predicate
// catalog (spec.md §4.6 "Logic-signature predicates").
var SignaturePredicates = []Predicate{
	uncheckedTransactionFeeInLsig,
	uncheckedRekeyToInLsig,
	uncheckedCloseRemainderToInLsig,
	uncheckedAssetCloseToInLsig,
	smartSignatureArbitrarySpend,
}

// Run evaluates every predicate in catalog against cfg and returns the
// findings that fired.
func Run(catalog []Predicate, cfg *exec.Configuration, solver smt.Solver, lsigAddress string) []Finding {
	var findings []Finding

	for _, p := range catalog {
		if f, ok := p(cfg, solver, lsigAddress); ok {
			findings = append(findings, f)
		}
	}

	return findings
}
