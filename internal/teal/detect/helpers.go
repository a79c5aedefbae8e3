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
package detect

import (
	"strconv"

	"github.com/tealsec/tealsec/internal/teal/exec"
	"github.com/tealsec/tealsec/internal/teal/smt"
	"github.com/tealsec/tealsec/internal/teal/symbolic"
)

// groupIndexVar is the symbolic own-index scalar every per-index field
// select is keyed against when no literal index is known.
var groupIndexVar = smt.Var(symbolic.GroupIndexVar.String())

// isConstrainedVar reports whether ref occurs in at least one of cfg's
// accumulated path constraints (spec.md §4.6 "variable v is
// constrained").
func isConstrainedVar(cfg *exec.Configuration, ref symbolic.Ref) bool {
	return cfg.IsConstrained(ref)
}

// isSenderConstrained reports whether the current-context sender
// (spec.md §4.6 "the symbolic variable sender_address") is constrained
// at the group index groupIndexVar references.
func isSenderConstrained(cfg *exec.Configuration) bool {
	return isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldSender, Index: "GroupIndex"})
}

// satisfy queries solver for terms conjoined with cfg's own accumulated
// path constraints — every query must be scoped to the path it reasons
// about, since a single long-lived solver session serves every
// in-flight path the DFS explorer holds (spec.md §4.7). Unknown is
// treated as Unsat by every caller (spec.md §6).
func satisfy(cfg *exec.Configuration, solver smt.Solver, terms ...smt.Term) bool {
	query := make([]smt.Term, 0, len(cfg.PathConstraints)+len(terms))
	query = append(query, cfg.PathConstraints...)
	query = append(query, terms...)

	result, err := solver.Satisfy(query...)
	if err != nil {
		return false
	}

	return result == smt.Sat
}

func gtxnField(field symbolic.Field, index smt.Term) smt.Term {
	return smt.Select(smt.ArrayVar(field.String(), field.ArraySort()), index)
}

func indexTerm(index string) smt.Term {
	if v, ok := literalIndex(index); ok {
		return smt.BV64(v)
	}

	return groupIndexVar
}

func literalIndex(index string) (uint64, bool) {
	if index == "" || index == "GroupIndex" {
		return 0, false
	}

	v, err := strconv.ParseUint(index, 10, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// isPaymentTransaction reports whether index's implicit transaction
// type is consistent with a payment transaction (Type == "pay" and
// TypeEnum == 1 simultaneously satisfiable).
func isPaymentTransaction(cfg *exec.Configuration, solver smt.Solver, index string) bool {
	idx := indexTerm(index)

	return satisfy(cfg, solver,
		smt.Eq(gtxnField(symbolic.FieldType, idx), smt.Str("pay")),
		smt.Eq(gtxnField(symbolic.FieldTypeEnum, idx), smt.BV64(1)),
	)
}

// isAssetTransferTransaction reports whether index's implicit
// transaction type is consistent with an asset-transfer transaction
// (Type == "axfer" and TypeEnum == 4).
func isAssetTransferTransaction(cfg *exec.Configuration, solver smt.Solver, index string) bool {
	idx := indexTerm(index)

	return satisfy(cfg, solver,
		smt.Eq(gtxnField(symbolic.FieldType, idx), smt.Str("axfer")),
		smt.Eq(gtxnField(symbolic.FieldTypeEnum, idx), smt.BV64(4)),
	)
}

// checkTxnSender reports whether index's sender is not otherwise
// restricted along the path — i.e. unconstrained, and therefore still
// spendable by an attacker willing to match the LSig's signing
// conditions.
func checkTxnSender(cfg *exec.Configuration, index string) bool {
	return !isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldSender, Index: index})
}

// groupIndexString returns the textual group-index context the logic
// signature predicates' app-area guard checks (spec.md §4.6 "executing
// inside an inlined application body").
func groupIndexString(cfg *exec.Configuration) string {
	return cfg.GroupIndexString
}
