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
	"fmt"

	"github.com/tealsec/tealsec/internal/teal/exec"
	"github.com/tealsec/tealsec/internal/teal/smt"
	"github.com/tealsec/tealsec/internal/teal/symbolic"
)

// bannedLocalUser is an account value app_local_get/put was passed that
// force_clear_state never treats as "some other user": the literal
// zero account index, and the program's own Sender (the common
// `txn Sender` argument), rendered the same field-select term opTxn
// pushes for it.
var bannedLocalUser = map[string]bool{
	smt.BV64(0).SExp(): true,
	gtxnField(symbolic.FieldSender, groupIndexVar).SExp(): true,
}

// arbitraryUpdate implements arbitrary_update_vulnerability (spec.md
// §4.6, registry/rule1/application.py).
func arbitraryUpdate(cfg *exec.Configuration, solver smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if cfg.Opcodes.Seen["app_local_get"] {
		return Finding{}, false
	}

	ok := satisfy(cfg, solver,
		smt.Eq(gtxnField(symbolic.FieldOnCompletion, groupIndexVar), smt.BV64(4)),
		smt.Ne(gtxnField(symbolic.FieldApplicationID, groupIndexVar), smt.BV64(0)),
	)
	if !ok || isSenderConstrained(cfg) {
		return Finding{}, false
	}

	return Finding{"arbitrary_update", "application can be updated (UpdateApplication) with an unconstrained sender"}, true
}

// arbitraryDelete implements arbitrary_delete_vulnerability.
func arbitraryDelete(cfg *exec.Configuration, solver smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if cfg.Opcodes.Seen["app_local_get"] {
		return Finding{}, false
	}

	ok := satisfy(cfg, solver,
		smt.Eq(gtxnField(symbolic.FieldOnCompletion, groupIndexVar), smt.BV64(5)),
		smt.Ne(gtxnField(symbolic.FieldApplicationID, groupIndexVar), smt.BV64(0)),
	)
	if !ok || isSenderConstrained(cfg) {
		return Finding{}, false
	}

	return Finding{"arbitrary_delete", "application can be deleted (DeleteApplication) with an unconstrained sender"}, true
}

// uncheckedGroupSize implements unchecked_group_size_vulnerability.
func uncheckedGroupSize(cfg *exec.Configuration, solver smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if !(cfg.Opcodes.Seen["itxn_submit"] || cfg.Opcodes.Seen["app_global_put"] || cfg.Opcodes.Seen["app_local_put"]) {
		return Finding{}, false
	}

	ok := satisfy(cfg, solver,
		smt.Eq(smt.Var(symbolic.FieldGroupSize.String()), smt.BV64(17)),
		smt.Ne(gtxnField(symbolic.FieldApplicationID, groupIndexVar), smt.BV64(0)),
		smt.Eq(gtxnField(symbolic.FieldOnCompletion, groupIndexVar), smt.BV64(0)),
	)
	if !ok {
		return Finding{}, false
	}

	return Finding{"unchecked_group_size", "state change is reachable with a group size beyond the protocol maximum, so the contract never actually checks it"}, true
}

// forceClearState implements force_clear_state_vulnerability.
func forceClearState(cfg *exec.Configuration, solver smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if !(cfg.Opcodes.Seen["itxn_submit"] || cfg.Opcodes.Seen["app_global_put"] || cfg.Opcodes.Seen["app_local_put"]) {
		return Finding{}, false
	}

	for localUser := range cfg.Opcodes.LocalUsers {
		if bannedLocalUser[localUser] {
			continue
		}

		ok := satisfy(cfg, solver,
			smt.Ne(gtxnField(symbolic.FieldApplicationID, groupIndexVar), smt.BV64(0)),
			smt.Or(
				smt.Eq(gtxnField(symbolic.FieldOnCompletion, groupIndexVar), smt.BV64(0)),
				smt.Eq(gtxnField(symbolic.FieldOnCompletion, groupIndexVar), smt.BV64(2)),
			),
		)
		if ok {
			return Finding{"force_clear_state", fmt.Sprintf("local state of another account (%s) can be cleared via NoOp/CloseOut", localUser)}, true
		}
	}

	return Finding{}, false
}

// uncheckedPaymentReceiver implements unchecked_payment_receiver_vulnerability.
func uncheckedPaymentReceiver(cfg *exec.Configuration, solver smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if !(cfg.Opcodes.Seen["app_global_put"] || cfg.Opcodes.Seen["app_local_put"]) {
		return Finding{}, false
	}

	groupOK := satisfy(cfg, solver,
		smt.Ge(smt.Var(symbolic.FieldGroupSize.String()), smt.BV64(2)),
		smt.Ne(gtxnField(symbolic.FieldApplicationID, groupIndexVar), smt.BV64(0)),
	)
	if !groupOK {
		return Finding{}, false
	}

	for _, index := range cfg.Opcodes.GroupIndexSet() {
		if !isPaymentTransaction(cfg, solver, index) {
			continue
		}

		if !isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldAmount, Index: index}) {
			continue
		}

		idx := indexTerm(index)

		ok := satisfy(cfg, solver,
			smt.Eq(gtxnField(symbolic.FieldType, idx), smt.Str("pay")),
			smt.Eq(gtxnField(symbolic.FieldTypeEnum, idx), smt.BV64(1)),
		)
		if !ok {
			continue
		}

		if !isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldReceiver, Index: index}) {
			return Finding{"unchecked_payment_receiver", fmt.Sprintf("gtxn[%s].Amount is checked but .Receiver is not", index)}, true
		}
	}

	return Finding{}, false
}

// uncheckedAssetReceiver implements unchecked_asset_receiver_vulnerability.
func uncheckedAssetReceiver(cfg *exec.Configuration, solver smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if !(cfg.Opcodes.Seen["app_global_put"] || cfg.Opcodes.Seen["app_local_put"]) {
		return Finding{}, false
	}

	groupOK := satisfy(cfg, solver,
		smt.Ge(smt.Var(symbolic.FieldGroupSize.String()), smt.BV64(2)),
		smt.Ne(gtxnField(symbolic.FieldApplicationID, groupIndexVar), smt.BV64(0)),
	)
	if !groupOK {
		return Finding{}, false
	}

	for _, index := range cfg.Opcodes.GroupIndexSet() {
		if !isAssetTransferTransaction(cfg, solver, index) {
			continue
		}

		amountConstrained := isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldAssetAmount, Index: index})
		xferConstrained := isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldXferAsset, Index: index})

		if !amountConstrained && !xferConstrained {
			continue
		}

		idx := indexTerm(index)

		ok := satisfy(cfg, solver,
			smt.Eq(gtxnField(symbolic.FieldType, idx), smt.Str("axfer")),
			smt.Eq(gtxnField(symbolic.FieldTypeEnum, idx), smt.BV64(4)),
		)
		if !ok {
			continue
		}

		if !isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldAssetReceiver, Index: index}) {
			return Finding{"unchecked_asset_receiver", fmt.Sprintf("gtxn[%s].AssetAmount/XferAsset is checked but .AssetReceiver is not", index)}, true
		}
	}

	return Finding{}, false
}

// timestampDependency implements time_stamp_dependeceny_vulnerability.
func timestampDependency(cfg *exec.Configuration, solver smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if !cfg.Opcodes.Seen["timestamp"] {
		return Finding{}, false
	}

	ok := satisfy(cfg, solver,
		smt.Ne(gtxnField(symbolic.FieldApplicationID, groupIndexVar), smt.BV64(0)),
		smt.Eq(gtxnField(symbolic.FieldOnCompletion, groupIndexVar), smt.BV64(0)),
	)
	if !ok {
		return Finding{}, false
	}

	return Finding{"timestamp_dependency", "control flow depends on global LatestTimestamp, which validators can influence within consensus bounds"}, true
}

// symbolicInnerTxnFee implements symbolic_inner_txn_fee_vulnerability.
func symbolicInnerTxnFee(cfg *exec.Configuration, _ smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if !cfg.SymbolicInnerTxnFee {
		return Finding{}, false
	}

	return Finding{"symbolic_inner_txn_fee", "inner transaction Fee is assigned a non-literal value"}, true
}

// checkOptin implements check_optin.
func checkOptin(cfg *exec.Configuration, solver smt.Solver, _ string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	ok := satisfy(cfg, solver,
		smt.Eq(gtxnField(symbolic.FieldOnCompletion, groupIndexVar), smt.BV64(1)),
		smt.Ne(gtxnField(symbolic.FieldApplicationID, groupIndexVar), smt.BV64(0)),
	)
	if !ok || isSenderConstrained(cfg) {
		return Finding{}, false
	}

	return Finding{"check_optin", "OptIn is reachable with an unconstrained sender"}, true
}
