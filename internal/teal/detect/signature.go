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

// appAreaGuard implements the shared "(ii) executing inside an inlined
// application body and the sender at the current group index is
// already constrained there" no-finding short-circuit (spec.md §4.6
// "Logic-signature predicates", stage ii).
func appAreaGuard(cfg *exec.Configuration) bool {
	if !cfg.AppArea {
		return false
	}

	return isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldSender, Index: groupIndexString(cfg)})
}

// unreviewedGroupMember reports whether some transaction in the group
// was never inspected by any gtxn/gtxns reference (spec.md §4.6, stage
// iii: "fewer referenced indices than global_GroupSize").
func unreviewedGroupMember(cfg *exec.Configuration, solver smt.Solver) bool {
	count := len(cfg.Opcodes.GroupIndexSet())

	return satisfy(cfg, solver, smt.Lt(smt.BV64(uint64(count)), smt.Var(symbolic.FieldGroupSize.String())))
}

// uncheckedTransactionFeeInLsig implements unchecked_transaction_fee_in_lsig.
func uncheckedTransactionFeeInLsig(cfg *exec.Configuration, solver smt.Solver, lsigAddress string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldFee, Index: "GroupIndex"}) {
		return Finding{}, false
	}

	if appAreaGuard(cfg) {
		return Finding{}, false
	}

	if unreviewedGroupMember(cfg, solver) {
		return Finding{"unchecked_transaction_fee_in_lsig", "a transaction in the group is never inspected, so its Fee is unconstrained"}, true
	}

	for _, index := range cfg.Opcodes.GroupIndexSet() {
		if isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldFee, Index: index}) {
			continue
		}

		idx := indexTerm(index)

		ok := satisfy(cfg, solver,
			smt.Eq(gtxnField(symbolic.FieldSender, idx), smt.Str(lsigAddress)),
			smt.Eq(groupIndexVar, idx),
		)
		if ok {
			return Finding{"unchecked_transaction_fee_in_lsig", fmt.Sprintf("gtxn[%s].Fee is unconstrained while Sender can equal the lsig address", index)}, true
		}
	}

	return Finding{}, false
}

// uncheckedRekeyToInLsig implements unchecked_RekeyTo_in_lsig.
func uncheckedRekeyToInLsig(cfg *exec.Configuration, solver smt.Solver, lsigAddress string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if cfg.Version <= 1 {
		return Finding{}, false
	}

	if isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldRekeyTo, Index: "GroupIndex"}) {
		return Finding{}, false
	}

	relevant := satisfy(cfg, solver,
		smt.Eq(gtxnField(symbolic.FieldCloseRemainderTo, groupIndexVar), smt.ZeroAddress()),
		smt.Eq(gtxnField(symbolic.FieldAssetCloseTo, groupIndexVar), smt.ZeroAddress()),
	)
	if !relevant {
		return Finding{}, false
	}

	if appAreaGuard(cfg) {
		return Finding{}, false
	}

	if unreviewedGroupMember(cfg, solver) {
		return Finding{"unchecked_RekeyTo_in_lsig", "a transaction in the group is never inspected, so its RekeyTo is unconstrained"}, true
	}

	for _, index := range cfg.Opcodes.GroupIndexSet() {
		if isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldRekeyTo, Index: index}) {
			continue
		}

		idx := indexTerm(index)

		ok := satisfy(cfg, solver,
			smt.Eq(gtxnField(symbolic.FieldSender, idx), smt.Str(lsigAddress)),
			smt.Eq(groupIndexVar, idx),
			smt.Eq(gtxnField(symbolic.FieldCloseRemainderTo, idx), smt.ZeroAddress()),
			smt.Eq(gtxnField(symbolic.FieldAssetCloseTo, idx), smt.ZeroAddress()),
		)
		if ok {
			return Finding{"unchecked_RekeyTo_in_lsig", fmt.Sprintf("gtxn[%s].RekeyTo is unconstrained while Sender can equal the lsig address", index)}, true
		}
	}

	return Finding{}, false
}

// uncheckedCloseRemainderToInLsig implements unchecked_CloseRemainderTo_in_lsig.
func uncheckedCloseRemainderToInLsig(cfg *exec.Configuration, solver smt.Solver, lsigAddress string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldCloseRemainderTo, Index: "GroupIndex"}) {
		return Finding{}, false
	}

	relevant := satisfy(cfg, solver,
		smt.Eq(gtxnField(symbolic.FieldTypeEnum, groupIndexVar), smt.BV64(1)),
		smt.Eq(gtxnField(symbolic.FieldType, groupIndexVar), smt.Str("pay")),
	)
	if !relevant || !isPaymentTransaction(cfg, solver, "GroupIndex") {
		return Finding{}, false
	}

	if appAreaGuard(cfg) {
		return Finding{}, false
	}

	if unreviewedGroupMember(cfg, solver) {
		return Finding{"unchecked_CloseRemainderTo_in_lsig", "a transaction in the group is never inspected, so its CloseRemainderTo is unconstrained"}, true
	}

	for _, index := range cfg.Opcodes.GroupIndexSet() {
		if !isPaymentTransaction(cfg, solver, index) {
			continue
		}

		if isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldCloseRemainderTo, Index: index}) {
			continue
		}

		idx := indexTerm(index)

		ok := satisfy(cfg, solver,
			smt.Eq(gtxnField(symbolic.FieldTypeEnum, idx), smt.BV64(1)),
			smt.Eq(gtxnField(symbolic.FieldType, idx), smt.Str("pay")),
			smt.Eq(gtxnField(symbolic.FieldSender, idx), smt.Str(lsigAddress)),
			smt.Eq(groupIndexVar, idx),
		)
		if ok {
			return Finding{"unchecked_CloseRemainderTo_in_lsig", fmt.Sprintf("gtxn[%s].CloseRemainderTo is unconstrained on a pay transaction signed by the lsig", index)}, true
		}
	}

	return Finding{}, false
}

// uncheckedAssetCloseToInLsig implements unchecked_AssetCloseTo_in_lsig.
func uncheckedAssetCloseToInLsig(cfg *exec.Configuration, solver smt.Solver, lsigAddress string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldAssetCloseTo, Index: "GroupIndex"}) {
		return Finding{}, false
	}

	relevant := satisfy(cfg, solver,
		smt.Eq(gtxnField(symbolic.FieldTypeEnum, groupIndexVar), smt.BV64(4)),
		smt.Eq(gtxnField(symbolic.FieldType, groupIndexVar), smt.Str("axfer")),
	)
	if !relevant || !isAssetTransferTransaction(cfg, solver, "GroupIndex") {
		return Finding{}, false
	}

	if appAreaGuard(cfg) {
		return Finding{}, false
	}

	if unreviewedGroupMember(cfg, solver) {
		return Finding{"unchecked_AssetCloseTo_in_lsig", "a transaction in the group is never inspected, so its AssetCloseTo is unconstrained"}, true
	}

	for _, index := range cfg.Opcodes.GroupIndexSet() {
		if !isAssetTransferTransaction(cfg, solver, index) {
			continue
		}

		if isConstrainedVar(cfg, symbolic.Ref{Field: symbolic.FieldAssetCloseTo, Index: index}) {
			continue
		}

		idx := indexTerm(index)

		ok := satisfy(cfg, solver,
			smt.Eq(gtxnField(symbolic.FieldTypeEnum, idx), smt.BV64(4)),
			smt.Eq(gtxnField(symbolic.FieldType, idx), smt.Str("axfer")),
			smt.Eq(gtxnField(symbolic.FieldAssetSender, idx), smt.Str(lsigAddress)),
			smt.Eq(groupIndexVar, idx),
			// Excludes asset-accept and asset-clawback transactions.
			smt.Eq(gtxnField(symbolic.FieldSender, idx), smt.ZeroAddress()),
		)
		if ok {
			return Finding{"unchecked_AssetCloseTo_in_lsig", fmt.Sprintf("gtxn[%s].AssetCloseTo is unconstrained on an axfer transaction signed by the lsig", index)}, true
		}
	}

	return Finding{}, false
}

// smartSignatureArbitrarySpend implements smart_signature_arbitrary_spend_vulnerability.
func smartSignatureArbitrarySpend(cfg *exec.Configuration, solver smt.Solver, lsigAddress string) (Finding, bool) {
	if cfg.SymbolicHashVariableUsed {
		return Finding{}, false
	}

	if cfg.Opcodes.Seen["app_local_get"] {
		return Finding{}, false
	}

	if appAreaGuard(cfg) {
		return Finding{}, false
	}

	gtxnList := cfg.Opcodes.GroupIndexSet()

	if len(gtxnList) == 0 {
		ok := satisfy(cfg, solver,
			smt.Eq(gtxnField(symbolic.FieldSender, groupIndexVar), smt.Str(lsigAddress)),
			smt.Eq(gtxnField(symbolic.FieldAssetSender, groupIndexVar), smt.Str(lsigAddress)),
			smt.Ge(gtxnField(symbolic.FieldFee, groupIndexVar), smt.BV64(1000)),
		)
		if ok {
			return Finding{"smart_signature_arbitrary_spend", "lsig can sign as both Sender and AssetSender with no other group member inspected"}, true
		}
	}

	uncapped := satisfy(cfg, solver, smt.Gt(gtxnField(symbolic.FieldAmount, groupIndexVar), smt.BV64(100000*1000000)))
	if uncapped {
		return Finding{}, false
	}

	for _, index := range gtxnList {
		idx := indexTerm(index)
		if satisfy(cfg, solver, smt.Gt(gtxnField(symbolic.FieldAmount, idx), smt.BV64(100000*1000000))) {
			return Finding{}, false
		}
	}

	for _, index := range gtxnList {
		idx := indexTerm(index)

		ok := satisfy(cfg, solver,
			smt.Eq(gtxnField(symbolic.FieldSender, idx), smt.Str(lsigAddress)),
			smt.Eq(gtxnField(symbolic.FieldAssetSender, idx), smt.Str(lsigAddress)),
			smt.Ge(gtxnField(symbolic.FieldFee, idx), smt.BV64(uint64(len(gtxnList)*1000))),
		)
		if ok && checkTxnSender(cfg, index) {
			return Finding{"smart_signature_arbitrary_spend", fmt.Sprintf("gtxn[%s] can spend as the lsig with no amount cap enforced", index)}, true
		}
	}

	return Finding{}, false
}
