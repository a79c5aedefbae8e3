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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tealsec/tealsec/internal/teal/exec"
	"github.com/tealsec/tealsec/internal/teal/smt"
	"github.com/tealsec/tealsec/internal/teal/symbolic"
)

func TestArbitraryUpdateFiresOnUnconstrainedSender(t *testing.T) {
	cfg := exec.New()
	solver := smt.NewMemSolver()

	f, ok := arbitraryUpdate(cfg, solver, "")
	assert.True(t, ok)
	assert.Equal(t, "arbitrary_update", f.Name)
}

func TestArbitraryUpdateSkipsWhenSenderConstrained(t *testing.T) {
	cfg := exec.New()
	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), symbolic.Ref{Field: symbolic.FieldSender, Index: "GroupIndex"})
	solver := smt.NewMemSolver()

	_, ok := arbitraryUpdate(cfg, solver, "")
	assert.False(t, ok)
}

func TestArbitraryUpdateSkipsWhenAppLocalGetSeen(t *testing.T) {
	cfg := exec.New()
	cfg.MarkOpcode("app_local_get")
	solver := smt.NewMemSolver()

	_, ok := arbitraryUpdate(cfg, solver, "")
	assert.False(t, ok)
}

func TestArbitraryDeleteFiresOnUnconstrainedSender(t *testing.T) {
	cfg := exec.New()
	solver := smt.NewMemSolver()

	f, ok := arbitraryDelete(cfg, solver, "")
	assert.True(t, ok)
	assert.Equal(t, "arbitrary_delete", f.Name)
}

func TestUncheckedGroupSizeRequiresStateChangingOpcode(t *testing.T) {
	cfg := exec.New()
	solver := smt.NewMemSolver()

	_, ok := uncheckedGroupSize(cfg, solver, "")
	assert.False(t, ok)

	cfg.MarkOpcode("app_global_put")
	f, ok := uncheckedGroupSize(cfg, solver, "")
	assert.True(t, ok)
	assert.Equal(t, "unchecked_group_size", f.Name)
}

func TestForceClearStateFiresOnNonSelfLocalUser(t *testing.T) {
	cfg := exec.New()
	cfg.MarkOpcode("app_local_put")
	cfg.RecordLocalUser(`"other_acct"`)
	solver := smt.NewMemSolver()

	f, ok := forceClearState(cfg, solver, "")
	assert.True(t, ok)
	assert.Equal(t, "force_clear_state", f.Name)
	assert.Contains(t, f.Message, "other_acct")
}

func TestForceClearStateIgnoresBannedLocalUsers(t *testing.T) {
	cfg := exec.New()
	cfg.MarkOpcode("app_local_put")
	cfg.RecordLocalUser(smt.BV64(0).SExp())
	cfg.RecordLocalUser(gtxnField(symbolic.FieldSender, groupIndexVar).SExp())
	solver := smt.NewMemSolver()

	_, ok := forceClearState(cfg, solver, "")
	assert.False(t, ok)
}

func TestUncheckedPaymentReceiverFiresWhenAmountCheckedReceiverNot(t *testing.T) {
	cfg := exec.New()
	cfg.MarkOpcode("app_global_put")
	cfg.RecordGtxnIndex("1")
	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), symbolic.Ref{Field: symbolic.FieldAmount, Index: "1"})
	solver := smt.NewMemSolver()

	f, ok := uncheckedPaymentReceiver(cfg, solver, "")
	assert.True(t, ok)
	assert.Equal(t, "unchecked_payment_receiver", f.Name)
}

func TestUncheckedPaymentReceiverSkipsWhenReceiverAlsoChecked(t *testing.T) {
	cfg := exec.New()
	cfg.MarkOpcode("app_global_put")
	cfg.RecordGtxnIndex("1")
	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), symbolic.Ref{Field: symbolic.FieldAmount, Index: "1"})
	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), symbolic.Ref{Field: symbolic.FieldReceiver, Index: "1"})
	solver := smt.NewMemSolver()

	_, ok := uncheckedPaymentReceiver(cfg, solver, "")
	assert.False(t, ok)
}

func TestUncheckedAssetReceiverFiresWhenAmountCheckedReceiverNot(t *testing.T) {
	cfg := exec.New()
	cfg.MarkOpcode("app_local_put")
	cfg.RecordGtxnIndex("2")
	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), symbolic.Ref{Field: symbolic.FieldAssetAmount, Index: "2"})
	solver := smt.NewMemSolver()

	f, ok := uncheckedAssetReceiver(cfg, solver, "")
	assert.True(t, ok)
	assert.Equal(t, "unchecked_asset_receiver", f.Name)
}

func TestTimestampDependencyRequiresTimestampOpcode(t *testing.T) {
	cfg := exec.New()
	solver := smt.NewMemSolver()

	_, ok := timestampDependency(cfg, solver, "")
	assert.False(t, ok)

	cfg.MarkOpcode("timestamp")
	f, ok := timestampDependency(cfg, solver, "")
	assert.True(t, ok)
	assert.Equal(t, "timestamp_dependency", f.Name)
}

func TestSymbolicInnerTxnFeeTracksFlag(t *testing.T) {
	cfg := exec.New()

	_, ok := symbolicInnerTxnFee(cfg, nil, "")
	assert.False(t, ok)

	cfg.SymbolicInnerTxnFee = true
	f, ok := symbolicInnerTxnFee(cfg, nil, "")
	assert.True(t, ok)
	assert.Equal(t, "symbolic_inner_txn_fee", f.Name)
}

func TestCheckOptinFiresOnUnconstrainedSender(t *testing.T) {
	cfg := exec.New()
	solver := smt.NewMemSolver()

	f, ok := checkOptin(cfg, solver, "")
	assert.True(t, ok)
	assert.Equal(t, "check_optin", f.Name)
}

func TestCheckOptinSkipsWhenSenderConstrained(t *testing.T) {
	cfg := exec.New()
	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), symbolic.Ref{Field: symbolic.FieldSender, Index: "GroupIndex"})
	solver := smt.NewMemSolver()

	_, ok := checkOptin(cfg, solver, "")
	assert.False(t, ok)
}

func TestApplicationPredicatesSkipOnSymbolicHash(t *testing.T) {
	cfg := exec.New()
	cfg.SymbolicHashVariableUsed = true
	cfg.MarkOpcode("app_global_put")
	cfg.MarkOpcode("timestamp")
	solver := smt.NewMemSolver()

	findings := Run(ApplicationPredicates, cfg, solver, "")
	assert.Empty(t, findings)
}
