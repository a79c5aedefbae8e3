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

func TestIsConstrainedVar(t *testing.T) {
	cfg := exec.New()
	ref := symbolic.Ref{Field: symbolic.FieldSender, Index: "GroupIndex"}

	assert.False(t, isConstrainedVar(cfg, ref))

	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), ref)
	assert.True(t, isConstrainedVar(cfg, ref))
}

func TestIsSenderConstrained(t *testing.T) {
	cfg := exec.New()
	assert.False(t, isSenderConstrained(cfg))

	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), symbolic.Ref{Field: symbolic.FieldSender, Index: "GroupIndex"})
	assert.True(t, isSenderConstrained(cfg))
}

func TestSatisfyConjoinsPathConstraints(t *testing.T) {
	cfg := exec.New()
	solver := smt.NewMemSolver()

	assert.True(t, satisfy(cfg, solver))

	// An infeasible path (two distinct ground literals asserted equal)
	// must make every subsequent query unsat, since satisfy always
	// conjoins cfg.PathConstraints.
	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(2)))
	assert.False(t, satisfy(cfg, solver))
}

func TestSatisfyTreatsSolverErrorAsUnsat(t *testing.T) {
	cfg := exec.New()
	assert.False(t, satisfy(cfg, errSolver{}))
}

type errSolver struct{}

func (errSolver) Declare(string, string) {}
func (errSolver) Assert(smt.Term)        {}
func (errSolver) Push()                  {}
func (errSolver) Pop()                   {}
func (errSolver) Close() error           { return nil }

func (errSolver) Satisfy(...smt.Term) (smt.Result, error) {
	return smt.Unknown, assert.AnError
}

func TestGtxnField(t *testing.T) {
	term := gtxnField(symbolic.FieldAmount, smt.BV64(1))
	assert.Equal(t, "(select gtxn_Amount (_ bv1 64))", term.SExp())
}

func TestIndexTermLiteralVsSymbolic(t *testing.T) {
	assert.Equal(t, "(_ bv3 64)", indexTerm("3").SExp())
	assert.Equal(t, "GroupIndex", indexTerm("GroupIndex").SExp())
	assert.Equal(t, "GroupIndex", indexTerm("").SExp())
}

func TestLiteralIndex(t *testing.T) {
	v, ok := literalIndex("5")
	assert.True(t, ok)
	assert.Equal(t, uint64(5), v)

	_, ok = literalIndex("GroupIndex")
	assert.False(t, ok)

	_, ok = literalIndex("")
	assert.False(t, ok)

	_, ok = literalIndex("not-a-number")
	assert.False(t, ok)
}

func TestIsPaymentTransactionDefaultsSat(t *testing.T) {
	cfg := exec.New()
	solver := smt.NewMemSolver()
	assert.True(t, isPaymentTransaction(cfg, solver, "1"))
}

func TestIsAssetTransferTransactionDefaultsSat(t *testing.T) {
	cfg := exec.New()
	solver := smt.NewMemSolver()
	assert.True(t, isAssetTransferTransaction(cfg, solver, "1"))
}

func TestCheckTxnSender(t *testing.T) {
	cfg := exec.New()
	assert.True(t, checkTxnSender(cfg, "1"))

	cfg.AddConstraint(smt.Eq(smt.BV64(1), smt.BV64(1)), symbolic.Ref{Field: symbolic.FieldSender, Index: "1"})
	assert.False(t, checkTxnSender(cfg, "1"))
}

func TestGroupIndexString(t *testing.T) {
	cfg := exec.New()
	assert.Equal(t, "GroupIndex", groupIndexString(cfg))

	cfg.GroupIndexString = "3"
	assert.Equal(t, "3", groupIndexString(cfg))
}
