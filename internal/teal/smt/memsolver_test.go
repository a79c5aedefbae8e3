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
package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSolverSatOnConsistentEquality(t *testing.T) {
	m := NewMemSolver()
	m.Assert(Eq(Var("x"), BV64(5)))

	result, err := m.Satisfy(Eq(Var("x"), BV64(5)))
	require.NoError(t, err)
	assert.Equal(t, Sat, result)
}

func TestMemSolverUnsatOnContradictingGroundLiterals(t *testing.T) {
	m := NewMemSolver()

	result, err := m.Satisfy(Eq(BV64(1), BV64(2)))
	require.NoError(t, err)
	assert.Equal(t, Unsat, result)
}

func TestMemSolverUnsatOnEqualityThenDisequality(t *testing.T) {
	m := NewMemSolver()
	m.Assert(Eq(Var("x"), Var("y")))

	result, err := m.Satisfy(Ne(Var("x"), Var("y")))
	require.NoError(t, err)
	assert.Equal(t, Unsat, result)
}

func TestMemSolverPushPopScoping(t *testing.T) {
	m := NewMemSolver()
	m.Assert(Eq(Var("x"), Var("y")))

	m.Push()
	m.Assert(Ne(Var("x"), Var("y")))

	result, err := m.Satisfy()
	require.NoError(t, err)
	assert.Equal(t, Unsat, result)

	m.Pop()

	result, err = m.Satisfy()
	require.NoError(t, err)
	assert.Equal(t, Sat, result)
}

func TestMemSolverOrderComparisonOnGroundLiterals(t *testing.T) {
	m := NewMemSolver()

	result, err := m.Satisfy(Lt(BV64(1), BV64(2)))
	require.NoError(t, err)
	assert.Equal(t, Sat, result)

	result, err = m.Satisfy(Gt(BV64(1), BV64(2)))
	require.NoError(t, err)
	assert.Equal(t, Unsat, result)
}

func TestMemSolverOrderComparisonOnSymbolicIsPermissive(t *testing.T) {
	m := NewMemSolver()

	result, err := m.Satisfy(Gt(Var("amount"), BV64(1000)))
	require.NoError(t, err)
	assert.Equal(t, Sat, result)
}

func TestMemSolverOrSucceedsIfAnyDisjunctHolds(t *testing.T) {
	m := NewMemSolver()

	result, err := m.Satisfy(Or(Eq(BV64(1), BV64(2)), Eq(Var("x"), Var("x"))))
	require.NoError(t, err)
	assert.Equal(t, Sat, result)
}

func TestMemSolverClose(t *testing.T) {
	m := NewMemSolver()
	assert.NoError(t, m.Close())
}
