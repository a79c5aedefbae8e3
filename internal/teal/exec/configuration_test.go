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
package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tealsec/tealsec/internal/teal/smt"
	"github.com/tealsec/tealsec/internal/teal/symbolic"
)

func TestNewInitializesScratchToZero(t *testing.T) {
	cfg := New()

	assert.Equal(t, "(_ bv0 64)", cfg.ScratchUintAt(0).SExp())
	assert.Equal(t, `""`, cfg.ScratchBytesAt(0).SExp())
	assert.Equal(t, "GroupIndex", cfg.GroupIndexString)
}

func TestScratchUintAtAndBytesAtDefaultOnWrongType(t *testing.T) {
	cfg := New()
	cfg.Scratch[3] = StackValue{Term: smt.Str("hi"), IsBytes: true}

	assert.Equal(t, "(_ bv0 64)", cfg.ScratchUintAt(3).SExp())
	assert.Equal(t, `"hi"`, cfg.ScratchBytesAt(3).SExp())

	cfg.Scratch[4] = StackValue{Term: smt.BV64(9)}
	assert.Equal(t, "(_ bv9 64)", cfg.ScratchUintAt(4).SExp())
	assert.Equal(t, `""`, cfg.ScratchBytesAt(4).SExp())
}

func TestPushPop(t *testing.T) {
	cfg := New()
	cfg.Push(StackValue{Term: smt.BV64(1)})
	cfg.Push(StackValue{Term: smt.BV64(2)})

	top := cfg.Pop()
	assert.Equal(t, "(_ bv2 64)", top.Term.SExp())

	next := cfg.Pop()
	assert.Equal(t, "(_ bv1 64)", next.Term.SExp())
}

func TestPopOnEmptyStackReturnsOpaqueZero(t *testing.T) {
	cfg := New()
	v := cfg.Pop()
	assert.Equal(t, "(_ bv0 64)", v.Term.SExp())
}

func TestAddConstraintAndIsConstrained(t *testing.T) {
	cfg := New()
	ref := symbolic.Ref{Field: symbolic.FieldAmount, Index: "1"}

	assert.False(t, cfg.IsConstrained(ref))

	cfg.AddConstraint(smt.Eq(smt.Var("gtxn_Amount"), smt.BV64(0)), ref)

	assert.True(t, cfg.IsConstrained(ref))
	require.Len(t, cfg.PathConstraints, 1)
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := New()
	cfg.Push(StackValue{Term: smt.BV64(1)})
	cfg.GlobalUint["k"] = smt.BV64(1)
	ref := symbolic.Ref{Field: symbolic.FieldAmount, Index: "1"}
	cfg.AddConstraint(smt.Eq(smt.Var("x"), smt.BV64(1)), ref)

	clone := cfg.Clone()

	clone.Push(StackValue{Term: smt.BV64(2)})
	clone.GlobalUint["k"] = smt.BV64(99)
	clone.AddConstraint(smt.Eq(smt.Var("y"), smt.BV64(2)))

	assert.Len(t, cfg.Stack, 1)
	assert.Len(t, clone.Stack, 2)
	assert.Equal(t, "(_ bv1 64)", cfg.GlobalUint["k"].SExp())
	assert.Equal(t, "(_ bv99 64)", clone.GlobalUint["k"].SExp())
	assert.Len(t, cfg.PathConstraints, 1)
	assert.Len(t, clone.PathConstraints, 2)
	assert.True(t, clone.IsConstrained(ref))
}

func TestMarkOpcodeRecordGtxnIndexRecordLocalUser(t *testing.T) {
	cfg := New()
	cfg.MarkOpcode("sha256")
	cfg.RecordGtxnIndex("1")
	cfg.RecordLocalUser("acct")

	assert.True(t, cfg.Opcodes.Seen["sha256"])
	assert.ElementsMatch(t, []string{"1"}, cfg.Opcodes.GroupIndexSet())
	assert.True(t, cfg.Opcodes.LocalUsers["acct"])
}
