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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tealsec/tealsec/internal/teal/block"
	"github.com/tealsec/tealsec/internal/teal/lexer"
	"github.com/tealsec/tealsec/internal/teal/smt"
)

func TestExploreStraightLineProgramYieldsOnePath(t *testing.T) {
	instructions := []lexer.Instruction{
		{Opcode: "int", Params: []string{"1"}, Address: 0},
		{Opcode: "return", Address: 1},
	}

	blocks, err := block.Build(instructions)
	require.NoError(t, err)

	completed, err := Explore(context.Background(), blocks, New(), smt.NewMemSolver(), 0)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
	assert.Empty(t, completed[0].Stack)
}

func TestExploreForksOnConditionalBranch(t *testing.T) {
	instructions := []lexer.Instruction{
		{Opcode: "int", Params: []string{"1"}, Address: 0},
		{Opcode: "bnz", Params: []string{"3"}, Address: 1},
		{Opcode: "return", Address: 2},
		{Opcode: "return", Address: 3, Label: "target"},
	}

	blocks, err := block.Build(instructions)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	completed, err := Explore(context.Background(), blocks, New(), smt.NewMemSolver(), 0)
	require.NoError(t, err)
	require.Len(t, completed, 2)

	for _, cfg := range completed {
		assert.Len(t, cfg.PathConstraints, 1)
	}

	assert.NotEqual(t, completed[0].PathConstraints[0].SExp(), completed[1].PathConstraints[0].SExp())
}

func TestExploreTogglesAppAreaAtSplicePoint(t *testing.T) {
	instructions := []lexer.Instruction{
		{Opcode: "int", Params: []string{"1"}, Address: 0},
		{Opcode: "pop", Address: 1},
		{Opcode: "return", Address: 2, Label: "app_label"},
	}

	blocks, err := block.Build(instructions)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	initial := New()
	initial.AppAreaStart = 2

	completed, err := Explore(context.Background(), blocks, initial, smt.NewMemSolver(), 0)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].AppArea)
}

func TestExploreLeavesAppAreaFalseWithoutSplicePoint(t *testing.T) {
	instructions := []lexer.Instruction{
		{Opcode: "int", Params: []string{"1"}, Address: 0},
		{Opcode: "return", Address: 1},
	}

	blocks, err := block.Build(instructions)
	require.NoError(t, err)

	completed, err := Explore(context.Background(), blocks, New(), smt.NewMemSolver(), 0)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.False(t, completed[0].AppArea)
}

func TestExploreRespectsContextCancellation(t *testing.T) {
	instructions := []lexer.Instruction{
		{Opcode: "int", Params: []string{"1"}, Address: 0},
		{Opcode: "return", Address: 1},
	}

	blocks, err := block.Build(instructions)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Explore(ctx, blocks, New(), smt.NewMemSolver(), 0)
	assert.Error(t, err)
}

func TestExploreReturnsCompletedConfigurationUnmodeledBlock(t *testing.T) {
	blocks := map[int]*block.Block{}

	completed, err := Explore(context.Background(), blocks, New(), smt.NewMemSolver(), 0)
	require.NoError(t, err)
	require.Len(t, completed, 1)
}

func TestFeasibleTreatsSolverErrorAsFeasible(t *testing.T) {
	ok := feasible(errStubSatisfier{}, nil, smt.BV64(1))
	assert.True(t, ok)
}

type errStubSatisfier struct{}

func (errStubSatisfier) Satisfy(...smt.Term) (smt.Result, error) {
	return smt.Unknown, assert.AnError
}
