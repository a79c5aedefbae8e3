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
	"strconv"

	"github.com/bits-and-blooms/bitset"
	log "github.com/sirupsen/logrus"

	"github.com/tealsec/tealsec/internal/teal/block"
	"github.com/tealsec/tealsec/internal/teal/exitcode"
	"github.com/tealsec/tealsec/internal/teal/lexer"
	"github.com/tealsec/tealsec/internal/teal/smt"
)

// maxPaths bounds the explorer's frontier so a pathologically branchy
// program cannot run unbounded; the wall-clock --timeout flag
// (SPEC_FULL.md §5) is the primary guard, this is a backstop.
const maxPaths = 4096

// frame is one path in flight: the Configuration it has accumulated and
// the block it is about to step through.
type frame struct {
	cfg       *Configuration
	blockAddr int
}

// Explore runs a depth-first symbolic execution over blocks starting at
// startAddr (spec.md §4.5 "Execution loop"): it steps every instruction
// of a block through Apply, then at the block's terminator either
// follows the single successor (b, callsub, retsub, fall-through) or
// forks on a conditional branch (bnz, bz), querying solver to prune
// infeasible sides. Terminal blocks (return, err, or no successor)
// yield one completed Configuration each. ctx is checked between blocks
// so a wall-clock timeout aborts the walk with exitcode.Timeout.
func Explore(ctx context.Context, blocks map[int]*block.Block, initial *Configuration, solver smt.Solver, startAddr int) ([]*Configuration, error) {
	var completed []*Configuration

	stack := []frame{{cfg: initial, blockAddr: startAddr}}

	var reached bitset.BitSet

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, exitcode.Wrap(exitcode.Timeout, err)
		}

		if len(completed)+len(stack) > maxPaths {
			log.Warnf("explore: path frontier exceeded %d, truncating walk", maxPaths)
			break
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b, ok := blocks[top.blockAddr]
		if !ok {
			completed = append(completed, top.cfg)
			continue
		}

		reached.Set(uint(top.blockAddr))

		next, forks, done := stepBlock(b, blocks, top.cfg, solver)

		if done {
			completed = append(completed, top.cfg)
			continue
		}

		if next != nil {
			stack = append(stack, *next)
		}

		for _, f := range forks {
			stack = append(stack, *f)
		}
	}

	log.Debugf("explore: reached %d of %d blocks, %d terminal paths", reached.Count(), len(blocks), len(completed))

	return completed, nil
}

// stepBlock applies every instruction of b that is not a control-flow
// opcode to cfg, then resolves the block's final instruction. It returns the single successor frame (for
// unconditional control flow), zero or more forked frames (for
// conditional branches, after solver-based pruning), and whether this
// path has terminated (return/err/no successor).
func stepBlock(b *block.Block, blocks map[int]*block.Block, cfg *Configuration, solver smt.Solver) (next *frame, forks []*frame, done bool) {
	cfg.PC = b.StartAddress

	if cfg.AppAreaStart >= 0 && cfg.PC >= cfg.AppAreaStart {
		cfg.AppArea = true
	}

	insts := b.Instructions

	// return/err do not force a block split (construct_basic_block only
	// splits on labels and the branch-family opcodes), so either can
	// appear anywhere in the instruction run, not just at the end.
	for _, inst := range insts[:len(insts)-1] {
		cfg.PC = inst.Address

		switch inst.Opcode {
		case "return":
			cfg.Pop()
			return nil, nil, true
		case "err":
			return nil, nil, true
		}

		Apply(cfg, inst)
	}

	term := b.Terminator()
	cfg.PC = term.Address

	switch term.Opcode {
	case "return":
		cfg.Pop()
		return nil, nil, true

	case "err":
		return nil, nil, true

	case "retsub":
		if len(cfg.CallStack) == 0 {
			return nil, nil, true
		}

		ret := cfg.CallStack[len(cfg.CallStack)-1]
		cfg.CallStack = cfg.CallStack[:len(cfg.CallStack)-1]

		return &frame{cfg: cfg, blockAddr: ret}, nil, false

	case "callsub":
		target, ok := branchTarget(term)
		if !ok {
			return nil, nil, true
		}

		cfg.CallStack = append(cfg.CallStack, b.AdjacentBlockAddress)

		return &frame{cfg: cfg, blockAddr: target}, nil, false

	case "b":
		target, ok := branchTarget(term)
		if !ok {
			return nil, nil, true
		}

		return &frame{cfg: cfg, blockAddr: target}, nil, false

	case "bnz", "bz":
		return forkConditional(b, term, cfg, solver)

	default:
		Apply(cfg, term)

		if b.AdjacentBlockAddress == block.NoFallthrough {
			return nil, nil, true
		}

		return &frame{cfg: cfg, blockAddr: b.AdjacentBlockAddress}, nil, false
	}
}

// forkConditional pops the branch condition, normalizes it to a boolean
// formula, and queries solver on both the taken and not-taken sides,
// returning a frame only for feasible sides (spec.md §4.5 "Branch
// forking"). Each feasible side gets its own clone of cfg, so both sides
// own independent state.
func forkConditional(b *block.Block, term lexer.Instruction, cfg *Configuration, solver smt.Solver) (*frame, []*frame, bool) {
	cond := cfg.Pop()
	formula := smt.AsBool(cond.Term)

	target, ok := branchTarget(term)

	takenFormula := formula
	if term.Opcode == "bz" {
		takenFormula = smt.Not(formula)
	}

	notTakenFormula := smt.Not(takenFormula)

	var out []*frame

	if ok && feasible(solver, cfg.PathConstraints, takenFormula) {
		taken := cfg.Clone()
		taken.AddConstraint(takenFormula, cond.Refs...)
		out = append(out, &frame{cfg: taken, blockAddr: target})
	}

	if feasible(solver, cfg.PathConstraints, notTakenFormula) {
		fallthroughAddr := b.AdjacentBlockAddress

		if fallthroughAddr != block.NoFallthrough {
			notTaken := cfg.Clone()
			notTaken.AddConstraint(notTakenFormula, cond.Refs...)
			out = append(out, &frame{cfg: notTaken, blockAddr: fallthroughAddr})
		}
	}

	if len(out) == 0 {
		return nil, nil, true
	}

	last := out[len(out)-1]
	rest := out[:len(out)-1]

	return last, rest, false
}

// feasible reports whether solver finds formula satisfiable conjoined
// with constraints (the path's own accumulated path_constraints, since
// a single long-lived solver session serves every in-flight path the
// DFS explorer holds). Per spec.md §6, Unknown is treated as Unsat (a
// solver timeout or incompleteness only ever prunes a path, never
// fabricates one). A solver error is treated as "feasible" so a
// backend hiccup degrades to over-approximation rather than silently
// dropping a path.
func feasible(solver Satisfier, constraints []smt.Term, formula smt.Term) bool {
	query := make([]smt.Term, 0, len(constraints)+1)
	query = append(query, constraints...)
	query = append(query, formula)

	result, err := solver.Satisfy(query...)
	if err != nil {
		return true
	}

	return result == smt.Sat
}

// Satisfier is the subset of smt.Solver the explorer needs to prune
// branches; declared locally so tests can pass a bare function-backed
// stub without building a full smt.Solver.
type Satisfier interface {
	Satisfy(extra ...smt.Term) (smt.Result, error)
}

func branchTarget(inst lexer.Instruction) (int, bool) {
	if len(inst.Params) == 0 {
		return 0, false
	}

	target, err := strconv.Atoi(inst.Params[0])
	if err != nil {
		return 0, false
	}

	return target, true
}
