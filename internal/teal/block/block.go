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

// Package block partitions a resolved instruction stream into basic
// blocks and validates the resulting control-flow graph (spec.md §4.4).
package block

import (
	"fmt"
	"strconv"

	"github.com/tealsec/tealsec/internal/teal/exitcode"
	"github.com/tealsec/tealsec/internal/teal/lexer"
)

// NoFallthrough marks the one block positioned last in the address space
// (the terminal block): there is no block start address immediately
// after it, so it has no fall-through successor (spec.md §3, I2).
const NoFallthrough = -1

// Block is a contiguous, maximal run of instructions where only the
// first may carry a label and only the last may be a control-flow
// terminator (spec.md §3).
type Block struct {
	StartAddress         int
	EndAddress           int
	Instructions         []lexer.Instruction
	AdjacentBlockAddress int
}

// Terminator returns the block's final instruction.
func (b *Block) Terminator() lexer.Instruction {
	return b.Instructions[len(b.Instructions)-1]
}

var terminators = map[string]bool{
	"bnz": true, "bz": true, "b": true, "callsub": true, "retsub": true,
}

// Build scans instructions in address order, emitting a new block
// whenever the current instruction carries a label and the accumulator
// is non-empty, or the current instruction is a control-flow terminator
// (spec.md §4.4). AdjacentBlockAddress is positional, not control-flow:
// a block's fall-through successor is whichever block (if any) starts
// at its end address plus one, regardless of whether its own
// terminator would ever transfer control there (the executor, not the
// block graph, decides which edges are actually taken). It returns the
// blocks keyed by start address.
func Build(instructions []lexer.Instruction) (map[int]*Block, error) {
	blocks := make(map[int]*Block)

	var acc []lexer.Instruction

	flush := func() {
		if len(acc) == 0 {
			return
		}

		last := acc[len(acc)-1]
		b := &Block{
			StartAddress: acc[0].Address,
			EndAddress:   last.Address,
			Instructions: acc,
		}
		blocks[b.StartAddress] = b
		acc = nil
	}

	for _, inst := range instructions {
		if inst.Label != "" && len(acc) > 0 {
			flush()
		}

		acc = append(acc, inst)

		if terminators[inst.Opcode] {
			flush()
		}
	}

	flush()

	for _, b := range blocks {
		if _, ok := blocks[b.EndAddress+1]; ok {
			b.AdjacentBlockAddress = b.EndAddress + 1
		} else {
			b.AdjacentBlockAddress = NoFallthrough
		}
	}

	if err := validate(instructions, blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

// validate checks (spec.md §4.4 "Post-checks") that every branch target
// lands on a block start address, and that exactly one block lacks a
// fall-through successor.
func validate(instructions []lexer.Instruction, blocks map[int]*Block) error {
	for _, inst := range instructions {
		if !(terminators[inst.Opcode] || inst.Opcode == "switch") || inst.Opcode == "retsub" || len(inst.Params) == 0 {
			continue
		}

		for _, p := range targetParams(inst) {
			target, err := strconv.Atoi(p)
			if err != nil {
				continue
			}

			if _, ok := blocks[target]; !ok {
				return exitcode.Wrap(exitcode.IncorrectBlockConstruction,
					fmt.Errorf("branch at line %d targets non-block address %d", inst.LineNumber, target))
			}
		}
	}

	endCount := 0

	for _, b := range blocks {
		if b.AdjacentBlockAddress == NoFallthrough {
			endCount++
		}
	}

	if endCount != 1 {
		return exitcode.Wrap(exitcode.IncorrectBlockConstruction,
			fmt.Errorf("expected exactly one terminal block, found %d", endCount))
	}

	return nil
}

// targetParams returns every label-resolved target parameter of a branch
// instruction (all of them, for `switch`; just the first, otherwise).
func targetParams(inst lexer.Instruction) []string {
	if inst.Opcode == "switch" {
		return inst.Params
	}

	return inst.Params[:1]
}
