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
package lexer

import (
	"fmt"
	"strconv"

	"github.com/tealsec/tealsec/internal/teal/exitcode"
)

var branchOpcodes = map[string]bool{
	"bnz": true, "bz": true, "b": true, "callsub": true,
}

// ResolveLabels walks instructions once to collect every declared label's
// address, then rewrites every branch-family parameter (and every
// `switch` target) in place from its label to its resolved address
// (spec.md §4.2). Resolution is idempotent: running it again on an
// already-resolved stream is a no-op, since params are by then numeric
// and no longer match any label name.
func ResolveLabels(instructions []Instruction) error {
	labels := make(map[string]int, len(instructions))

	for _, inst := range instructions {
		if inst.Label != "" {
			labels[inst.Label] = inst.Address
		}
	}

	for i := range instructions {
		inst := &instructions[i]

		switch {
		case branchOpcodes[inst.Opcode]:
			if len(inst.Params) == 0 {
				continue
			}

			addr, err := resolveOne(labels, inst.Params[0])
			if err != nil {
				return exitcode.Wrap(exitcode.ParseLabelsFailed,
					&SyntaxError{inst.LineNumber, err.Error()})
			}

			inst.Params[0] = strconv.Itoa(addr)
		case inst.Opcode == "switch":
			for p := range inst.Params {
				addr, err := resolveOne(labels, inst.Params[p])
				if err != nil {
					return exitcode.Wrap(exitcode.ParseLabelsFailed,
						&SyntaxError{inst.LineNumber, err.Error()})
				}

				inst.Params[p] = strconv.Itoa(addr)
			}
		}
	}

	return nil
}

// resolveOne resolves a single label token to an address. A token that is
// already numeric (i.e. this instruction was previously resolved) is
// passed through unchanged, making resolution idempotent.
func resolveOne(labels map[string]int, token string) (int, error) {
	if addr, err := strconv.Atoi(token); err == nil {
		return addr, nil
	}

	addr, ok := labels[token]
	if !ok {
		return 0, fmt.Errorf("invalid label %q", token)
	}

	return addr, nil
}
