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

// Package opcodes is the static TEAL v8 opcode metadata asset the lexer
// and executor consume as a collaborator (spec.md §1, §6): arity, mode
// compatibility, and symbolic stack effect (push/pop counts) used by the
// executor's opaque fallback handler for opcodes it does not model in
// detail.
package opcodes

// Info describes one opcode's static metadata.
type Info struct {
	// Arity is the number of whitespace-separated parameters the opcode
	// takes; -1 marks a variadic opcode (spec.md §4.1).
	Arity int
	// App reports whether the opcode is legal in application mode.
	App bool
	// Sig reports whether the opcode is legal in signature mode.
	Sig bool
	// Pops is how many stack values the opcode consumes.
	Pops int
	// Pushes is how many stack values the opcode produces.
	Pushes int
}

// Table is the TEAL v8 opcode catalog. It is not exhaustive of the real
// AVM instruction set (spec.md treats the full interpreter as an
// out-of-scope collaborator); it covers every opcode referenced by the
// lexer, the basic-block builder, the symbolic executor's opcode
// handlers (internal/teal/exec/ops.go) and the worked examples in
// spec.md §8, plus the common stack/arithmetic/branch core.
var Table = map[string]Info{
	// Control flow.
	"bnz":      {Arity: 1, App: true, Sig: true, Pops: 1, Pushes: 0},
	"bz":       {Arity: 1, App: true, Sig: true, Pops: 1, Pushes: 0},
	"b":        {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 0},
	"switch":   {Arity: -1, App: true, Sig: true, Pops: 1, Pushes: 0},
	"callsub":  {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 0},
	"retsub":   {Arity: 0, App: true, Sig: true, Pops: 0, Pushes: 0},
	"return":   {Arity: 0, App: true, Sig: true, Pops: 1, Pushes: 0},
	"err":      {Arity: 0, App: true, Sig: true, Pops: 0, Pushes: 0},
	"pop":      {Arity: 0, App: true, Sig: true, Pops: 1, Pushes: 0},
	"dup":      {Arity: 0, App: true, Sig: true, Pops: 1, Pushes: 2},
	"dup2":     {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 4},
	"swap":     {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 2},

	// Literals.
	"intcblock":  {Arity: -1, App: true, Sig: true, Pops: 0, Pushes: 0},
	"bytecblock": {Arity: -1, App: true, Sig: true, Pops: 0, Pushes: 0},
	"int":        {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},
	"intc":       {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},
	"intc_0":     {Arity: 0, App: true, Sig: true, Pops: 0, Pushes: 1},
	"intc_1":     {Arity: 0, App: true, Sig: true, Pops: 0, Pushes: 1},
	"intc_2":     {Arity: 0, App: true, Sig: true, Pops: 0, Pushes: 1},
	"intc_3":     {Arity: 0, App: true, Sig: true, Pops: 0, Pushes: 1},
	"byte":       {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},
	"bytec":      {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},
	"pushint":    {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},
	"pushbytes":  {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},

	// Arithmetic / comparison / boolean.
	"+":   {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"-":   {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"*":   {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"/":   {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"%":   {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"==":  {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"!=":  {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"<":   {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"<=":  {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	">":   {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	">=":  {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"&&":  {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"||":  {Arity: 0, App: true, Sig: true, Pops: 2, Pushes: 1},
	"!":   {Arity: 0, App: true, Sig: true, Pops: 1, Pushes: 1},

	// Hashing (defeats most detectors, see Configuration.SymbolicHashVariableUsed).
	"sha256":     {Arity: 0, App: true, Sig: true, Pops: 1, Pushes: 1},
	"keccak256":  {Arity: 0, App: true, Sig: true, Pops: 1, Pushes: 1},
	"sha512_256": {Arity: 0, App: true, Sig: true, Pops: 1, Pushes: 1},

	// Scratch space.
	"store": {Arity: 1, App: true, Sig: true, Pops: 1, Pushes: 0},
	"load":  {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},

	// Transaction field access.
	"txn":    {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},
	"gtxn":   {Arity: 2, App: true, Sig: true, Pops: 0, Pushes: 1},
	"gtxns":  {Arity: 1, App: true, Sig: true, Pops: 1, Pushes: 1},
	"global": {Arity: 1, App: true, Sig: true, Pops: 0, Pushes: 1},

	// State, only legal in application mode.
	"app_global_get": {Arity: 0, App: true, Sig: false, Pops: 1, Pushes: 1},
	"app_global_put": {Arity: 0, App: true, Sig: false, Pops: 2, Pushes: 0},
	"app_local_get":  {Arity: 0, App: true, Sig: false, Pops: 2, Pushes: 1},
	"app_local_put":  {Arity: 0, App: true, Sig: false, Pops: 3, Pushes: 0},

	// Inner transactions, only legal in application mode.
	"itxn_begin":  {Arity: 0, App: true, Sig: false, Pops: 0, Pushes: 0},
	"itxn_field":  {Arity: 1, App: true, Sig: false, Pops: 1, Pushes: 0},
	"itxn_submit": {Arity: 0, App: true, Sig: false, Pops: 0, Pushes: 0},
}

// ParamsNumber returns the declared arity of opcode, or -1 if variadic or
// unknown (unknown opcodes are treated permissively as variadic so a
// lexer extension gap never blocks analysis of otherwise-valid source).
func ParamsNumber(opcode string) int {
	if info, ok := Table[opcode]; ok {
		return info.Arity
	}

	return -1
}

// SupportApplicationMode reports whether opcode may appear in a smart
// contract (application) program.
func SupportApplicationMode(opcode string) bool {
	if info, ok := Table[opcode]; ok {
		return info.App
	}

	return true
}

// SupportSignatureMode reports whether opcode may appear in a logic
// signature program.
func SupportSignatureMode(opcode string) bool {
	if info, ok := Table[opcode]; ok {
		return info.Sig
	}

	return true
}

// StackEffect returns the (pops, pushes) pair used by the executor's
// opaque fallback handler for opcodes without a dedicated handler.
func StackEffect(opcode string) (pops int, pushes int) {
	if info, ok := Table[opcode]; ok {
		return info.Pops, info.Pushes
	}

	return 0, 1
}
