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

// Package exec is the symbolic execution driver (spec.md §4.5): the
// Configuration data model, an opaque-fallback opcode handler registry
// (ops.go) that makes the driver concretely runnable, and the DFS path
// explorer (explore.go) that forks at branches and hands terminal
// configurations to the detection registry.
package exec

import (
	"github.com/tealsec/tealsec/internal/teal/smt"
	"github.com/tealsec/tealsec/internal/teal/symbolic"
)

// StackValue is one symbolic stack cell: a tagged SMT term, bit-vector-64
// or byte-string (spec.md §3). Refs carries the named symbolic fields
// (spec.md §6) this value was derived from, so a later comparison that
// consumes it can tell the executor which fields its resulting branch
// condition should be indexed against (see Configuration.AddConstraint).
type StackValue struct {
	Term    smt.Term
	IsBytes bool
	Refs    []symbolic.Ref
}

// OpcodeRecord tracks, per path, whether each of a fixed set of opcodes
// has executed, plus the group-transaction indices referenced and the
// account values passed to app_local_* (spec.md §3). Entries are never
// cleared (I5).
type OpcodeRecord struct {
	Seen       map[string]bool
	GtxnIndex  map[string]bool
	LocalUsers map[string]bool
}

func newOpcodeRecord() OpcodeRecord {
	return OpcodeRecord{
		Seen:       make(map[string]bool),
		GtxnIndex:  make(map[string]bool),
		LocalUsers: make(map[string]bool),
	}
}

func (r OpcodeRecord) clone() OpcodeRecord {
	c := newOpcodeRecord()
	for k, v := range r.Seen {
		c.Seen[k] = v
	}

	for k := range r.GtxnIndex {
		c.GtxnIndex[k] = true
	}

	for k := range r.LocalUsers {
		c.LocalUsers[k] = true
	}

	return c
}

// GroupIndexSet returns the de-duplicated list of referenced group
// indices, the `gtxn_index` set spec.md's predicates iterate over.
func (r OpcodeRecord) GroupIndexSet() []string {
	out := make([]string, 0, len(r.GtxnIndex))
	for k := range r.GtxnIndex {
		out = append(out, k)
	}

	return out
}

// Configuration is the symbolic state of one execution path (spec.md
// §3). Instructions and blocks are shared read-only across all paths;
// a Configuration exclusively owns everything below.
type Configuration struct {
	Stack []StackValue

	// Scratch models the 256-slot scratch memory as a single array of
	// typed values rather than spec.md §3's two parallel arrays
	// (scratch_space_return_uint / _bytes): TEAL's store/load opcodes
	// are untyped at the slot (a single pair of opcodes, the value
	// itself carries its type), so two term arrays duplicating the same
	// slot would never disagree in practice. ScratchUintAt/ScratchBytesAt
	// below reconstruct the two-views-of-one-memory semantics the spec
	// describes, including the zero/empty-string default (I4).
	Scratch [256]StackValue

	GlobalUint  map[string]smt.Term
	GlobalBytes map[string]smt.Term

	LocalUint  map[string]map[string]smt.Term
	LocalBytes map[string]map[string]smt.Term

	Opcodes OpcodeRecord

	PathConstraints []smt.Term
	constraintIndex map[symbolic.Ref][]smt.Term

	SymbolicHashVariableUsed bool
	SymbolicInnerTxnFee      bool

	// AppArea reports whether the walk is currently executing inside the
	// App Inliner's spliced application body (spec.md §4.6 "executing
	// inside an inlined application body"). It is not set once at init;
	// the explorer derives it from PC against AppAreaStart every time a
	// block begins, so the LSig-body reject path (the `err` the
	// `return -> bnz app_label\nerr` rewrite introduces) is correctly
	// seen as outside the application body.
	AppArea bool

	// AppAreaStart is the address of the App Inliner's `app_label:`
	// splice point, or -1 when this run has no inlined application body
	// (plain analysis, or --inline wasn't requested). Once PC reaches
	// this address it never falls back below it, since the inliner only
	// ever appends the application body at higher addresses than the
	// logic signature that calls into it.
	AppAreaStart int

	// GroupIndexString is the textual group-index context the logic
	// signature predicates check the sender-constrained guard against
	// when AppArea is set (spec.md §4.6 "executing inside an inlined
	// application body"): the inliner's recorded call index
	// (gtxn N / gtxns / own txn), or "GroupIndex" outside an inlined
	// body.
	GroupIndexString string

	// Version is the program's declared #pragma version, used by
	// unchecked_RekeyTo_in_lsig (rekey-to did not exist in TEAL v1).
	Version int

	PC        int
	CallStack []int
}

// New constructs the initial Configuration at program entry (spec.md
// §3 "Lifecycle"): scratch is zero-initialized for all 256 slots (I4),
// everything else starts empty.
func New() *Configuration {
	c := &Configuration{
		GlobalUint:       make(map[string]smt.Term),
		GlobalBytes:      make(map[string]smt.Term),
		LocalUint:        make(map[string]map[string]smt.Term),
		LocalBytes:       make(map[string]map[string]smt.Term),
		Opcodes:          newOpcodeRecord(),
		constraintIndex:  make(map[symbolic.Ref][]smt.Term),
		AppAreaStart:     -1,
		GroupIndexString: "GroupIndex",
	}

	for i := 0; i < 256; i++ {
		c.Scratch[i] = StackValue{Term: smt.BV64(0)}
	}

	return c
}

// ScratchUintAt returns slot k's value under the uint64 view (I4: zero
// when the slot currently holds a byte-string or has never been
// written).
func (c *Configuration) ScratchUintAt(k int) smt.Term {
	if v := c.Scratch[k]; !v.IsBytes {
		return v.Term
	}

	return smt.BV64(0)
}

// ScratchBytesAt returns slot k's value under the byte-string view (I4:
// empty when the slot currently holds a uint64).
func (c *Configuration) ScratchBytesAt(k int) smt.Term {
	if v := c.Scratch[k]; v.IsBytes {
		return v.Term
	}

	return smt.Str("")
}

// Clone deep-copies this Configuration so a branch fork owns its own
// state (spec.md §3 "Ownership"). Design Notes §9 suggests persistent/
// copy-on-write structures for logarithmic forking; this implementation
// takes the straightforward O(n) deep copy instead, since TEAL programs
// and transaction groups are small (≤16) enough that this never
// dominates analysis time, and defers the optimisation (see DESIGN.md).
func (c *Configuration) Clone() *Configuration {
	clone := &Configuration{
		Stack:                    append([]StackValue(nil), c.Stack...),
		Scratch:                  c.Scratch,
		GlobalUint:               cloneTermMap(c.GlobalUint),
		GlobalBytes:              cloneTermMap(c.GlobalBytes),
		LocalUint:                cloneNestedTermMap(c.LocalUint),
		LocalBytes:               cloneNestedTermMap(c.LocalBytes),
		Opcodes:                  c.Opcodes.clone(),
		PathConstraints:          append([]smt.Term(nil), c.PathConstraints...),
		constraintIndex:          cloneConstraintIndex(c.constraintIndex),
		SymbolicHashVariableUsed: c.SymbolicHashVariableUsed,
		SymbolicInnerTxnFee:      c.SymbolicInnerTxnFee,
		AppArea:                  c.AppArea,
		AppAreaStart:             c.AppAreaStart,
		GroupIndexString:         c.GroupIndexString,
		Version:                  c.Version,
		PC:                       c.PC,
		CallStack:                append([]int(nil), c.CallStack...),
	}

	return clone
}

// Push pushes a value onto the symbolic stack.
func (c *Configuration) Push(v StackValue) {
	c.Stack = append(c.Stack, v)
}

// Pop pops the top of the symbolic stack, or the bit-vector literal zero
// if the stack is (incorrectly, for this reduced model) empty.
func (c *Configuration) Pop() StackValue {
	if len(c.Stack) == 0 {
		return StackValue{Term: smt.BV64(0)}
	}

	top := c.Stack[len(c.Stack)-1]
	c.Stack = c.Stack[:len(c.Stack)-1]

	return top
}

// MarkOpcode records that opcode executed on this path (I5: never
// cleared).
func (c *Configuration) MarkOpcode(opcode string) {
	c.Opcodes.Seen[opcode] = true
}

// RecordGtxnIndex records a group-transaction index referenced on this
// path.
func (c *Configuration) RecordGtxnIndex(index string) {
	c.Opcodes.GtxnIndex[index] = true
}

// RecordLocalUser records an account value passed to app_local_*.
func (c *Configuration) RecordLocalUser(value string) {
	c.Opcodes.LocalUsers[value] = true
}

// AddConstraint appends term to the accumulated path constraints and
// indexes it against every symbolic.Ref it mentions (spec.md §9 Design
// Notes: a typed (Field, Index) index maintained alongside
// path_constraints, rather than re-scanning constraint ASTs per query).
func (c *Configuration) AddConstraint(term smt.Term, refs ...symbolic.Ref) {
	c.PathConstraints = append(c.PathConstraints, term)

	for _, ref := range refs {
		c.constraintIndex[ref] = append(c.constraintIndex[ref], term)
	}
}

// IsConstrained reports whether ref occurs in at least one accumulated
// path constraint (the "constrained variable" concept of spec.md §4.6).
func (c *Configuration) IsConstrained(ref symbolic.Ref) bool {
	return len(c.constraintIndex[ref]) > 0
}

func cloneTermMap(m map[string]smt.Term) map[string]smt.Term {
	out := make(map[string]smt.Term, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

func cloneNestedTermMap(m map[string]map[string]smt.Term) map[string]map[string]smt.Term {
	out := make(map[string]map[string]smt.Term, len(m))
	for k, v := range m {
		out[k] = cloneTermMap(v)
	}

	return out
}

func cloneConstraintIndex(m map[symbolic.Ref][]smt.Term) map[symbolic.Ref][]smt.Term {
	out := make(map[symbolic.Ref][]smt.Term, len(m))
	for k, v := range m {
		out[k] = append([]smt.Term(nil), v...)
	}

	return out
}
