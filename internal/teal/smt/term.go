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

// Package smt is the solver façade (spec.md §4.7): a small term AST that
// knows how to render itself as SMT-LIB2 syntax, and a Solver interface
// around a push/pop-scoped external backend. The AST shape mirrors the
// teacher's pkg/ir/picus Formula/Expr construction idiom (typed
// constructor functions building a tree that prints itself as an
// s-expression), retargeted from PCL to SMT-LIB2.
package smt

import "fmt"

// RelOp is a relational or equality operator.
type RelOp int

// The relational operators predicates build queries from.
const (
	OpEq RelOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op RelOp) smtSymbol() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "distinct"
	case OpLt:
		return "bvult"
	case OpLe:
		return "bvule"
	case OpGt:
		return "bvugt"
	case OpGe:
		return "bvuge"
	default:
		panic(fmt.Sprintf("unknown relational op: %d", op))
	}
}

// Term is an SMT-LIB2 term: either a boolean formula or a value
// expression. Every constructor below returns a Term.
type Term interface {
	// SExp renders this term as SMT-LIB2 syntax.
	SExp() string
}

// ---------------------------------------------------------------------
// Leaves
// ---------------------------------------------------------------------

// symbol is a named free variable, carrying the sort it must be
// declared with (declare-const name sort) the first time a query
// mentions it — see freeVars and ExternalSolver.declareFreeVarsLocked.
type symbol struct {
	name string
	sort string
}

func (s symbol) SExp() string { return s.name }

// Var constructs a reference to a named free bit-vector-64 scalar, e.g.
// Var("GroupIndex").
func Var(name string) Term { return symbol{name, "(_ BitVec 64)"} }

// Bytes constructs a reference to a named free string-sorted scalar,
// e.g. the hash-opcode result Var equivalent for byte-string values.
func Bytes(name string) Term { return symbol{name, "String"} }

// ArrayVar constructs a reference to a named free array-sorted
// variable, e.g. the per-group-index field arrays
// internal/teal/symbolic.Field.ArraySort declares (gtxn_Amount :
// "(Array (_ BitVec 64) (_ BitVec 64))", gtxn_Sender :
// "(Array (_ BitVec 64) String)").
func ArrayVar(name string, sort string) Term { return symbol{name, sort} }

// freeVars collects every distinct symbol term reaches, keyed by name,
// so a solver backend can declare each exactly once before the first
// query that mentions it.
func freeVars(t Term, out map[string]string) {
	switch v := t.(type) {
	case symbol:
		if _, ok := out[v.name]; !ok {
			out[v.name] = v.sort
		}
	case selectTerm:
		freeVars(v.array, out)
		freeVars(v.index, out)
	case predTerm:
		freeVars(v.left, out)
		freeVars(v.right, out)
	case connective:
		for _, sub := range v.terms {
			freeVars(sub, out)
		}
	}
}

type bv64Const struct{ value uint64 }

func (b bv64Const) SExp() string { return fmt.Sprintf("(_ bv%d 64)", b.value) }

// BV64 constructs a 64-bit bit-vector literal.
func BV64(value uint64) Term { return bv64Const{value} }

// boolConst is the literal `true`/`false` SMT-LIB2 keyword, kept
// distinct from symbol so freeVars never mistakes a reserved keyword
// for a free variable requiring declaration.
type boolConst struct{ value bool }

func (b boolConst) SExp() string {
	if b.value {
		return "true"
	}

	return "false"
}

type strConst struct{ value string }

func (s strConst) SExp() string { return fmt.Sprintf("%q", s.value) }

// Str constructs a string literal.
func Str(value string) Term { return strConst{value} }

// ZeroAddress is the 32-byte zero address rendered as the all-null
// 32-byte string spec.md's worked predicates compare against.
func ZeroAddress() Term { return strConst{string(make([]byte, 32))} }

// IsLiteral reports whether term is a ground constant (BV64 or Str),
// i.e. carries no symbolic/free content.
func IsLiteral(term Term) bool {
	switch term.(type) {
	case bv64Const, strConst:
		return true
	default:
		return false
	}
}

// LiteralUint64 extracts the value of a BV64 literal. It reports false
// for any other term shape, including symbolic terms and Str literals.
func LiteralUint64(term Term) (uint64, bool) {
	if bv, ok := term.(bv64Const); ok {
		return bv.value, true
	}

	return 0, false
}

// IsFormula reports whether term is already boolean-shaped (a relational
// predicate or a boolean connective), as opposed to a bit-vector/string
// value term. The executor uses this to decide whether a popped stack
// value should be used directly as a branch condition or compared
// against the bit-vector zero literal first.
func IsFormula(term Term) bool {
	switch term.(type) {
	case predTerm, connective:
		return true
	default:
		return false
	}
}

// AsBool normalizes term to a boolean formula: itself if already
// boolean-shaped, or `(distinct term (_ bv0 64))` otherwise.
func AsBool(term Term) Term {
	if IsFormula(term) {
		return term
	}

	return Ne(term, BV64(0))
}

// ---------------------------------------------------------------------
// Compound terms
// ---------------------------------------------------------------------

type selectTerm struct {
	array Term
	index Term
}

func (s selectTerm) SExp() string {
	return fmt.Sprintf("(select %s %s)", s.array.SExp(), s.index.SExp())
}

// Select builds the array-read term `(select array index)`, used for
// every per-group-index symbolic field (spec.md §6).
func Select(array Term, index Term) Term { return selectTerm{array, index} }

type predTerm struct {
	op    RelOp
	left  Term
	right Term
}

func (p predTerm) SExp() string {
	return fmt.Sprintf("(%s %s %s)", p.op.smtSymbol(), p.left.SExp(), p.right.SExp())
}

// Pred builds a generic relational term.
func Pred(op RelOp, left, right Term) Term { return predTerm{op, left, right} }

// Eq builds `(= left right)`.
func Eq(left, right Term) Term { return Pred(OpEq, left, right) }

// Ne builds `(distinct left right)`.
func Ne(left, right Term) Term { return Pred(OpNe, left, right) }

// Lt builds an unsigned less-than comparison.
func Lt(left, right Term) Term { return Pred(OpLt, left, right) }

// Gt builds an unsigned greater-than comparison.
func Gt(left, right Term) Term { return Pred(OpGt, left, right) }

// Ge builds an unsigned greater-than-or-equal comparison.
func Ge(left, right Term) Term { return Pred(OpGe, left, right) }

type connective struct {
	symbol string
	terms  []Term
}

func (c connective) SExp() string {
	s := "(" + c.symbol
	for _, t := range c.terms {
		s += " " + t.SExp()
	}

	return s + ")"
}

// And builds a conjunction of zero or more terms (the empty conjunction
// renders as `true`).
func And(terms ...Term) Term {
	if len(terms) == 0 {
		return boolConst{true}
	}

	return connective{"and", terms}
}

// Or builds a disjunction of zero or more terms.
func Or(terms ...Term) Term {
	if len(terms) == 0 {
		return boolConst{false}
	}

	return connective{"or", terms}
}

// Not builds a negation.
func Not(term Term) Term { return connective{"not", []Term{term}} }
