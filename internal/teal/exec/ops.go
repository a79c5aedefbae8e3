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
	"fmt"
	"strconv"
	"strings"

	"github.com/tealsec/tealsec/internal/teal/lexer"
	"github.com/tealsec/tealsec/internal/teal/opcodes"
	"github.com/tealsec/tealsec/internal/teal/smt"
	"github.com/tealsec/tealsec/internal/teal/symbolic"
)

// Handler applies one instruction's effect to cfg. Branch-family
// opcodes (bnz, bz, b, callsub, retsub, return, err) are handled by the
// explorer directly, since they affect control flow rather than just
// the Configuration.
type Handler func(cfg *Configuration, inst lexer.Instruction)

// groupIndexVar is the symbolic own-index scalar opTxn keys its field
// reads against, mirroring detect's identically-named helper.
var groupIndexVar = smt.Var(symbolic.GroupIndexVar.String())

var fieldByName = map[string]symbolic.Field{
	"Sender":            symbolic.FieldSender,
	"Receiver":          symbolic.FieldReceiver,
	"Amount":            symbolic.FieldAmount,
	"Fee":               symbolic.FieldFee,
	"RekeyTo":           symbolic.FieldRekeyTo,
	"CloseRemainderTo":  symbolic.FieldCloseRemainderTo,
	"AssetCloseTo":      symbolic.FieldAssetCloseTo,
	"AssetSender":       symbolic.FieldAssetSender,
	"AssetReceiver":     symbolic.FieldAssetReceiver,
	"AssetAmount":       symbolic.FieldAssetAmount,
	"XferAsset":         symbolic.FieldXferAsset,
	"OnCompletion":      symbolic.FieldOnCompletion,
	"ApplicationID":     symbolic.FieldApplicationID,
	"Type":              symbolic.FieldType,
	"TypeEnum":          symbolic.FieldTypeEnum,
}

// handlers is the dispatch table used by the explorer for every
// non-terminator instruction.
var handlers = map[string]Handler{
	"int":       opPushInt,
	"pushint":   opPushInt,
	"intc":      opPushInt,
	"intc_0":    opPushIndexedIntc,
	"intc_1":    opPushIndexedIntc,
	"intc_2":    opPushIndexedIntc,
	"intc_3":    opPushIndexedIntc,
	"byte":      opPushBytes,
	"bytec":     opPushBytes,
	"pushbytes": opPushBytes,

	"+":  opArith,
	"-":  opArith,
	"*":  opArith,
	"/":  opArith,
	"%":  opArith,
	"==": opCompare(smt.OpEq),
	"!=": opCompare(smt.OpNe),
	"<":  opCompare(smt.OpLt),
	"<=": opCompare(smt.OpLe),
	">":  opCompare(smt.OpGt),
	">=": opCompare(smt.OpGe),
	"&&": opAnd,
	"||": opOr,
	"!":  opNot,

	"pop":  opPop,
	"dup":  opDup,
	"dup2": opDup2,
	"swap": opSwap,

	"store": opStore,
	"load":  opLoad,

	"txn":    opTxn,
	"gtxn":   opGtxn,
	"gtxns":  opGtxns,
	"global": opGlobal,

	"app_global_get": opAppGlobalGet,
	"app_global_put": opAppGlobalPut,
	"app_local_get":  opAppLocalGet,
	"app_local_put":  opAppLocalPut,

	"itxn_begin":  opNoop,
	"itxn_field":  opItxnField,
	"itxn_submit": opItxnSubmit,

	"sha256":     opHash,
	"keccak256":  opHash,
	"sha512_256": opHash,

	"intcblock":  opNoop,
	"bytecblock": opNoop,
}

// Apply dispatches inst to its handler, or to the opaque fallback if
// none is registered (spec.md §4.5's added "Opcode interpreter
// collaborator" note in SPEC_FULL.md §4.5).
func Apply(cfg *Configuration, inst lexer.Instruction) {
	cfg.MarkOpcode(inst.Opcode)

	if h, ok := handlers[inst.Opcode]; ok {
		h(cfg, inst)
		return
	}

	opaqueFallback(cfg, inst)
}

func opaqueFallback(cfg *Configuration, inst lexer.Instruction) {
	pops, pushes := opcodes.StackEffect(inst.Opcode)

	for i := 0; i < pops; i++ {
		cfg.Pop()
	}

	for i := 0; i < pushes; i++ {
		name := fmt.Sprintf("op_%s_%d_%d", inst.Opcode, inst.Address, i)
		cfg.Push(StackValue{Term: smt.Var(name)})
	}
}

func opNoop(cfg *Configuration, inst lexer.Instruction) {}

func opPushInt(cfg *Configuration, inst lexer.Instruction) {
	if len(inst.Params) == 0 {
		cfg.Push(StackValue{Term: smt.BV64(0)})
		return
	}

	if v, err := strconv.ParseUint(inst.Params[0], 10, 64); err == nil {
		cfg.Push(StackValue{Term: smt.BV64(v)})
		return
	}

	cfg.Push(StackValue{Term: smt.Var("const_" + inst.Params[0])})
}

func opPushIndexedIntc(cfg *Configuration, inst lexer.Instruction) {
	cfg.Push(StackValue{Term: smt.Var("intc_" + inst.Opcode[len("intc_"):])})
}

func opPushBytes(cfg *Configuration, inst lexer.Instruction) {
	if len(inst.Params) == 0 {
		cfg.Push(StackValue{Term: smt.Str(""), IsBytes: true})
		return
	}

	cfg.Push(StackValue{Term: smt.Str(strings.Trim(inst.Params[0], "\"")), IsBytes: true})
}

func opArith(cfg *Configuration, inst lexer.Instruction) {
	cfg.Pop()
	cfg.Pop()
	cfg.Push(StackValue{Term: smt.Var(fmt.Sprintf("arith_%d", inst.Address))})
}

func opCompare(op smt.RelOp) Handler {
	return func(cfg *Configuration, inst lexer.Instruction) {
		b := cfg.Pop()
		a := cfg.Pop()
		term := smt.Pred(op, a.Term, b.Term)
		cfg.Push(StackValue{Term: term, Refs: append(append([]symbolic.Ref{}, a.Refs...), b.Refs...)})
	}
}

func opAnd(cfg *Configuration, inst lexer.Instruction) {
	b := cfg.Pop()
	a := cfg.Pop()
	term := smt.And(smt.AsBool(a.Term), smt.AsBool(b.Term))
	cfg.Push(StackValue{Term: term, Refs: append(append([]symbolic.Ref{}, a.Refs...), b.Refs...)})
}

func opOr(cfg *Configuration, inst lexer.Instruction) {
	b := cfg.Pop()
	a := cfg.Pop()
	term := smt.Or(smt.AsBool(a.Term), smt.AsBool(b.Term))
	cfg.Push(StackValue{Term: term, Refs: append(append([]symbolic.Ref{}, a.Refs...), b.Refs...)})
}

func opNot(cfg *Configuration, inst lexer.Instruction) {
	a := cfg.Pop()
	cfg.Push(StackValue{Term: smt.Not(smt.AsBool(a.Term)), Refs: a.Refs})
}

func opPop(cfg *Configuration, inst lexer.Instruction) { cfg.Pop() }

func opDup(cfg *Configuration, inst lexer.Instruction) {
	top := cfg.Pop()
	cfg.Push(top)
	cfg.Push(top)
}

func opDup2(cfg *Configuration, inst lexer.Instruction) {
	b := cfg.Pop()
	a := cfg.Pop()
	cfg.Push(a)
	cfg.Push(b)
	cfg.Push(a)
	cfg.Push(b)
}

func opSwap(cfg *Configuration, inst lexer.Instruction) {
	b := cfg.Pop()
	a := cfg.Pop()
	cfg.Push(b)
	cfg.Push(a)
}

func opStore(cfg *Configuration, inst lexer.Instruction) {
	v := cfg.Pop()

	slot, err := slotIndex(inst)
	if err != nil {
		return
	}

	cfg.Scratch[slot] = v
}

func opLoad(cfg *Configuration, inst lexer.Instruction) {
	slot, err := slotIndex(inst)
	if err != nil {
		cfg.Push(StackValue{Term: smt.BV64(0)})
		return
	}

	cfg.Push(cfg.Scratch[slot])
}

func slotIndex(inst lexer.Instruction) (int, error) {
	if len(inst.Params) == 0 {
		return 0, fmt.Errorf("missing scratch slot operand")
	}

	return strconv.Atoi(inst.Params[0])
}

// opTxn models reading a field of the program's own transaction. It is
// indexed the same way a gtxns read with a symbolic (non-literal) index
// would be — Ref{field, "GroupIndex"} — since "own transaction" just
// means "the transaction at this program's own group index", which is
// exactly the index the detection registry's own-sender and app-area
// guards query.
func opTxn(cfg *Configuration, inst lexer.Instruction) {
	field := ""
	if len(inst.Params) > 0 {
		field = inst.Params[0]
	}

	pushFieldRead(cfg, field, "GroupIndex", groupIndexVar)
}

func opGtxn(cfg *Configuration, inst lexer.Instruction) {
	if len(inst.Params) < 2 {
		cfg.Push(StackValue{Term: smt.BV64(0)})
		return
	}

	index := inst.Params[0]
	fieldName := inst.Params[1]
	pushFieldRead(cfg, fieldName, index, smt.BV64(mustUint(index)))
}

func opGtxns(cfg *Configuration, inst lexer.Instruction) {
	idx := cfg.Pop()

	fieldName := ""
	if len(inst.Params) > 0 {
		fieldName = inst.Params[0]
	}

	index := "GroupIndex"
	indexTerm := groupIndexVar
	if v, ok := smt.LiteralUint64(idx.Term); ok {
		index = strconv.FormatUint(v, 10)
		indexTerm = idx.Term
	}

	pushFieldRead(cfg, fieldName, index, indexTerm)
}

func pushFieldRead(cfg *Configuration, fieldName string, index string, indexTerm smt.Term) {
	cfg.RecordGtxnIndex(index)

	field, ok := fieldByName[fieldName]
	if !ok {
		cfg.Push(StackValue{Term: smt.Var("gtxn_" + fieldName + "_" + index)})
		return
	}

	ref := symbolic.Ref{Field: field, Index: index}
	term := smt.Select(smt.ArrayVar(field.String(), field.ArraySort()), indexTerm)
	cfg.Push(StackValue{Term: term, IsBytes: field.IsBytes(), Refs: []symbolic.Ref{ref}})
}

func opGlobal(cfg *Configuration, inst lexer.Instruction) {
	name := ""
	if len(inst.Params) > 0 {
		name = inst.Params[0]
	}

	switch name {
	case "GroupSize":
		cfg.Push(StackValue{Term: smt.Var(symbolic.FieldGroupSize.String()), Refs: []symbolic.Ref{symbolic.GroupSizeVar}})
	case "LatestTimestamp":
		cfg.MarkOpcode("timestamp")
		cfg.Push(StackValue{Term: smt.Var("global_LatestTimestamp")})
	default:
		cfg.Push(StackValue{Term: smt.Var("global_" + name)})
	}
}

func opAppGlobalGet(cfg *Configuration, inst lexer.Instruction) {
	key := cfg.Pop()
	keyStr := key.Term.SExp()

	if v, ok := cfg.GlobalBytes[keyStr]; ok {
		cfg.Push(StackValue{Term: v, IsBytes: true})
		return
	}

	if v, ok := cfg.GlobalUint[keyStr]; ok {
		cfg.Push(StackValue{Term: v})
		return
	}

	cfg.Push(StackValue{Term: smt.Var("global_state_" + keyStr)})
}

func opAppGlobalPut(cfg *Configuration, inst lexer.Instruction) {
	value := cfg.Pop()
	key := cfg.Pop()
	keyStr := key.Term.SExp()

	if value.IsBytes {
		cfg.GlobalBytes[keyStr] = value.Term
	} else {
		cfg.GlobalUint[keyStr] = value.Term
	}
}

func opAppLocalGet(cfg *Configuration, inst lexer.Instruction) {
	key := cfg.Pop()
	account := cfg.Pop()
	cfg.RecordLocalUser(account.Term.SExp())

	acctKey := account.Term.SExp()
	keyStr := key.Term.SExp()

	if v, ok := cfg.LocalBytes[acctKey][keyStr]; ok {
		cfg.Push(StackValue{Term: v, IsBytes: true})
		return
	}

	if v, ok := cfg.LocalUint[acctKey][keyStr]; ok {
		cfg.Push(StackValue{Term: v})
		return
	}

	cfg.Push(StackValue{Term: smt.Var("local_state_" + acctKey + "_" + keyStr)})
}

func opAppLocalPut(cfg *Configuration, inst lexer.Instruction) {
	value := cfg.Pop()
	key := cfg.Pop()
	account := cfg.Pop()
	cfg.RecordLocalUser(account.Term.SExp())

	acctKey := account.Term.SExp()
	keyStr := key.Term.SExp()

	if value.IsBytes {
		if cfg.LocalBytes[acctKey] == nil {
			cfg.LocalBytes[acctKey] = make(map[string]smt.Term)
		}

		cfg.LocalBytes[acctKey][keyStr] = value.Term
	} else {
		if cfg.LocalUint[acctKey] == nil {
			cfg.LocalUint[acctKey] = make(map[string]smt.Term)
		}

		cfg.LocalUint[acctKey][keyStr] = value.Term
	}
}

func opItxnField(cfg *Configuration, inst lexer.Instruction) {
	value := cfg.Pop()

	if len(inst.Params) > 0 && inst.Params[0] == "Fee" && !smt.IsLiteral(value.Term) {
		cfg.SymbolicInnerTxnFee = true
	}
}

func opItxnSubmit(cfg *Configuration, inst lexer.Instruction) {}

func opHash(cfg *Configuration, inst lexer.Instruction) {
	cfg.Pop()
	cfg.SymbolicHashVariableUsed = true
	cfg.Push(StackValue{Term: smt.Bytes(fmt.Sprintf("hash_%d", inst.Address)), IsBytes: true})
}

func mustUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}

	return v
}
