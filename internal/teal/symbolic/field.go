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

// Package symbolic names the transaction-group symbolic variables the
// executor and detectors share (spec.md §6 "Named symbolic variables"),
// as a typed enumeration rather than bare strings (spec.md §9 Design
// Notes).
package symbolic

// Field identifies one named symbolic transaction/global field.
type Field int

// The fixed catalog of fields spec.md §6 names.
const (
	FieldSender Field = iota
	FieldReceiver
	FieldAmount
	FieldFee
	FieldRekeyTo
	FieldCloseRemainderTo
	FieldAssetCloseTo
	FieldAssetSender
	FieldAssetReceiver
	FieldAssetAmount
	FieldXferAsset
	FieldOnCompletion
	FieldApplicationID
	FieldType
	FieldTypeEnum
	// FieldGroupSize names the global "GroupSize" pseudo-field, which is
	// not per-index.
	FieldGroupSize
	// FieldGroupIndexVar names the bare "GroupIndex" scalar (own-index
	// context), which is also not per-index.
	FieldGroupIndexVar
)

func (f Field) String() string {
	switch f {
	case FieldSender:
		return "gtxn_Sender"
	case FieldReceiver:
		return "gtxn_Receiver"
	case FieldAmount:
		return "gtxn_Amount"
	case FieldFee:
		return "gtxn_Fee"
	case FieldRekeyTo:
		return "gtxn_RekeyTo"
	case FieldCloseRemainderTo:
		return "gtxn_CloseRemainderTo"
	case FieldAssetCloseTo:
		return "gtxn_AssetCloseTo"
	case FieldAssetSender:
		return "gtxn_AssetSender"
	case FieldAssetReceiver:
		return "gtxn_AssetReceiver"
	case FieldAssetAmount:
		return "gtxn_AssetAmount"
	case FieldXferAsset:
		return "gtxn_XferAsset"
	case FieldOnCompletion:
		return "gtxn_OnCompletion"
	case FieldApplicationID:
		return "gtxn_ApplicationID"
	case FieldType:
		return "gtxn_Type"
	case FieldTypeEnum:
		return "gtxn_TypeEnum"
	case FieldGroupSize:
		return "global_GroupSize"
	case FieldGroupIndexVar:
		return "GroupIndex"
	default:
		return "unknown"
	}
}

// bytesFields is the subset of per-index fields whose values are
// addresses or the "pay"/"axfer"/... type string, rather than a
// bit-vector-64.
var bytesFields = map[Field]bool{
	FieldSender:           true,
	FieldReceiver:         true,
	FieldRekeyTo:          true,
	FieldCloseRemainderTo: true,
	FieldAssetCloseTo:     true,
	FieldAssetSender:      true,
	FieldAssetReceiver:    true,
	FieldType:             true,
}

// ArraySort returns the SMT-LIB2 array sort f's per-group-index
// variable (f.String()) must be declared with before any query selects
// into it.
func (f Field) ArraySort() string {
	if f.IsBytes() {
		return "(Array (_ BitVec 64) String)"
	}

	return "(Array (_ BitVec 64) (_ BitVec 64))"
}

// IsBytes reports whether f's per-group-index values are byte strings
// (an address or the "pay"/"axfer"/... type string) rather than a
// uint64, matching ArraySort's declared element sort.
func (f Field) IsBytes() bool {
	return bytesFields[f]
}

// Ref is a (field, index) pair identifying one constrainable symbolic
// variable: e.g. Ref{FieldAmount, "1"} is the textual convention
// `gtxn_Amount[1]`, and Ref{FieldSender, "GroupIndex"} is
// `gtxn_Sender[GroupIndex]`. Index is ignored for the two scalar fields
// (FieldGroupSize, FieldGroupIndexVar).
type Ref struct {
	Field Field
	Index string
}

// String renders the textual convention spec.md §6 documents, so log
// messages and debugging stay readable even though detectors never
// re-parse this form (they index by the typed Ref).
func (r Ref) String() string {
	if r.Field == FieldGroupSize || r.Field == FieldGroupIndexVar {
		return r.Field.String()
	}

	return r.Field.String() + "[" + r.Index + "]"
}

// GroupIndexVar is the scalar "current own index" variable.
var GroupIndexVar = Ref{Field: FieldGroupIndexVar}

// GroupSizeVar is the scalar "global group size" variable.
var GroupSizeVar = Ref{Field: FieldGroupSize}
