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

// Package exitcode names the distinct process exit codes produced by a
// fatal pre-analysis failure (see spec.md §6, §7).
package exitcode

// Code identifies a specific fatal failure class.
type Code int

const (
	// Success indicates the analysis ran to completion.
	Success Code = 0
	// ParseInstructionsFailed indicates the lexer rejected the source file
	// (missing/invalid pragma, unsupported version, arity or mode violation,
	// dangling label at EOF).
	ParseInstructionsFailed Code = 1
	// ParseLabelsFailed indicates a branch referenced an undeclared label.
	ParseLabelsFailed Code = 2
	// IncorrectBlockConstruction indicates the basic-block builder found a
	// branch target that is not a block start address, or did not find
	// exactly one terminal block.
	IncorrectBlockConstruction Code = 3
	// IncludeValidatorFailed indicates the application inliner detected a
	// validator reference it could not resolve (as opposed to simply not
	// finding one, which is not an error).
	IncludeValidatorFailed Code = 4
	// Timeout indicates the global wall-clock budget for the analysis
	// elapsed before exploration completed.
	Timeout Code = 5
)

// Error wraps an underlying cause with the exit code its caller should
// translate it into at the process boundary (cmd/tealsec).
type Error struct {
	Code  Code
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Cause.Error()
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap constructs a new Error tagging cause with code.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// String renders a human-readable name for the code, used in log output.
func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case ParseInstructionsFailed:
		return "parse-instructions-failed"
	case ParseLabelsFailed:
		return "parse-labels-failed"
	case IncorrectBlockConstruction:
		return "incorrect-block-construction"
	case IncludeValidatorFailed:
		return "include-validator-failed"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}
