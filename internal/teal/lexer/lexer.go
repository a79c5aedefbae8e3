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

// Package lexer implements the TEAL front-end: tokenizing a source file
// into an address-ordered instruction stream and resolving symbolic
// labels to addresses (spec.md §4.1, §4.2).
package lexer

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/tealsec/tealsec/internal/teal/exitcode"
	"github.com/tealsec/tealsec/internal/teal/opcodes"
)

// SyntaxError is a fatal, source-line-annotated lexing or label-resolution
// failure (spec.md §4.1 "Errors"). It is always wrapped in an
// *exitcode.Error by Lex/ResolveLabels before being returned.
type SyntaxError struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Instruction is one ordered record in the parsed program (spec.md §3).
type Instruction struct {
	Address    int
	Opcode     string
	Params     []string
	Label      string
	LineNumber int
	Comment    string
}

// Mode selects which opcode legality table the lexer enforces.
type Mode int

const (
	// ModeApplication enforces application-mode opcode legality.
	ModeApplication Mode = iota
	// ModeSignature enforces signature-mode opcode legality.
	ModeSignature
)

var branchFamily = map[string]bool{
	"bnz": true, "bz": true, "b": true, "callsub": true,
}

var terminators = map[string]bool{
	"bnz": true, "bz": true, "b": true, "callsub": true, "retsub": true,
}

var pragmaRe = regexp.MustCompile(`^#pragma\s+version\s+(\d+)\s*$`)
var labelRe = regexp.MustCompile(`^([a-zA-Z0-9_]+):(.*)$`)
var byteLiteralRe = regexp.MustCompile(`^(byte\s+"(?:[^"\\]|\\.)*")`)
var pushbytesLiteralRe = regexp.MustCompile(`^(pushbytes\s+"(?:[^"\\]|\\.)*")`)

// Lex parses r (a TEAL source file) into an address-ordered instruction
// stream. skipChecks, when true, disables arity and mode-legality
// validation — used for sources already produced by the App Inliner
// (spec.md §4.1), whose spliced application body may legitimately use
// opcodes forbidden in the caller's own mode.
func Lex(r io.Reader, mode Mode, skipChecks bool) ([]Instruction, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	version, err := readVersion(scanner)
	if err != nil {
		return nil, 0, err
	}

	var (
		instructions []Instruction
		pendingLabel string
		haveLabel    bool
		lineNumber   = 1
		address      = 0
		sawEOF       = false
	)

	for {
		lineNumber++

		var line string

		if scanner.Scan() {
			line = scanner.Text()
		} else {
			if n := len(instructions); n > 0 && (instructions[n-1].Opcode == "return" || instructions[n-1].Opcode == "err") {
				break
			}

			// File ended without a terminating instruction; synthesize one
			// so the block builder always has a well-defined terminal
			// block (spec.md §4.1).
			line = "return"
			sawEOF = true
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			if sawEOF {
				break
			}

			continue
		}

		trimmed = stripComment(trimmed)

		if m := labelRe.FindStringSubmatch(trimmed); m != nil && strings.TrimSpace(m[2]) == "" {
			if haveLabel {
				return nil, 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
					&SyntaxError{lineNumber, fmt.Sprintf("multiple labels found at line %d", lineNumber)})
			}

			pendingLabel = m[1]
			haveLabel = true

			if sawEOF {
				break
			}

			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}

		opcode := fields[0]
		params := fields[1:]

		if !skipChecks {
			if want := opcodes.ParamsNumber(opcode); want != -1 && want != len(params) {
				return nil, 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
					&SyntaxError{lineNumber, fmt.Sprintf("opcode (%s) parameter numbers mismatch at line %d", opcode, lineNumber)})
			}

			if mode == ModeApplication && !opcodes.SupportApplicationMode(opcode) {
				return nil, 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
					&SyntaxError{lineNumber, fmt.Sprintf("opcode does not support application mode at line %d", lineNumber)})
			}

			if mode == ModeSignature && !opcodes.SupportSignatureMode(opcode) {
				return nil, 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
					&SyntaxError{lineNumber, fmt.Sprintf("opcode does not support signature mode at line %d", lineNumber)})
			}
		}

		label := ""
		if haveLabel {
			label = pendingLabel
			pendingLabel = ""
			haveLabel = false
		}

		instructions = append(instructions, Instruction{
			Address:    address,
			Opcode:     opcode,
			Params:     params,
			Label:      label,
			LineNumber: lineNumber,
		})
		address++

		if sawEOF {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, 0, exitcode.Wrap(exitcode.ParseInstructionsFailed, err)
	}

	if haveLabel {
		return nil, 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
			&SyntaxError{lineNumber, "TEAL file ends with a dangling label"})
	}

	return instructions, version, nil
}

// readVersion reads and validates the mandatory leading
// `#pragma version N` directive (spec.md §4.1, §6).
func readVersion(scanner *bufio.Scanner) (int, error) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		m := pragmaRe.FindStringSubmatch(line)
		if m == nil {
			return 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
				&SyntaxError{1, "unable to resolve TEAL version"})
		}

		version, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
				&SyntaxError{1, "unable to resolve TEAL version"})
		}

		if version > 8 {
			return 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
				&SyntaxError{1, "unsupported TEAL version"})
		}

		return version, nil
	}

	return 0, exitcode.Wrap(exitcode.ParseInstructionsFailed,
		&SyntaxError{1, "unable to resolve TEAL version"})
}

// stripComment removes a trailing "//comment", except when the marker
// falls inside a byte/pushbytes string literal's quoted payload
// (spec.md §4.1).
func stripComment(token string) string {
	if !strings.Contains(token, "//") {
		return token
	}

	prefix := ""
	rest := token

	if m := byteLiteralRe.FindStringSubmatch(token); m != nil {
		prefix = m[1]
		rest = token[len(prefix):]
	} else if m := pushbytesLiteralRe.FindStringSubmatch(token); m != nil {
		prefix = m[1]
		rest = token[len(prefix):]
	}

	if idx := strings.Index(rest, "//"); idx >= 0 {
		rest = rest[:idx]
	}

	return strings.TrimSpace(prefix + rest)
}
