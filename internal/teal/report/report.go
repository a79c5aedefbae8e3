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

// Package report formats the Detection Registry's findings for the CLI
// (spec.md §6 "Findings output").
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"

	"github.com/tealsec/tealsec/internal/teal/detect"
)

// defaultRuleWidth is the separator width used when w isn't a terminal
// (piped output, redirected to a file) or its size can't be queried.
const defaultRuleWidth = 72

// Union deduplicates findings gathered across every terminal
// Configuration (spec.md §6: "the set of emitted findings is the union
// over all terminal configurations"), sorted by vulnerability name for
// stable output.
func Union(perPath [][]detect.Finding) []detect.Finding {
	seen := make(map[string]detect.Finding)

	for _, findings := range perPath {
		for _, f := range findings {
			seen[f.Name+"|"+f.Message] = f
		}
	}

	out := make([]detect.Finding, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return out[i].Message < out[j].Message
	})

	return out
}

// Print writes one line per finding to w, separated by a horizontal
// rule sized to the attached terminal's width (grounded on termio's
// use of term.GetSize for screen layout), or a single "no findings"
// line when findings is empty.
func Print(w io.Writer, findings []detect.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "no findings")
		return
	}

	rule := strings.Repeat("-", ruleWidth(w))

	for i, f := range findings {
		if i > 0 {
			fmt.Fprintln(w, rule)
		}

		fmt.Fprintln(w, f.String())
	}
}

// ruleWidth queries the terminal width of w when it's an attached
// terminal, falling back to defaultRuleWidth for pipes and files.
func ruleWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultRuleWidth
	}

	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return defaultRuleWidth
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultRuleWidth
	}

	return width
}
