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

// Package inline is the Application Inliner (spec.md §4.3): it detects
// a logic signature's validator-application check by pattern matching
// over the raw source text, fetches that application's approval
// program, and splices the two programs together so a single
// intra-procedural analysis can reason about both.
package inline

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/tealsec/tealsec/internal/teal/chain"
)

// Result is a successfully combined source plus the call-index context
// the executor needs to model the inlined body as an inner-call
// context (spec.md §4.3 "app_area = true").
type Result struct {
	Source      string
	GroupIndex  string
	GlobalState map[string]chain.GlobalValue
}

// validatorPattern is one of the regular-expression forms spec.md §4.3
// lists for locating "txn/gtxn/gtxns ApplicationID == K": a prefix that
// introduces the field read, a literal-form suffix, and the semantic
// meaning of a matched group index (own transaction, gtxns-from-stack,
// or a literal gtxn N).
type validatorPattern struct {
	re         *regexp.Regexp
	groupIndex string // "" for patterns whose group index comes from a capture
	indexGroup int    // 1-based submatch index of the literal gtxn N, or 0
	valueGroup int    // 1-based submatch index of the referenced int/intc
	indirect   bool   // true when valueGroup is an intc_* slot index, not a literal
}

var patterns = []validatorPattern{
	{re: regexp.MustCompile(`txn ApplicationID\nintc_(\d)[^\n]*\n==`), groupIndex: "own", valueGroup: 1, indirect: true},
	{re: regexp.MustCompile(`txn ApplicationID\nintc (\d+)[^\n]*\n==`), groupIndex: "own", valueGroup: 1, indirect: true},
	{re: regexp.MustCompile(`txn ApplicationID\npushint (\d+)[^\n]*\n==`), groupIndex: "own", valueGroup: 1},
	{re: regexp.MustCompile(`gtxns ApplicationID\nintc_(\d)[^\n]*\n==`), groupIndex: "GroupIndex", valueGroup: 1, indirect: true},
	{re: regexp.MustCompile(`gtxns ApplicationID\nintc (\d+)[^\n]*\n==`), groupIndex: "GroupIndex", valueGroup: 1, indirect: true},
	{re: regexp.MustCompile(`gtxns ApplicationID\npushint (\d+)[^\n]*\n==`), groupIndex: "GroupIndex", valueGroup: 1},
	{re: regexp.MustCompile(`gtxn (\d+) ApplicationID\nintc_(\d)[^\n]*\n==`), indexGroup: 1, valueGroup: 2, indirect: true},
	{re: regexp.MustCompile(`gtxn (\d+) ApplicationID\nintc (\d+)[^\n]*\n==`), indexGroup: 1, valueGroup: 2, indirect: true},
	{re: regexp.MustCompile(`gtxn (\d+) ApplicationID\npushint (\d+)[^\n]*\n==`), indexGroup: 1, valueGroup: 2},
}

var intcblockPattern = regexp.MustCompile(`intcblock([^\n]*)\n`)

// Inline attempts to locate and splice in the validator application
// referenced by lsigSource (spec.md §4.3). It reports ok=false on any
// parsing or fetching failure, per the explicit best-effort failure
// policy: callers fall back to analyzing the original source unchanged.
func Inline(ctx context.Context, lsigSource string, client chain.Client, loadState bool) (Result, bool) {
	appID, groupIndex, ok := detectValidator(lsigSource)
	if !ok {
		log.Info("inline: validator does not exist in lsig source")
		return Result{}, false
	}

	return InlineApp(ctx, lsigSource, appID, groupIndex, client, loadState)
}

// InlineApp splices appID's approval program into lsigSource directly,
// bypassing validator-pattern detection — for callers (the --app-id CLI
// flag) that already know which application to analyze alongside the
// signature rather than relying on the regex-detected reference.
func InlineApp(ctx context.Context, lsigSource string, appID uint64, groupIndex string, client chain.Client, loadState bool) (Result, bool) {
	source, state, err := client.ReadAppInfo(ctx, appID, false)
	if err != nil {
		log.Infof("inline: app %d not found, trying historical version: %v", appID, err)

		source, err = client.GetApp(ctx, appID)
		if err != nil {
			log.Infof("inline: failed to include validator app %d: %v", appID, err)
			return Result{}, false
		}
	}

	combined := combine(lsigSource, source)

	result := Result{Source: combined, GroupIndex: groupIndex}
	if loadState {
		result.GlobalState = state
	}

	return result, true
}

// detectValidator scans source for one of spec.md §4.3's validator
// patterns, resolving an indirect intc_i/intc i reference against the
// source's own intcblock when needed (grounded on include_app()'s
// identical indirection-resolution step).
func detectValidator(source string) (appID uint64, groupIndex string, ok bool) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(source)
		if m == nil {
			continue
		}

		groupIndex := p.groupIndex
		if p.indexGroup > 0 {
			groupIndex = m[p.indexGroup]
		}

		value, err := strconv.ParseUint(m[p.valueGroup], 10, 64)
		if err != nil {
			return 0, "", false
		}

		if !p.indirect {
			return value, groupIndex, true
		}

		resolved, ok := resolveIntcSlot(source, int(value))
		if !ok {
			log.Info("inline: failed to parse intcblock for indirect ApplicationID reference")
			return 0, "", false
		}

		return resolved, groupIndex, true
	}

	if strings.Contains(source, "ApplicationID") {
		log.Info("inline: validator reference exists but could not be resolved")
	}

	return 0, "", false
}

func resolveIntcSlot(source string, slot int) (uint64, bool) {
	m := intcblockPattern.FindStringSubmatch(source)
	if m == nil {
		return 0, false
	}

	fields := strings.Fields(m[1])
	if slot+1 > len(fields) {
		return 0, false
	}

	v, err := strconv.ParseUint(fields[slot], 10, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// combine implements spec.md §4.3's four-step splice: ensure a trailing
// return, rename label tokens to avoid collisions, turn every return
// into a fall-through into the appended approval program, and append
// that program with its own pragma line stripped.
func combine(lsigSource, appSource string) string {
	lsigSource = strings.TrimRight(lsigSource, "\n")
	if !strings.HasSuffix(lsigSource, "return") {
		lsigSource += "\nreturn"
	}

	lsigSource = strings.ReplaceAll(lsigSource, "label", "sig_label")
	lsigSource = strings.ReplaceAll(lsigSource, "return", "bnz app_label\nerr")
	lsigSource += "\napp_label:\n"

	appLines := strings.SplitN(appSource, "\n", 2)
	appBody := ""
	if len(appLines) == 2 {
		appBody = appLines[1]
	}

	return lsigSource + appBody
}
