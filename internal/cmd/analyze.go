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
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tealsec/tealsec/internal/teal/block"
	"github.com/tealsec/tealsec/internal/teal/chain"
	"github.com/tealsec/tealsec/internal/teal/detect"
	"github.com/tealsec/tealsec/internal/teal/exec"
	"github.com/tealsec/tealsec/internal/teal/exitcode"
	"github.com/tealsec/tealsec/internal/teal/inline"
	"github.com/tealsec/tealsec/internal/teal/lexer"
	"github.com/tealsec/tealsec/internal/teal/report"
	"github.com/tealsec/tealsec/internal/teal/smt"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "symbolically execute a TEAL program and report Detection Registry findings.",
	Long:  "Parse a TEAL source file into its basic-block graph, symbolically execute every feasible path against an SMT solver, and print the union of vulnerability findings across all terminal configurations.",
	Args:  cobra.ExactArgs(1),
	Run:   runAnalyze,
}

func init() {
	analyzeCmd.Flags().Bool("app", true, "analyze as an application approval program")
	analyzeCmd.Flags().Bool("lsig", false, "analyze as a logic signature (overrides --app)")
	analyzeCmd.Flags().String("lsig-address", "", "the logic signature's own address, checked against gtxn Sender/AssetSender (signature mode only)")
	analyzeCmd.Flags().Bool("inline", false, "detect and splice in the validator application referenced by a logic signature before analysis")
	analyzeCmd.Flags().Uint("app-id", 0, "force-inline this application id instead of relying on validator-pattern detection")
	analyzeCmd.Flags().Bool("load-state", false, "seed global/local state from the inlined application's on-chain global state")
	analyzeCmd.Flags().Duration("timeout", 30*time.Second, "wall-clock budget for the whole symbolic exploration")
	analyzeCmd.Flags().String("solver", "z3", "SMT-LIB2-speaking solver binary to shell out to")
	analyzeCmd.Flags().String("rpc", "https://mainnet-api.algonode.cloud", "algod REST endpoint used by --inline")
	analyzeCmd.Flags().String("rpc-token", "", "algod API token used by --inline")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	if GetFlag(cmd, "verbose") {
		log.SetLevel(log.DebugLevel)
	}

	filename := args[0]
	mode := lexer.ModeApplication

	if GetFlag(cmd, "lsig") {
		mode = lexer.ModeSignature
	}

	timeout := GetDuration(cmd, "timeout")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Println(err)
		os.Exit(int(exitcode.ParseInstructionsFailed))
	}

	lsigGroupIndex := "GroupIndex"
	var globalState map[string]chain.GlobalValue
	inlined := false

	if GetFlag(cmd, "inline") {
		if mode != lexer.ModeSignature {
			log.Info("analyze: --inline has no effect outside --lsig mode")
		} else {
			client := chain.NewAlgodClient(GetString(cmd, "rpc"), GetString(cmd, "rpc-token"))
			loadState := GetFlag(cmd, "load-state")

			result, ok := inlineSource(ctx, cmd, string(source), client, loadState)
			if ok {
				source = []byte(result.Source)
				lsigGroupIndex = result.GroupIndex
				globalState = result.GlobalState
				inlined = true
			}
		}
	}

	instructions, version, err := lexer.Lex(strings.NewReader(string(source)), mode, inlined)
	exitOnError(err)

	appAreaStart := appLabelAddress(instructions)

	exitOnError(lexer.ResolveLabels(instructions))

	blocks, err := block.Build(instructions)
	exitOnError(err)

	solver, err := smt.NewExternalSolver(GetString(cmd, "solver"), "-in")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer solver.Close()

	initial := exec.New()
	initial.Version = version
	initial.GroupIndexString = lsigGroupIndex
	initial.AppAreaStart = appAreaStart

	seedState(initial, globalState)

	terminal, err := exec.Explore(ctx, blocks, initial, solver, 0)
	if err != nil {
		fmt.Println(err)
		os.Exit(exitCodeOf(err, exitcode.Timeout))
	}

	catalog := detect.ApplicationPredicates
	if mode == lexer.ModeSignature {
		catalog = detect.SignaturePredicates
	}

	lsigAddress := GetString(cmd, "lsig-address")

	perPath := make([][]detect.Finding, len(terminal))
	for i, cfg := range terminal {
		perPath[i] = detect.Run(catalog, cfg, solver, lsigAddress)
	}

	report.Print(os.Stdout, report.Union(perPath))
}

// appLabelAddress returns the address of the App Inliner's `app_label:`
// splice point (inline.combine), or -1 when the source carries no such
// label (plain analysis, or --inline never spliced anything in). It
// runs before lexer.ResolveLabels rewrites branch params, but the
// Label each instruction carries is untouched by that pass, so either
// ordering would find it — this one just keeps the call next to Lex.
func appLabelAddress(instructions []lexer.Instruction) int {
	for _, inst := range instructions {
		if inst.Label == "app_label" {
			return inst.Address
		}
	}

	return -1
}

// inlineSource resolves the --inline/--app-id flag combination: a
// nonzero --app-id bypasses validator-pattern detection entirely
// (inline.InlineApp), otherwise the lsig source is scanned for a
// recognized validator reference (inline.Inline).
func inlineSource(ctx context.Context, cmd *cobra.Command, lsigSource string, client chain.Client, loadState bool) (inline.Result, bool) {
	if appID := GetUint(cmd, "app-id"); appID != 0 {
		return inline.InlineApp(ctx, lsigSource, uint64(appID), "GroupIndex", client, loadState)
	}

	return inline.Inline(ctx, lsigSource, client, loadState)
}

// seedState preloads the application-global-state snapshot --load-state
// fetched into the initial Configuration's global maps, so predicates
// querying a global key the application never writes this path still
// see the on-chain value (spec.md §6 "global_state").
func seedState(initial *exec.Configuration, state map[string]chain.GlobalValue) {
	for key, value := range state {
		keyTerm := smt.Str(key).SExp()

		if value.IsBytes {
			initial.GlobalBytes[keyTerm] = smt.Str(value.BytesValue)
			continue
		}

		initial.GlobalUint[keyTerm] = smt.BV64(value.UintValue)
	}
}

func exitOnError(err error) {
	if err == nil {
		return
	}

	fmt.Println(err)
	os.Exit(exitCodeOf(err, exitcode.ParseInstructionsFailed))
}

func exitCodeOf(err error, fallback exitcode.Code) int {
	if e, ok := err.(*exitcode.Error); ok {
		return int(e.Code)
	}

	return int(fallback)
}
