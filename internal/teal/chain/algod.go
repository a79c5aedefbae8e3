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
package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/segmentio/encoding/json"
)

// AlgodClient is a thin typed HTTP client over an algod node's
// application-info REST endpoint (ambient domain-stack collaborator,
// SPEC_FULL.md §4.3): one small single-purpose type per concern, the
// way the teacher favors narrow collaborators over a generic client.
type AlgodClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewAlgodClient constructs a client against baseURL (e.g.
// "https://mainnet-api.algonode.cloud") using token for the
// X-Algo-API-Token header.
func NewAlgodClient(baseURL, token string) *AlgodClient {
	return &AlgodClient{BaseURL: baseURL, Token: token, HTTP: http.DefaultClient}
}

type applicationResponse struct {
	Params struct {
		ApprovalProgram   []byte `json:"approval-program"`
		GlobalState       []appStateKV `json:"global-state"`
	} `json:"params"`
	Deleted bool `json:"deleted"`
}

type appStateKV struct {
	Key   string `json:"key"`
	Value struct {
		Type  int    `json:"type"`
		Uint  uint64 `json:"uint"`
		Bytes string `json:"bytes"`
	} `json:"value"`
}

type disassembleResponse struct {
	Result string `json:"result"`
}

// ReadAppInfo implements Client.
func (c *AlgodClient) ReadAppInfo(ctx context.Context, appID uint64, force bool) (string, map[string]GlobalValue, error) {
	var app applicationResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/v2/applications/%d", appID), &app); err != nil {
		return "", nil, err
	}

	if app.Deleted && !force {
		return "", nil, &NotFoundError{AppID: appID}
	}

	source, err := c.disassemble(ctx, app.Params.ApprovalProgram)
	if err != nil {
		return "", nil, err
	}

	return source, decodeGlobalState(app.Params.GlobalState), nil
}

// GetApp implements Client, fetching the historical approval program
// via the indexer's application lookup (algod alone does not retain
// deleted applications).
func (c *AlgodClient) GetApp(ctx context.Context, appID uint64) (string, error) {
	var app applicationResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/v2/applications/%d?include-all=true", appID), &app); err != nil {
		return "", err
	}

	return c.disassemble(ctx, app.Params.ApprovalProgram)
}

func (c *AlgodClient) disassemble(ctx context.Context, program []byte) (string, error) {
	var resp disassembleResponse

	url := c.BaseURL + "/v2/teal/disassemble"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(program))
	if err != nil {
		return "", fmt.Errorf("chain: building disassemble request: %w", err)
	}

	c.authorize(req)
	req.Header.Set("Content-Type", "application/x-binary")

	if err := c.do(req, &resp); err != nil {
		return "", err
	}

	return resp.Result, nil
}

func (c *AlgodClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("chain: building request for %s: %w", path, err)
	}

	c.authorize(req)

	return c.do(req, out)
}

func (c *AlgodClient) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("X-Algo-API-Token", c.Token)
	}
}

func (c *AlgodClient) do(req *http.Request, out any) error {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("chain: request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{}
	}

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chain: %s returned %d: %s", req.URL, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("chain: decoding response from %s: %w", req.URL, err)
	}

	return nil
}

func decodeGlobalState(entries []appStateKV) map[string]GlobalValue {
	state := make(map[string]GlobalValue, len(entries))

	for _, kv := range entries {
		key, err := base64.StdEncoding.DecodeString(kv.Key)
		if err != nil {
			continue
		}

		if kv.Value.Type == 2 {
			state[string(key)] = GlobalValue{IsBytes: false, UintValue: kv.Value.Uint}
			continue
		}

		decodedBytes, err := base64.StdEncoding.DecodeString(kv.Value.Bytes)
		if err != nil {
			continue
		}

		state[string(key)] = GlobalValue{IsBytes: true, BytesValue: string(decodedBytes)}
	}

	return state
}

