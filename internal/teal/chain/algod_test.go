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
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, deleted bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/v2/applications/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-Algo-API-Token"))

		key := base64.StdEncoding.EncodeToString([]byte("counter"))
		bkey := base64.StdEncoding.EncodeToString([]byte("owner"))
		bval := base64.StdEncoding.EncodeToString([]byte("an-address"))

		fmt.Fprintf(w, `{
			"params": {
				"approval-program": "%s",
				"global-state": [
					{"key": "%s", "value": {"type": 2, "uint": 7}},
					{"key": "%s", "value": {"type": 1, "bytes": "%s"}}
				]
			},
			"deleted": %t
		}`, base64.StdEncoding.EncodeToString([]byte{0x01, 0x02}), key, bkey, bval, deleted)
	})

	mux.HandleFunc("/v2/teal/disassemble", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result": "#pragma version 6\nint 1\nreturn\n"}`)
	})

	return httptest.NewServer(mux)
}

func TestAlgodClientReadAppInfoDecodesSourceAndState(t *testing.T) {
	srv := newTestServer(t, false)
	defer srv.Close()

	c := NewAlgodClient(srv.URL, "tok")

	source, state, err := c.ReadAppInfo(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Contains(t, source, "#pragma version 6")

	assert.Equal(t, GlobalValue{IsBytes: false, UintValue: 7}, state["counter"])
	assert.Equal(t, GlobalValue{IsBytes: true, BytesValue: "an-address"}, state["owner"])
}

func TestAlgodClientReadAppInfoReportsNotFoundWhenDeletedAndNotForced(t *testing.T) {
	srv := newTestServer(t, true)
	defer srv.Close()

	c := NewAlgodClient(srv.URL, "tok")

	_, _, err := c.ReadAppInfo(context.Background(), 1, false)
	require.Error(t, err)

	var nfe *NotFoundError
	assert.True(t, errors.As(err, &nfe))
}

func TestAlgodClientReadAppInfoForcesDeletedApp(t *testing.T) {
	srv := newTestServer(t, true)
	defer srv.Close()

	c := NewAlgodClient(srv.URL, "tok")

	source, _, err := c.ReadAppInfo(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Contains(t, source, "int 1")
}

func TestAlgodClientGetAppFetchesHistoricalSource(t *testing.T) {
	srv := newTestServer(t, true)
	defer srv.Close()

	c := NewAlgodClient(srv.URL, "tok")

	source, err := c.GetApp(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, source, "#pragma version 6")
}

func TestAlgodClientSurfacesHTTPNotFoundAsNotFoundError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewAlgodClient(srv.URL, "")

	_, _, err := c.ReadAppInfo(context.Background(), 99, true)
	require.Error(t, err)

	var nfe *NotFoundError
	assert.True(t, errors.As(err, &nfe))
}

func TestDecodeGlobalStateSkipsUndecodableEntries(t *testing.T) {
	entries := []appStateKV{
		{Key: "not-base64!!", Value: struct {
			Type  int    `json:"type"`
			Uint  uint64 `json:"uint"`
			Bytes string `json:"bytes"`
		}{Type: 2, Uint: 1}},
	}

	state := decodeGlobalState(entries)
	assert.Empty(t, state)
}
