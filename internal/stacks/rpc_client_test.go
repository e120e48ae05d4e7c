package stacks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-fundraising/internal/domain"
)

const deployer = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"

func TestHTTPClient_CallReadOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v2/contracts/call-read/"+deployer+"/fundraising/get-campaign-info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req readOnlyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Sender != deployer {
			t.Errorf("expected sender %s, got %s", deployer, req.Sender)
		}
		if len(req.Arguments) != 0 {
			t.Errorf("expected no arguments, got %v", req.Arguments)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"okay":   true,
			"result": "0x0703",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL + "/")
	res, err := client.CallReadOnly(context.Background(), ReadOnlyCall{
		ContractAddress: deployer,
		ContractName:    "fundraising",
		FunctionName:    "get-campaign-info",
	})
	require.NoError(t, err)
	assert.True(t, res.Okay)
	assert.Equal(t, "0x0703", res.Result)
}

func TestHTTPClient_CallReadOnly_ContractFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok status", http.StatusOK},
		{"not found status", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"okay":false,"cause":"Unchecked(NoSuchContract(\"ST000000000000000000002AMW42H.fundraising\"))"}`))
			}))
			defer server.Close()

			res, err := NewHTTPClient(server.URL).CallReadOnly(context.Background(), ReadOnlyCall{
				ContractAddress: "ST000000000000000000002AMW42H",
				ContractName:    "fundraising",
				FunctionName:    "get-campaign-info",
			})
			require.NoError(t, err)
			assert.False(t, res.Okay)
			assert.Contains(t, res.Cause, "NoSuchContract")
		})
	}
}

func TestHTTPClient_CallReadOnly_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"0x03"}`))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).CallReadOnly(context.Background(), ReadOnlyCall{
		ContractAddress: deployer, ContractName: "fundraising", FunctionName: "get-campaign-info",
	})
	assert.ErrorIs(t, err, domain.ErrDecoding)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewHTTPClient(url, WithTimeout(time.Second)).CallReadOnly(context.Background(), ReadOnlyCall{
		ContractAddress: deployer, ContractName: "fundraising", FunctionName: "get-campaign-info",
	})
	assert.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"balance": "0x0", "nonce": 7})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	nonce, err := client.GetAccountNonce(context.Background(), deployer)
	if err != nil {
		t.Fatalf("GetAccountNonce: %v", err)
	}
	if nonce != 7 {
		t.Errorf("expected nonce 7, got %d", nonce)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_NoRetryByDefault(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).GetAccountNonce(context.Background(), deployer)
	assert.ErrorIs(t, err, domain.ErrConnectivity)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestHTTPClient_GetAccountNonce_Path(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/accounts/"+deployer, r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("proof"))
		w.Write([]byte(`{"balance":"0x0000000000000000002386f26fc10000","nonce":12}`))
	}))
	defer server.Close()

	nonce, err := NewHTTPClient(server.URL).GetAccountNonce(context.Background(), deployer)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), nonce)
}

func TestHTTPClient_BroadcastTransaction(t *testing.T) {
	payload := []byte{0x80, 0x80, 0x00, 0x00, 0x00}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/transactions", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, payload, body)
		w.Write([]byte(`"a1b2c3"`))
	}))
	defer server.Close()

	txid, err := NewHTTPClient(server.URL).BroadcastTransaction(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "0xa1b2c3", txid)
}

func TestHTTPClient_BroadcastRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"transaction rejected","reason":"BadNonce","txid":"ff00"}`))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).BroadcastTransaction(context.Background(), []byte{0x00})
	var rej *BroadcastError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "BadNonce", rej.Reason)
	assert.Equal(t, "ff00", rej.TxID)
}
