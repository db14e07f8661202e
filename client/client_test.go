package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/rawtx/service/txcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSig = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

func TestReconstruct_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/reconstruct", r.URL.Path)
		assert.Equal(t, testSig, r.URL.Query().Get("signature"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"rawTransaction": "AQID"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	raw, err := client.Reconstruct(context.Background(), testSig)
	require.NoError(t, err)
	assert.Equal(t, "AQID", raw)
}

func TestReconstruct_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "Transaction not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Reconstruct(context.Background(), testSig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Transaction not found")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Transaction not found", apiErr.Message)
}

func TestDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/decode", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("strict"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AQID", body["transaction"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"signatures":["` + testSig + `"],"message":{"header":{"numRequiredSignatures":1,"numReadonlySignedAccounts":0,"numReadonlyUnsignedAccounts":0},"accountKeys":[],"recentBlockhash":"","instructions":[],"addressTableLookups":[]},"version":"legacy","encoding":"base64"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	got, err := client.Decode(context.Background(), "AQID", true)
	require.NoError(t, err)
	assert.Equal(t, []string{testSig}, got.Signatures)
	assert.True(t, got.Version.IsLegacy())
	assert.Equal(t, txcodec.EncodingBase64, got.Encoding)
}

func TestDecode_Unprocessable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "transaction buffer is empty"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	got, err := client.Decode(context.Background(), "", false)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "transaction buffer is empty")
}

func TestGetReconstruction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reconstructions/"+testSig, r.URL.Path)
		assert.Equal(t, "devnet", r.URL.Query().Get("network"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"signature":       testSig,
			"network":         "devnet",
			"raw_transaction": "AQID",
			"message_version": "0",
			"num_signatures":  1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	rec, err := client.GetReconstruction(context.Background(), testSig, "devnet")
	require.NoError(t, err)
	assert.Equal(t, "devnet", rec.Network)
	assert.Equal(t, "0", rec.MessageVersion)

	raw, err := rec.Raw()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)
}

func TestGetReconstruction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"reconstruction not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetReconstruction(context.Background(), testSig, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestListReconstructions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reconstructions", r.URL.Path)
		assert.Equal(t, "mainnet", r.URL.Query().Get("network"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "10", r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reconstructions":[{"signature":"a"},{"signature":"b"}],"count":2,"limit":5,"offset":10}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	recs, err := client.ListReconstructions(context.Background(), "mainnet", 5, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Signature)
}

func TestBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == "POST" && r.URL.Path == "/api/v1/batches":
			var req BatchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"a", "b"}, req.Signatures)
			assert.True(t, req.Publish)
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"workflow_id":"reconstruct-batch-1"}`))
		case r.Method == "GET" && r.URL.Path == "/api/v1/batches/reconstruct-batch-1":
			w.Write([]byte(`{"workflow_id":"reconstruct-batch-1","status":"Completed","result":{"results":[{"signature":"a","raw_transaction":"AQID","archived":false,"published":true},{"signature":"b","error":"Transaction not found","archived":false,"published":false}],"succeeded":1,"failed":1}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	id, err := client.StartBatch(context.Background(), BatchRequest{Signatures: []string{"a", "b"}, Publish: true})
	require.NoError(t, err)
	assert.Equal(t, "reconstruct-batch-1", id)

	st, err := client.GetBatch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Completed", st.Status)
	require.NotNil(t, st.Result)
	assert.Equal(t, 1, st.Result.Failed)
	assert.Equal(t, "Transaction not found", st.Result.Results[1].Error)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.Health(context.Background()))

	server.Close()
	assert.Error(t, client.Health(context.Background()))
}
