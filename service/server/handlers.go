package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/rawtx/service/db"
	"github.com/brojonat/rawtx/service/metrics"
	"github.com/brojonat/rawtx/service/temporal"
	"github.com/brojonat/rawtx/service/txcodec"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB, far above the 1232-byte packet limit
	defaultListLimit   = 100
	maxListLimit       = 1000
)

// handleReconstruct returns a handler that rebuilds a raw transaction from its signature.
// GET /api/reconstruct?signature={signature}
func handleReconstruct(rec Reconstructor, sink *resultSink, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.URL.Query().Get("signature")
		if signature == "" {
			writeError(w, "Signature is required", http.StatusBadRequest)
			return
		}

		raw, err := rec.ReconstructBytes(r.Context(), signature)
		if err != nil {
			logger.Error("reconstruction failed", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		sink.record(r.Context(), signature, raw)

		writeJSON(w, reconstructResponse{
			RawTransaction: base64.StdEncoding.EncodeToString(raw),
		}, http.StatusOK)
	})
}

type reconstructResponse struct {
	RawTransaction string `json:"rawTransaction"`
}

type decodeRequest struct {
	Transaction string `json:"transaction"`
}

// handleDecode returns a handler that decodes Base58 or Base64 wire bytes into
// their display form.
// POST /api/v1/decode?strict=true
func handleDecode(m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req decodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		strict := r.URL.Query().Get("strict") == "true"
		enc := txcodec.DetectEncoding(req.Transaction)

		display, err := txcodec.DecodeDisplay(req.Transaction, strict)
		if m != nil {
			status, size := "error", 0
			if err == nil {
				status, size = "success", display.Size
			}
			m.RecordDecode(string(enc), status, size)
		}
		if err != nil {
			logger.Debug("decode failed", "encoding", enc, "strict", strict, "error", err)
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		writeJSON(w, display, http.StatusOK)
	})
}

// reconstructionResponse is the JSON response format for an archived reconstruction.
type reconstructionResponse struct {
	Signature             string    `json:"signature"`
	Network               string    `json:"network"`
	RawTransaction        string    `json:"raw_transaction"`
	MessageVersion        string    `json:"message_version"`
	NumSignatures         int       `json:"num_signatures"`
	NumRequiredSignatures int       `json:"num_required_signatures"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func reconstructionToResponse(r *db.Reconstruction) reconstructionResponse {
	return reconstructionResponse{
		Signature:             r.Signature,
		Network:               r.Network,
		RawTransaction:        base64.StdEncoding.EncodeToString(r.RawTransaction),
		MessageVersion:        r.MessageVersion,
		NumSignatures:         r.NumSignatures,
		NumRequiredSignatures: r.NumRequiredSignatures,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

// handleGetReconstruction returns a handler that reads one archived reconstruction.
// GET /api/v1/reconstructions/{signature}?network={network}
func handleGetReconstruction(store ArchiveStore, defaultNetwork string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")
		network, err := networkParam(r, defaultNetwork)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec, err := store.GetReconstruction(r.Context(), signature, network)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "reconstruction not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get reconstruction", "signature", signature, "network", network, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, reconstructionToResponse(rec), http.StatusOK)
	})
}

// handleListReconstructions returns a handler that lists archived reconstructions, newest first.
// GET /api/v1/reconstructions?network={network}&limit=N&offset=N
func handleListReconstructions(store ArchiveStore, defaultNetwork string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network, err := networkParam(r, defaultNetwork)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		query := r.URL.Query()
		limit, err := intParam(query.Get("limit"), defaultListLimit)
		if err != nil {
			writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
			return
		}
		if limit < 1 || limit > maxListLimit {
			writeError(w, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), http.StatusBadRequest)
			return
		}
		offset, err := intParam(query.Get("offset"), 0)
		if err != nil {
			writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
			return
		}
		if offset < 0 {
			writeError(w, "offset cannot be negative", http.StatusBadRequest)
			return
		}

		recs, err := store.ListReconstructions(r.Context(), db.ListReconstructionsParams{
			Network: network,
			Limit:   int32(limit),
			Offset:  int32(offset),
		})
		if err != nil {
			logger.Error("failed to list reconstructions", "network", network, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]reconstructionResponse, len(recs))
		for i, rec := range recs {
			resp[i] = reconstructionToResponse(rec)
		}

		writeJSON(w, map[string]interface{}{
			"reconstructions": resp,
			"count":           len(resp),
			"limit":           limit,
			"offset":          offset,
		}, http.StatusOK)
	})
}

type startBatchRequest struct {
	Signatures []string `json:"signatures"`
	Network    string   `json:"network"`
	Archive    bool     `json:"archive"`
	Publish    bool     `json:"publish"`
}

// handleStartBatch returns a handler that starts a batch reconstruction workflow.
// POST /api/v1/batches
func handleStartBatch(runner temporal.BatchRunner, defaultNetwork string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req startBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		sigs := make([]string, 0, len(req.Signatures))
		for _, sig := range req.Signatures {
			if sig = strings.TrimSpace(sig); sig != "" {
				sigs = append(sigs, sig)
			}
		}
		if len(sigs) == 0 {
			writeError(w, "at least one signature is required", http.StatusBadRequest)
			return
		}
		if len(sigs) > temporal.MaxBatchSize {
			writeError(w, fmt.Sprintf("at most %d signatures per batch", temporal.MaxBatchSize), http.StatusBadRequest)
			return
		}

		network := req.Network
		if network == "" {
			network = defaultNetwork
		}
		if err := validateNetwork(network); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		id, err := runner.StartReconstructBatch(r.Context(), temporal.ReconstructBatchInput{
			Signatures: sigs,
			Network:    network,
			Archive:    req.Archive,
			Publish:    req.Publish,
		})
		if err != nil {
			logger.Error("failed to start batch", "count", len(sigs), "error", err)
			writeError(w, "failed to start batch", http.StatusInternalServerError)
			return
		}

		logger.Info("batch started", "workflow_id", id, "count", len(sigs))
		writeJSON(w, map[string]string{"workflow_id": id}, http.StatusAccepted)
	})
}

// handleGetBatch returns a handler that reports a batch workflow's status.
// GET /api/v1/batches/{workflow_id}
func handleGetBatch(runner temporal.BatchRunner, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("workflow_id")

		status, err := runner.GetBatchStatus(r.Context(), id)
		if errors.Is(err, temporal.ErrWorkflowNotFound) {
			writeError(w, "batch not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get batch status", "workflow_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, status, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func networkParam(r *http.Request, defaultNetwork string) (string, error) {
	network := r.URL.Query().Get("network")
	if network == "" {
		network = defaultNetwork
	}
	return network, validateNetwork(network)
}

func validateNetwork(network string) error {
	switch network {
	case "mainnet", "devnet", "testnet":
		return nil
	default:
		return fmt.Errorf("invalid network: must be 'mainnet', 'devnet' or 'testnet'")
	}
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, err
	}
	return v, nil
}
