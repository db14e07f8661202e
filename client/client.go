// Package client is a Go client for the rawtx HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/rawtx/service/txcodec"
)

// Reconstruction is an archived reconstruction returned by the server.
type Reconstruction struct {
	Signature             string    `json:"signature"`
	Network               string    `json:"network"`
	RawTransaction        string    `json:"raw_transaction"` // Base64
	MessageVersion        string    `json:"message_version"`
	NumSignatures         int       `json:"num_signatures"`
	NumRequiredSignatures int       `json:"num_required_signatures"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Raw decodes the Base64 wire bytes.
func (r *Reconstruction) Raw() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.RawTransaction)
}

// BatchRequest starts a batch reconstruction.
type BatchRequest struct {
	Signatures []string `json:"signatures"`
	Network    string   `json:"network,omitempty"`
	Archive    bool     `json:"archive"`
	Publish    bool     `json:"publish"`
}

// BatchOutcome is the result for one signature in a batch.
type BatchOutcome struct {
	Signature      string `json:"signature"`
	RawTransaction string `json:"raw_transaction,omitempty"`
	Error          string `json:"error,omitempty"`
	Archived       bool   `json:"archived"`
	Published      bool   `json:"published"`
}

// BatchStatus reports a batch workflow. Result is nil until it completes.
type BatchStatus struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Result     *struct {
		Results   []BatchOutcome `json:"results"`
		Succeeded int            `json:"succeeded"`
		Failed    int            `json:"failed"`
	} `json:"result,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed: %s", e.Message)
}

// Client is the HTTP client for the rawtx service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new rawtx service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Reconstruct asks the server to rebuild the transaction for signature and
// returns its Base64 wire form.
func (c *Client) Reconstruct(ctx context.Context, signature string) (string, error) {
	var out struct {
		RawTransaction string `json:"rawTransaction"`
	}
	q := url.Values{"signature": {signature}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/reconstruct?"+q.Encode(), nil, http.StatusOK, &out); err != nil {
		return "", err
	}
	c.logger.Debug("transaction reconstructed", "signature", signature)
	return out.RawTransaction, nil
}

// Decode asks the server to decode a Base58 or Base64 transaction.
func (c *Client) Decode(ctx context.Context, raw string, strict bool) (*txcodec.DisplayTransaction, error) {
	path := "/api/v1/decode"
	if strict {
		path += "?strict=true"
	}
	var out txcodec.DisplayTransaction
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"transaction": raw}, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReconstruction fetches an archived reconstruction. An empty network
// uses the server's default.
func (c *Client) GetReconstruction(ctx context.Context, signature, network string) (*Reconstruction, error) {
	path := "/api/v1/reconstructions/" + url.PathEscape(signature)
	if network != "" {
		path += "?" + url.Values{"network": {network}}.Encode()
	}
	var out Reconstruction
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListReconstructions lists archived reconstructions, newest first.
func (c *Client) ListReconstructions(ctx context.Context, network string, limit, offset int) ([]*Reconstruction, error) {
	q := url.Values{}
	if network != "" {
		q.Set("network", network)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/reconstructions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Reconstructions []*Reconstruction `json:"reconstructions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Reconstructions, nil
}

// StartBatch starts a batch reconstruction and returns its workflow ID.
func (c *Client) StartBatch(ctx context.Context, req BatchRequest) (string, error) {
	var out struct {
		WorkflowID string `json:"workflow_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/batches", req, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	c.logger.Debug("batch started", "workflow_id", out.WorkflowID, "count", len(req.Signatures))
	return out.WorkflowID, nil
}

// GetBatch reports the status of a batch workflow.
func (c *Client) GetBatch(ctx context.Context, workflowID string) (*BatchStatus, error) {
	var out BatchStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/batches/"+url.PathEscape(workflowID), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
