package temporal

import (
	"context"
	"errors"
)

// ErrWorkflowNotFound is returned when a batch workflow ID is unknown.
var ErrWorkflowNotFound = errors.New("workflow not found")

// BatchStatus describes a batch workflow. Result is set once it has completed.
type BatchStatus struct {
	WorkflowID string                  `json:"workflow_id"`
	Status     string                  `json:"status"`
	Result     *ReconstructBatchResult `json:"result,omitempty"`
}

// BatchRunner starts batch reconstructions and reports on them.
// The HTTP server depends on this interface rather than on Client.
type BatchRunner interface {
	StartReconstructBatch(ctx context.Context, input ReconstructBatchInput) (string, error)
	GetBatchStatus(ctx context.Context, workflowID string) (*BatchStatus, error)
}
