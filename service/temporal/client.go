package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Client starts and inspects batch reconstruction workflows.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

var _ BatchRunner = (*Client)(nil)

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartReconstructBatch starts ReconstructBatchWorkflow and returns its workflow ID.
func (c *Client) StartReconstructBatch(ctx context.Context, input ReconstructBatchInput) (string, error) {
	if len(input.Signatures) == 0 {
		return "", fmt.Errorf("at least one signature is required")
	}
	if len(input.Signatures) > MaxBatchSize {
		return "", fmt.Errorf("at most %d signatures per batch", MaxBatchSize)
	}

	id := "reconstruct-batch-" + uuid.NewString()
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
	}, ReconstructBatchWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start batch workflow", "workflow_id", id, "error", err)
		return "", fmt.Errorf("failed to start workflow: %w", err)
	}

	c.logger.Info("batch workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"signatures", len(input.Signatures),
	)
	return run.GetID(), nil
}

// GetBatchStatus describes a batch workflow and, once it has completed,
// fetches its result.
func (c *Client) GetBatchStatus(ctx context.Context, workflowID string) (*BatchStatus, error) {
	desc, err := c.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to describe workflow: %w", err)
	}

	status := desc.GetWorkflowExecutionInfo().GetStatus()
	out := &BatchStatus{
		WorkflowID: workflowID,
		Status:     status.String(),
	}

	if status == enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		var result ReconstructBatchResult
		if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
			return nil, fmt.Errorf("failed to get workflow result: %w", err)
		}
		out.Result = &result
	}

	return out, nil
}

// WaitForBatch blocks until the workflow finishes and returns its result.
func (c *Client) WaitForBatch(ctx context.Context, workflowID string) (*ReconstructBatchResult, error) {
	var result ReconstructBatchResult
	if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
