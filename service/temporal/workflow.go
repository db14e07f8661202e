package temporal

import (
	"errors"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// MaxBatchSize caps the number of signatures in one batch workflow.
const MaxBatchSize = 100

var a *Activities // for type-safe activity invocation

// ReconstructBatchInput contains the input for ReconstructBatchWorkflow.
type ReconstructBatchInput struct {
	Signatures []string `json:"signatures"`
	Network    string   `json:"network"`
	Archive    bool     `json:"archive"`
	Publish    bool     `json:"publish"`
}

// SignatureOutcome is the result for a single signature, in input order.
type SignatureOutcome struct {
	Signature      string `json:"signature"`
	RawTransaction string `json:"raw_transaction,omitempty"`
	Error          string `json:"error,omitempty"`
	Archived       bool   `json:"archived"`
	Published      bool   `json:"published"`
}

// ReconstructBatchResult summarizes a batch workflow.
type ReconstructBatchResult struct {
	Results   []SignatureOutcome `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// ReconstructBatchWorkflow reconstructs every signature concurrently, then
// archives and publishes the successes when asked to. A failed signature is
// reported in its outcome and does not fail the workflow. Archive and publish
// failures are logged and leave the corresponding flag false.
func ReconstructBatchWorkflow(ctx workflow.Context, input ReconstructBatchInput) (*ReconstructBatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ReconstructBatchWorkflow started", "count", len(input.Signatures))

	if len(input.Signatures) == 0 {
		return nil, temporalsdk.NewNonRetryableApplicationError("no signatures given", "InvalidInput", nil)
	}
	if len(input.Signatures) > MaxBatchSize {
		return nil, temporalsdk.NewNonRetryableApplicationError("too many signatures", "InvalidInput", nil)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeTransactionNotFound, ErrTypeInvalidTransaction},
		},
	})

	futures := make([]workflow.Future, len(input.Signatures))
	for i, sig := range input.Signatures {
		futures[i] = workflow.ExecuteActivity(ctx, a.Reconstruct, ReconstructInput{Signature: sig})
	}

	result := &ReconstructBatchResult{Results: make([]SignatureOutcome, len(input.Signatures))}
	for i, f := range futures {
		outcome := SignatureOutcome{Signature: input.Signatures[i]}
		var res ReconstructResult
		if err := f.Get(ctx, &res); err != nil {
			outcome.Error = activityErrorMessage(err)
			result.Failed++
			logger.Warn("reconstruction failed", "signature", outcome.Signature, "error", err)
		} else {
			outcome.RawTransaction = res.RawTransaction
			result.Succeeded++
		}
		result.Results[i] = outcome
	}

	for i := range result.Results {
		outcome := &result.Results[i]
		if outcome.Error != "" {
			continue
		}
		store := StoreReconstructionInput{
			Signature:      outcome.Signature,
			Network:        input.Network,
			RawTransaction: outcome.RawTransaction,
		}
		if input.Archive {
			if err := workflow.ExecuteActivity(ctx, a.ArchiveReconstruction, store).Get(ctx, nil); err != nil {
				logger.Warn("archive failed", "signature", outcome.Signature, "error", err)
			} else {
				outcome.Archived = true
			}
		}
		if input.Publish {
			if err := workflow.ExecuteActivity(ctx, a.PublishReconstruction, store).Get(ctx, nil); err != nil {
				logger.Warn("publish failed", "signature", outcome.Signature, "error", err)
			} else {
				outcome.Published = true
			}
		}
	}

	logger.Info("ReconstructBatchWorkflow completed",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

// activityErrorMessage strips the activity envelope so callers see the
// underlying failure, e.g. "Transaction not found".
func activityErrorMessage(err error) string {
	var appErr *temporalsdk.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}
