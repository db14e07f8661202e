package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/rawtx/service/temporal"
	"github.com/urfave/cli/v2"
)

func batchReconstructCommand() *cli.Command {
	return &cli.Command{
		Name:      "reconstruct",
		Usage:     "Start a batch reconstruction workflow",
		ArgsUsage: "SIGNATURE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "archive", Usage: "Archive each reconstruction"},
			&cli.BoolFlag{Name: "publish", Usage: "Publish each reconstruction to NATS"},
			&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Wait for the workflow to finish"},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait with --wait",
				Value: 10 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one signature is required")
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx := context.Background()
			id, err := tc.StartReconstructBatch(ctx, temporal.ReconstructBatchInput{
				Signatures: c.Args().Slice(),
				Network:    c.String("network"),
				Archive:    c.Bool("archive"),
				Publish:    c.Bool("publish"),
			})
			if err != nil {
				return err
			}

			if !c.Bool("wait") {
				if c.Bool("json") {
					return writeJSON(c.App.Writer, map[string]string{"workflow_id": id})
				}
				fmt.Fprintf(c.App.Writer, "✓ Workflow started: %s\n", id)
				fmt.Fprintf(c.App.Writer, "  Task queue: %s\n", tc.TaskQueue())
				return nil
			}

			waitCtx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
			defer cancel()
			result, err := tc.WaitForBatch(waitCtx, id)
			if err != nil {
				return fmt.Errorf("workflow %s failed: %w", id, err)
			}
			return printBatch(c, &temporal.BatchStatus{WorkflowID: id, Status: "Completed", Result: result})
		},
	}
}

func batchStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show a batch reconstruction workflow",
		ArgsUsage: "<workflow-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: workflow ID")
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			st, err := tc.GetBatchStatus(context.Background(), c.Args().First())
			if err != nil {
				return err
			}
			return printBatch(c, st)
		},
	}
}

func printBatch(c *cli.Context, st *temporal.BatchStatus) error {
	if c.Bool("json") {
		return writeJSON(c.App.Writer, st)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Workflow: %s\n", st.WorkflowID)
	fmt.Fprintf(out, "Status:   %s\n", st.Status)
	if st.Result == nil {
		return nil
	}
	fmt.Fprintf(out, "Result:   %d succeeded, %d failed\n\n", st.Result.Succeeded, st.Result.Failed)
	for _, o := range st.Result.Results {
		if o.Error != "" {
			fmt.Fprintf(out, "✗ %s\n  %s\n", o.Signature, o.Error)
			continue
		}
		fmt.Fprintf(out, "✓ %s (archived=%t published=%t)\n  %s\n",
			o.Signature, o.Archived, o.Published, o.RawTransaction)
	}
	return nil
}

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	host := c.String("temporal-host")
	if host == "" {
		host = "localhost:7233"
	}
	namespace := c.String("temporal-namespace")
	if namespace == "" {
		namespace = "default"
	}
	taskQueue := c.String("temporal-task-queue")
	if taskQueue == "" {
		taskQueue = "rawtx-reconstruct"
	}

	// Temporal's connection chatter is noise on a CLI
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("RAWTX_DEBUG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return temporal.NewClient(host, namespace, taskQueue, logger)
}
