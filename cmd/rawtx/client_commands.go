package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/brojonat/rawtx/client"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the rawtx service",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 60 * time.Second,
			},
		},
		Subcommands: []*cli.Command{
			clientReconstructCommand(),
			clientDecodeCommand(),
			clientBatchCommand(),
			clientBatchStatusCommand(),
		},
	}
}

func clientReconstructCommand() *cli.Command {
	return &cli.Command{
		Name:      "reconstruct",
		Usage:     "Rebuild a raw transaction through the server",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}
			signature := c.Args().First()

			raw, err := newHTTPClient(c).Reconstruct(context.Background(), signature)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, map[string]string{
					"signature":      signature,
					"rawTransaction": raw,
				})
			}
			fmt.Fprintln(c.App.Writer, raw)
			return nil
		},
	}
}

func clientDecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a transaction through the server",
		ArgsUsage: "RAW_TRANSACTION",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Ask the server to validate the transaction",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: raw transaction")
			}

			display, err := newHTTPClient(c).Decode(context.Background(), c.Args().First(), c.Bool("strict"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, display)
			}
			printTransaction(c.App.Writer, display)
			return nil
		},
	}
}

func clientBatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Start a batch reconstruction on the server",
		ArgsUsage: "SIGNATURE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "archive", Usage: "Archive each reconstruction"},
			&cli.BoolFlag{Name: "publish", Usage: "Publish each reconstruction to NATS"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one signature is required")
			}

			id, err := newHTTPClient(c).StartBatch(context.Background(), client.BatchRequest{
				Signatures: c.Args().Slice(),
				Network:    c.String("network"),
				Archive:    c.Bool("archive"),
				Publish:    c.Bool("publish"),
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, map[string]string{"workflow_id": id})
			}
			fmt.Fprintf(c.App.Writer, "✓ Batch started: %s\n", id)
			return nil
		},
	}
}

func clientBatchStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch-status",
		Usage:     "Show the status of a batch reconstruction",
		ArgsUsage: "WORKFLOW_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: workflow ID")
			}

			st, err := newHTTPClient(c).GetBatch(context.Background(), c.Args().First())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, st)
			}

			out := c.App.Writer
			fmt.Fprintf(out, "Workflow: %s\n", st.WorkflowID)
			fmt.Fprintf(out, "Status:   %s\n", st.Status)
			if st.Result != nil {
				fmt.Fprintf(out, "Result:   %d succeeded, %d failed\n", st.Result.Succeeded, st.Result.Failed)
				for _, o := range st.Result.Results {
					if o.Error != "" {
						fmt.Fprintf(out, "  ✗ %s: %s\n", o.Signature, o.Error)
					} else {
						fmt.Fprintf(out, "  ✓ %s\n", o.Signature)
					}
				}
			}
			return nil
		},
	}
}

func newHTTPClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	httpClient := &http.Client{Timeout: c.Duration("timeout")}
	return client.NewClient(c.String("server-url"), httpClient, logger)
}
