package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/rawtx/service/reconstruct"
	"github.com/brojonat/rawtx/service/solana"
	"github.com/brojonat/rawtx/service/txcodec"
	"github.com/urfave/cli/v2"
)

func reconstructCommand() *cli.Command {
	return &cli.Command{
		Name:      "reconstruct",
		Usage:     "Rebuild a raw transaction from its signature via Solana RPC",
		ArgsUsage: "SIGNATURE",
		Description: `Fetch a confirmed transaction from the configured RPC node and print its
serialized wire form as Base64.

Example:
  rawtx --rpc-url https://api.devnet.solana.com reconstruct 5j7s...Dia7 --decode`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "RPC request timeout",
				Value: 30 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "decode",
				Usage: "Also print the decoded transaction",
			},
			qrFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}
			signature := c.Args().First()

			rpcURL := c.String("rpc-url")
			if rpcURL == "" {
				return fmt.Errorf("rpc-url is required (set SOLANA_RPC_URL env var or use --rpc-url)")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			timeout := c.Duration("timeout")
			ledger := solana.NewLedger(solana.NewRPCClient(rpcURL, timeout), solana.EndpointLabel(rpcURL), nil, logger)
			rec := reconstruct.New(ledger, nil, logger)

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			raw, err := rec.ReconstructBytes(ctx, signature)
			if err != nil {
				return err
			}
			return printReconstruction(c, signature, raw)
		},
	}
}

// printReconstruction writes raw as Base64, or as JSON with --json, and
// appends the decoded form with --decode. --qr also saves a QR code image.
func printReconstruction(c *cli.Context, signature string, raw []byte) error {
	out := c.App.Writer
	encoded := base64.StdEncoding.EncodeToString(raw)

	if path := c.String("qr"); path != "" {
		if err := writeQRCode(path, raw); err != nil {
			return err
		}
	}

	var display *txcodec.DisplayTransaction
	if c.Bool("decode") {
		tx, err := txcodec.Deserialize(raw)
		if err != nil {
			return fmt.Errorf("failed to decode reconstructed transaction: %w", err)
		}
		display = txcodec.ToDisplay(tx)
	}

	if c.Bool("json") {
		return writeJSON(out, struct {
			Signature      string                      `json:"signature"`
			RawTransaction string                      `json:"rawTransaction"`
			Decoded        *txcodec.DisplayTransaction `json:"decoded,omitempty"`
		}{signature, encoded, display})
	}

	fmt.Fprintln(out, encoded)
	if display != nil {
		fmt.Fprintln(out)
		printTransaction(out, display)
	}
	return nil
}
