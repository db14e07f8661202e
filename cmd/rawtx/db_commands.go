package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/rawtx/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listReconstructionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List archived reconstructions, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of rows",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Rows to skip",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			recs, err := store.ListReconstructions(context.Background(), db.ListReconstructionsParams{
				Network: c.String("network"),
				Limit:   int32(c.Int("limit")),
				Offset:  int32(c.Int("offset")),
			})
			if err != nil {
				return fmt.Errorf("failed to list reconstructions: %w", err)
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, recs)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNATURE\tVERSION\tSIGS\tBYTES\tUPDATED")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\n",
					r.Signature,
					r.MessageVersion,
					r.NumSignatures,
					r.NumRequiredSignatures,
					len(r.RawTransaction),
					r.UpdatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d reconstructions\n", len(recs))
			return nil
		},
	}
}

func getReconstructionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show an archived reconstruction",
		ArgsUsage: "<signature>",
		Flags: []cli.Flag{
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

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			rec, err := store.GetReconstruction(context.Background(), signature, c.String("network"))
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no archived reconstruction for %s on %s", signature, c.String("network"))
			}
			if err != nil {
				return fmt.Errorf("failed to get reconstruction: %w", err)
			}

			if c.Bool("json") || c.Bool("decode") {
				return printReconstruction(c, rec.Signature, rec.RawTransaction)
			}

			out := c.App.Writer
			fmt.Fprintf(out, "Signature:  %s\n", rec.Signature)
			fmt.Fprintf(out, "Network:    %s\n", rec.Network)
			fmt.Fprintf(out, "Version:    %s\n", rec.MessageVersion)
			fmt.Fprintf(out, "Signatures: %d of %d required\n", rec.NumSignatures, rec.NumRequiredSignatures)
			fmt.Fprintf(out, "Created:    %s\n", rec.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Updated:    %s\n", rec.UpdatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Raw:        %s\n", base64.StdEncoding.EncodeToString(rec.RawTransaction))
			return nil
		},
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}
