package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rawtx",
		Usage: "Solana raw transaction decoder and reconstruction CLI",
		Description: `A command-line tool for decoding Solana wire-format transactions and
rebuilding raw transactions from their signatures.

Decode works offline. Reconstruct talks to a Solana RPC node directly; the
client subcommands go through a running rawtx server instead.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			decodeCommand(),
			reconstructCommand(),
			// Client commands (HTTP API)
			clientCommands(),
			// Archive inspection commands
			{
				Name:  "db",
				Usage: "Reconstruction archive commands",
				Subcommands: []*cli.Command{
					listReconstructionsCommand(),
					getReconstructionCommand(),
				},
			},
			// NATS event streaming commands
			{
				Name:  "nats",
				Usage: "NATS reconstruction event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Temporal batch commands
			{
				Name:  "temporal",
				Usage: "Temporal batch reconstruction commands",
				Subcommands: []*cli.Command{
					batchReconstructCommand(),
					batchStatusCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Network label for archive and events (mainnet, devnet, testnet)",
				EnvVars: []string{"SOLANA_NETWORK"},
				Value:   "mainnet",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "rawtx-reconstruct",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "rawtx server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
