package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natspkg "github.com/brojonat/rawtx/service/nats"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams reconstruction events.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Stream reconstruction events",
		Description: `Subscribe to reconstruction events published to NATS JetStream.

Events are published to the subject: reconstructions.{network}
Use --all-networks to receive every network.

Example:
  rawtx nats subscribe --network devnet --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all-networks",
				Usage: "Receive events for every network",
			},
			&cli.StringFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Durable consumer name (replays the stream and survives restarts)",
			},
		},
		Action: func(c *cli.Context) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			sub, err := natspkg.NewSubscriber(c.String("nats-url"), logger)
			if err != nil {
				return err
			}
			defer sub.Close()

			opts := natspkg.SubscribeOptions{Durable: c.String("durable")}
			if !c.Bool("all-networks") {
				opts.Network = c.String("network")
			}

			jsonOutput := c.Bool("json")
			out := c.App.Writer
			if !jsonOutput {
				subject := natspkg.StreamSubjects
				if opts.Network != "" {
					subject = natspkg.Subject(opts.Network)
				}
				fmt.Fprintf(out, "📡 Subscribing to: %s\n", subject)
				fmt.Fprintf(out, "   Press Ctrl+C to stop\n\n")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			count := 0
			err = sub.Subscribe(ctx, opts, func(event *natspkg.ReconstructionEvent) {
				count++
				if jsonOutput {
					writeJSON(out, event)
					return
				}
				fmt.Fprintf(out, "🔧 %s [%s] version=%s sigs=%d/%d at %s\n",
					event.Signature,
					event.Network,
					event.MessageVersion,
					event.NumSignatures,
					event.NumRequiredSignatures,
					event.PublishedAt.Format("15:04:05"),
				)
			})
			if err != nil {
				return err
			}

			if !jsonOutput {
				fmt.Fprintf(out, "\n👋 Received %d events\n", count)
			}
			return nil
		},
	}
}

// inspectStreamCommand shows the state of the reconstruction stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Show reconstruction stream state",
		Action: func(c *cli.Context) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			sub, err := natspkg.NewSubscriber(c.String("nats-url"), logger)
			if err != nil {
				return err
			}
			defer sub.Close()

			info, err := sub.StreamInfo(context.Background())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, info)
			}

			out := c.App.Writer
			fmt.Fprintf(out, "Stream:    %s\n", info.Config.Name)
			fmt.Fprintf(out, "Subjects:  %v\n", info.Config.Subjects)
			fmt.Fprintf(out, "Messages:  %d\n", info.State.Msgs)
			fmt.Fprintf(out, "Bytes:     %d\n", info.State.Bytes)
			fmt.Fprintf(out, "Consumers: %d\n", info.State.Consumers)
			fmt.Fprintf(out, "Max Age:   %s\n", info.Config.MaxAge)
			return nil
		},
	}
}
