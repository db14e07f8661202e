package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/rawtx/client"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			cl := client.NewClient(serverURL, &http.Client{Timeout: c.Duration("timeout")}, nil)
			if err := cl.Health(context.Background()); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Fprintf(c.App.Writer, "✓ Server is healthy\n")
			fmt.Fprintf(c.App.Writer, "  URL: %s\n", serverURL)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "rawtx CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
