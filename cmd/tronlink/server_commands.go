package main

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/tronlink/service/search"
	"github.com/brojonat/tronlink/service/tronscan"
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

			client := &http.Client{
				Timeout: c.Duration("timeout"),
			}

			resp, err := client.Get(serverURL + "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				fmt.Printf("✓ Server is healthy (status: %d)\n", resp.StatusCode)
				fmt.Printf("  URL: %s\n", serverURL)
				return nil
			}

			return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
		},
	}
}

// versionCommand prints build information and the search settings this
// binary runs with.
func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information and search settings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "TronScan API base URL",
				EnvVars: []string{"TRONSCAN_API_URL"},
				Value:   tronscan.DefaultBaseURL,
			},
		},
		Action: func(c *cli.Context) error {
			apiHost := c.String("api-url")
			if u, err := url.Parse(apiHost); err == nil && u.Host != "" {
				apiHost = u.Host
			}

			w := c.App.Writer
			fmt.Fprintf(w, "tronlink %s (commit %s, built %s)\n", version, commit, date)
			fmt.Fprintf(w, "  TronScan:  %s\n", apiHost)
			fmt.Fprintf(w, "  Depth:     %d (max %d)\n", search.DefaultMaxDepth, maxSearchDepth)
			fmt.Fprintf(w, "  Workers:   %d (max %d)\n", search.DefaultWorkers, maxSearchWorkers)
			return nil
		},
	}
}
