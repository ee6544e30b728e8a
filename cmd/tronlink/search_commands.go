package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/tronlink/service/search"
	"github.com/brojonat/tronlink/service/tronscan"
	"github.com/urfave/cli/v2"
)

// Same bounds the HTTP API enforces.
const (
	maxSearchDepth   = 6
	maxSearchWorkers = 8
)

// explorerFlags configure the TronScan client.
func explorerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "api-url",
			Usage:   "TronScan API base URL",
			EnvVars: []string{"TRONSCAN_API_URL"},
			Value:   tronscan.DefaultBaseURL,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "TronScan API key",
			EnvVars: []string{"TRONSCAN_API_KEY"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Per-request timeout",
			EnvVars: []string{"HTTP_TIMEOUT"},
			Value:   23 * time.Second,
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Usage:   "Attempts per fetch before giving up",
			EnvVars: []string{"FETCH_MAX_ATTEMPTS"},
			Value:   3,
		},
		&cli.DurationFlag{
			Name:    "retry-delay",
			Usage:   "Fixed pause between attempts",
			EnvVars: []string{"FETCH_RETRY_DELAY"},
			Value:   time.Second,
		},
	}
}

// newExplorer builds a TronScan client from explorerFlags.
func newExplorer(c *cli.Context) (*tronscan.Client, error) {
	apiKey := c.String("api-key")
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required (set TRONSCAN_API_KEY env var or use --api-key)")
	}
	if c.Int("max-attempts") < 1 {
		return nil, fmt.Errorf("--max-attempts must be at least 1")
	}

	retryDelay := c.Duration("retry-delay")
	if retryDelay == 0 {
		retryDelay = -1 // ClientConfig reads zero as the default
	}

	return tronscan.NewClient(tronscan.ClientConfig{
		BaseURL:     c.String("api-url"),
		APIKey:      apiKey,
		Timeout:     c.Duration("timeout"),
		MaxAttempts: c.Int("max-attempts"),
		RetryDelay:  retryDelay,
	}, nil, setupLogger(c.String("log-level"))), nil
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search for a transaction path from SOURCE to TARGET",
		ArgsUsage: "SOURCE TARGET",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "max-depth",
				Aliases: []string{"d"},
				Usage:   fmt.Sprintf("Maximum number of hops (1-%d)", maxSearchDepth),
				Value:   search.DefaultMaxDepth,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   fmt.Sprintf("Number of redundant search workers (1-%d)", maxSearchWorkers),
				Value:   search.DefaultWorkers,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "File the search log is written to, overwritten on each run (empty to skip)",
				Value: search.DefaultLogFile,
			},
			&cli.StringFlag{
				Name:  "follow-jq",
				Usage: "jq expression; only transactions it accepts are followed",
			},
			&cli.BoolFlag{
				Name:  "cancel-on-found",
				Usage: "Stop the other workers once one finds the target",
			},
		}, explorerFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires exactly two arguments: source and target address")
			}
			if d := c.Int("max-depth"); d < 1 || d > maxSearchDepth {
				return fmt.Errorf("--max-depth must be between 1 and %d, got %d", maxSearchDepth, d)
			}
			if w := c.Int("workers"); w < 1 || w > maxSearchWorkers {
				return fmt.Errorf("--workers must be between 1 and %d, got %d", maxSearchWorkers, w)
			}

			explorer, err := newExplorer(c)
			if err != nil {
				return err
			}

			logger := setupLogger(c.String("log-level"))
			orch := search.NewOrchestrator(explorer, nil, logger)

			report, err := orch.Run(c.Context, search.Request{
				Source:        c.Args().Get(0),
				Target:        c.Args().Get(1),
				MaxDepth:      c.Int("max-depth"),
				Workers:       c.Int("workers"),
				LogFile:       c.String("log-file"),
				FollowJQ:      c.String("follow-jq"),
				CancelOnFound: c.Bool("cancel-on-found"),
			})
			if report == nil {
				return err
			}
			if err != nil {
				// The search finished; only the log file failed.
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}

			if c.Bool("json") {
				return outputJSON(report)
			}

			printReport(report)
			if path := c.String("log-file"); path != "" && err == nil {
				fmt.Printf("  Log:      %s\n", path)
			}
			return nil
		},
	}
}

func printReport(report *search.Report) {
	switch {
	case report.Found:
		fmt.Printf("✓ Connection found between %s and %s\n", report.Source, report.Target)
	case report.Inconclusive:
		fmt.Printf("? No connection found between %s and %s, but %d fetches failed\n",
			report.Source, report.Target, len(report.FailedAddresses))
		for _, addr := range report.FailedAddresses {
			fmt.Printf("    %s\n", addr)
		}
	default:
		fmt.Printf("✗ No connection found between %s and %s\n", report.Source, report.Target)
	}
	fmt.Printf("  Max depth: %d\n", report.MaxDepth)
	fmt.Printf("  Workers:   %d\n", report.Workers)
	fmt.Printf("  Duration:  %v\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

func transactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "transactions",
		Aliases:   []string{"txns"},
		Usage:     "Show one page of an address's transactions",
		ArgsUsage: "ADDRESS",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page number",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Page size",
				Value: tronscan.DefaultLimit,
			},
			&cli.StringFlag{
				Name:  "order",
				Usage: "Sort order by timestamp (asc, desc)",
				Value: string(tronscan.OrderAsc),
			},
			&cli.Int64Flag{
				Name:  "start",
				Usage: "Start of the time window",
			},
			&cli.Int64Flag{
				Name:  "end",
				Usage: "End of the time window",
				Value: tronscan.DefaultEnd,
			},
		}, explorerFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: address")
			}

			order := tronscan.Order(c.String("order"))
			if order != tronscan.OrderAsc && order != tronscan.OrderDesc {
				return fmt.Errorf("invalid --order %q: must be asc or desc", order)
			}
			if c.Int("page") < 1 || c.Int("limit") < 1 {
				return fmt.Errorf("--page and --limit must be at least 1")
			}

			explorer, err := newExplorer(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, 5*time.Minute)
			defer cancel()

			txns, err := explorer.Fetch(ctx, tronscan.Query{
				Address: c.Args().First(),
				Start:   c.Int64("start"),
				End:     c.Int64("end"),
				Page:    c.Int("page"),
				Limit:   c.Int("limit"),
				Order:   order,
			})
			if err != nil {
				return fmt.Errorf("failed to fetch transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(txns)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HASH\tFROM\tTO\tAMOUNT\tTIME")
			for _, txn := range txns {
				ts := "-"
				if !txn.Timestamp.IsZero() {
					ts = txn.Timestamp.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					txn.Hash,
					txn.OwnerAddress,
					formatOptional(txn.ToAddress),
					formatOptional(txn.Amount),
					ts,
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(txns))
			return nil
		},
	}
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatOptional(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
