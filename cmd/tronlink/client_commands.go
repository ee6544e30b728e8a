package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/tronlink/client"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the tronlink service",
		Subcommands: []*cli.Command{
			clientSearchCommand(),
			clientListCommand(),
			clientGetCommand(),
		},
	}
}

func newAPIClient(c *cli.Context, timeout time.Duration) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, &http.Client{Timeout: timeout}, setupLogger(c.String("log-level"))), nil
}

func clientSearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a connection search on the server",
		ArgsUsage: "SOURCE TARGET",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max-depth",
				Aliases: []string{"d"},
				Usage:   "Maximum number of hops (0 for the server default)",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Number of redundant search workers (0 for the server default)",
			},
			&cli.StringFlag{
				Name:  "follow-jq",
				Usage: "jq expression; only transactions it accepts are followed",
			},
			&cli.BoolFlag{
				Name:  "cancel-on-found",
				Usage: "Stop the other workers once one finds the target",
			},
			&cli.BoolFlag{
				Name:  "show-log",
				Usage: "Print the search log",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   client.DefaultTimeout,
				Usage:   "How long to wait for the search",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires exactly two arguments: source and target address")
			}

			api, err := newAPIClient(c, c.Duration("timeout"))
			if err != nil {
				return err
			}

			s, err := api.Search(context.Background(), client.SearchRequest{
				Source:        c.Args().Get(0),
				Target:        c.Args().Get(1),
				MaxDepth:      c.Int("max-depth"),
				Workers:       c.Int("workers"),
				FollowJQ:      c.String("follow-jq"),
				CancelOnFound: c.Bool("cancel-on-found"),
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(s)
			}

			printSearch(s)
			if c.Bool("show-log") {
				fmt.Println()
				for _, line := range s.Log {
					fmt.Println(line)
				}
			}
			return nil
		},
	}
}

func clientListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List recent searches",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of searches",
				Value:   20,
			},
		},
		Action: func(c *cli.Context) error {
			api, err := newAPIClient(c, 30*time.Second)
			if err != nil {
				return err
			}

			searches, err := api.List(context.Background(), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list searches: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(searches)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tTARGET\tDEPTH\tOUTCOME\tSTARTED")
			for _, s := range searches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.ID,
					s.Source,
					s.Target,
					s.MaxDepth,
					outcome(s),
					s.StartedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d searches\n", len(searches))
			return nil
		},
	}
}

func clientGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a stored search with its log",
		ArgsUsage: "ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: search id")
			}

			api, err := newAPIClient(c, 30*time.Second)
			if err != nil {
				return err
			}

			s, err := api.Get(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get search: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(s)
			}

			printSearch(s)
			fmt.Println()
			for _, line := range s.Log {
				fmt.Println(line)
			}
			return nil
		},
	}
}

func printSearch(s *client.Search) {
	fmt.Printf("ID:        %s\n", s.ID)
	fmt.Printf("Source:    %s\n", s.Source)
	fmt.Printf("Target:    %s\n", s.Target)
	fmt.Printf("Max Depth: %d\n", s.MaxDepth)
	fmt.Printf("Workers:   %d\n", s.Workers)
	if s.FollowJQ != "" {
		fmt.Printf("Follow:    %s\n", s.FollowJQ)
	}
	fmt.Printf("Outcome:   %s\n", outcome(s))
	if len(s.FailedAddresses) > 0 {
		fmt.Printf("Failed:    %v\n", s.FailedAddresses)
	}
	fmt.Printf("Started:   %s\n", s.StartedAt.Format(time.RFC3339))
}

func outcome(s *client.Search) string {
	switch {
	case s.Found:
		return "found"
	case s.Inconclusive:
		return "inconclusive"
	default:
		return "not found"
	}
}
