package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/tronlink/service/db"
	"github.com/brojonat/tronlink/service/search"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listSearchesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-searches",
		Usage:   "List stored searches, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of searches",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Filter by outcome (found, not_found, inconclusive)",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			reports, err := store.ListSearches(context.Background(), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list searches: %w", err)
			}

			if outcome := c.String("outcome"); outcome != "" {
				filtered := make([]*search.Report, 0)
				for _, r := range reports {
					if r.Outcome() == outcome {
						filtered = append(filtered, r)
					}
				}
				reports = filtered
			}

			if c.Bool("json") {
				return outputJSON(reports)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tTARGET\tDEPTH\tWORKERS\tOUTCOME\tSTARTED")
			for _, r := range reports {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					r.ID,
					r.Source,
					r.Target,
					r.MaxDepth,
					r.Workers,
					r.Outcome(),
					r.StartedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d searches\n", len(reports))
			return nil
		},
	}
}

func getSearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-search",
		Usage:     "Show a stored search with its log",
		Aliases:   []string{"get"},
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: search id")
			}
			id, err := uuid.Parse(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid search id: %w", err)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			report, err := store.GetSearch(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to get search: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(report)
			}

			fmt.Printf("ID:        %s\n", report.ID)
			fmt.Printf("Source:    %s\n", report.Source)
			fmt.Printf("Target:    %s\n", report.Target)
			fmt.Printf("Max Depth: %d\n", report.MaxDepth)
			fmt.Printf("Workers:   %d\n", report.Workers)
			fmt.Printf("Outcome:   %s\n", report.Outcome())
			fmt.Printf("Started:   %s\n", report.StartedAt.Format(time.RFC3339))
			fmt.Printf("Finished:  %s\n", report.FinishedAt.Format(time.RFC3339))
			fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			for _, line := range report.Log {
				fmt.Println(line)
			}
			return nil
		},
	}
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
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
