package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/lumen"
	"github.com/mattjoyce/lumen/internal/log"
)

const version = "0.1.0"

func main() {
	// Host environment overrides for local testing (LUMEN_* variables).
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "lumen",
		Short:         "Developer harness for lumen plugins",
		Long:          "lumen drives a plugin process the way the launcher host would:\nit spawns the entrypoint, performs the initialize handshake, sends\nqueries, and prints the results.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var logLevel string
	root.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "diagnostic log level (DEBUG, INFO, WARN, ERROR)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log.Setup(logLevel, nil)
	}

	root.AddCommand(newProbeCmd())
	root.AddCommand(newQueryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <plugin-dir>",
		Short: "Validate and print a plugin manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := lumen.LoadManifestDir(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("id:          %s\n", manifest.ID)
			fmt.Printf("name:        %s\n", manifest.Name)
			if manifest.Description != "" {
				fmt.Printf("description: %s\n", manifest.Description)
			}
			if manifest.Author != "" {
				fmt.Printf("author:      %s\n", manifest.Author)
			}
			if manifest.Version != "" {
				fmt.Printf("version:     %s\n", manifest.Version)
			}
			fmt.Printf("entrypoint:  %s\n", manifest.Entrypoint)
			if manifest.ActionKeyword != "" {
				fmt.Printf("keyword:     %s\n", manifest.ActionKeyword)
			}
			return nil
		},
	}
}

func newQueryCmd() *cobra.Command {
	var (
		keyword string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query <entrypoint> <text>",
		Short: "Spawn a plugin and run one query against it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := newHost(args[0], timeout)
			results, err := host.runQuery(cmd.Context(), args[1], keyword)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("(no results)")
				return nil
			}
			for i, res := range results {
				fmt.Printf("%2d. %s", i+1, res.Title)
				if res.Sub != "" {
					fmt.Printf("  —  %s", res.Sub)
				}
				if res.Score != 0 {
					fmt.Printf("  (score %d)", res.Score)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "*", "action keyword to send with the query")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-query timeout before the plugin is terminated")
	return cmd
}
