package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/vigil/internal/config"
	"github.com/crimson-sun/vigil/internal/output"
	"github.com/crimson-sun/vigil/internal/syscounter"
	"github.com/crimson-sun/vigil/pkg/vigil"
)

var version = "dev"

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vigil",
		Short: "Severity-routed event and counter monitoring",
		Long: `vigil records severity-tagged events for a machine/module, folds
repeats into rollups, stores them and escalates them to notify, email and
SMS channels. It also samples OS counters and exposes them to Prometheus.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (VIGIL_* env vars override it)")
	root.AddCommand(runCmd(), fetchCmd(), countersCmd(), versionCmd())
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func fetchCmd() *cobra.Command {
	var (
		from, to  string
		component string
		pageID    string
		pageSize  int
		backward  bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print stored events as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			req := output.FetchRequest{
				Machine:   cfg.Machine,
				Module:    cfg.Module,
				Component: component,
				PageID:    pageID,
				PageSize:  pageSize,
				Forward:   !backward,
			}
			if req.From, err = parseTime(from); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if req.To, err = parseTime(to); err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			store, err := vigil.OpenStorage(cfg)
			if err != nil {
				return err
			}
			if c, ok := store.(io.Closer); ok {
				defer c.Close()
			}
			events, err := store.Fetch(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "earliest timestamp (RFC 3339 or a duration ago, e.g. 1h)")
	cmd.Flags().StringVar(&to, "to", "", "exclusive latest timestamp (RFC 3339 or a duration ago)")
	cmd.Flags().StringVar(&component, "component", "", "only events of this component")
	cmd.Flags().StringVar(&pageID, "page-id", "", "ID of the last event of the previous page")
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "events per page")
	cmd.Flags().BoolVar(&backward, "backward", false, "page from newest to oldest")
	return cmd
}

// parseTime accepts RFC 3339 or a duration meaning "that long ago".
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	return time.Parse(time.RFC3339, s)
}

func countersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counters",
		Short: "List the OS counters run can attach",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tNAME\tTYPE\tDESCRIPTION")
			for _, d := range syscounter.Descriptors() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Category, d.Name, d.Type, d.Help)
			}
			return w.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vigil %s\n", version)
		},
	}
}
