package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/sits/internal/config"
	"github.com/sells-group/sits/internal/fetcher"
)

var fetchOnly []string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the configured source archives",
	Long: "Downloads every fetch.sources entry over http, https or ftp into fetch.dest_dir, " +
		"skipping archives the server reports unchanged, and extracts zips marked extract.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		client := fetcher.New(fetchOptions(cfg.Fetch))
		results, err := client.FetchAll(ctx, fetchSources(cfg.Fetch, fetchOnly), cfg.Fetch.DestDir)
		formatFetchResults(os.Stdout, results)
		return err
	},
}

func fetchOptions(c config.FetchConfig) fetcher.Options {
	return fetcher.Options{
		HTTP: fetcher.HTTPOptions{
			UserAgent: c.UserAgent,
			Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
			RateLimit: c.RateLimit,
		},
		FTP: fetcher.FTPOptions{Timeout: time.Duration(c.TimeoutSecs) * time.Second},
	}
}

// fetchSources converts the configured sources, keeping only the named
// ones when only is non-empty.
func fetchSources(c config.FetchConfig, only []string) []fetcher.Source {
	keep := make(map[string]bool, len(only))
	for _, n := range only {
		keep[n] = true
	}
	var out []fetcher.Source
	for _, s := range c.Sources {
		if len(keep) > 0 && !keep[s.Name] {
			continue
		}
		out = append(out, fetcher.Source{Name: s.Name, URL: s.URL, Extract: s.Extract, Include: s.Include})
	}
	return out
}

func formatFetchResults(out io.Writer, results []fetcher.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tBYTES\tFILES\tDURATION\tPATH")
	for _, r := range results {
		status := "downloaded"
		switch {
		case r.Err != nil:
			status = "FAILED: " + r.Err.Error()
		case r.Skipped:
			status = "unchanged"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Source.Name,
			status,
			r.Bytes,
			len(r.Files),
			r.Duration.Round(time.Millisecond),
			r.Path,
		)
	}
	_ = w.Flush()
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchOnly, "only", nil, "fetch only the named sources")
	rootCmd.AddCommand(fetchCmd)
}
