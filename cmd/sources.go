package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sits/internal/source"
)

var sourcesStrict bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show where each input source resolves",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sources"); err != nil {
			return err
		}
		res := source.ResolveAll(source.FromConfig(cfg.Discovery))
		formatResolutions(os.Stdout, res)
		if sourcesStrict {
			return checkRequired(res)
		}
		return nil
	},
}

func formatResolutions(out io.Writer, res []source.Resolution) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tREQUIRED\tSTATUS\tPATH")
	for _, r := range res {
		status := "found"
		if !r.Found {
			status = "missing"
		}
		req := "no"
		if r.Required {
			req = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Logical, req, status, r.Path)
	}
	_ = w.Flush()
}

// checkRequired fails when a required source did not resolve.
func checkRequired(res []source.Resolution) error {
	var missing []string
	for _, r := range res {
		if r.Required && !r.Found {
			missing = append(missing, r.Logical)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("sources: required sources missing: %v", missing)
	}
	return nil
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesStrict, "strict", false, "exit non-zero when a required source is missing")
	rootCmd.AddCommand(sourcesCmd)
}
