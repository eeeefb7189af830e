package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/model"
	"github.com/sells-group/sits/internal/report"
)

var (
	reportDataDir   string
	reportOutDir    string
	reportKind      string
	reportLocality  string
	reportAGEB      string
	reportGroup     string
	reportIndicator string
	reportLimit     int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the dashboard tables as CSV and XLSX",
	Long: "Loads the zone datasets written by run, applies the kind, locality and AGEB filters " +
		"and writes the roster, operational, Sendai, decision, economic and restricted tables " +
		"as CSV files plus one XLSX workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportDataDir != "" {
			cfg.Output.Dir = reportDataDir
		}
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		out := reportOutDir
		if out == "" {
			out = filepath.Join(cfg.Output.Dir, "reports")
		}

		zones, err := report.Load(cfg.Output.Dir)
		if err != nil {
			return err
		}
		f, err := reportFilter(reportKind, reportLocality, reportAGEB)
		if err != nil {
			return err
		}
		tables, err := buildTables(f.Apply(zones), reportGroup, reportIndicator, reportLimit)
		if err != nil {
			return err
		}
		paths, err := writeTables(out, tables)
		if err != nil {
			return err
		}
		formatWritten(os.Stdout, tables, paths)
		return nil
	},
}

func reportFilter(kind, locality, ageb string) (report.Filter, error) {
	f := report.Filter{Locality: locality, AGEB: ageb}
	if kind != "" {
		k, ok := model.ParseKind(kind)
		if !ok {
			return f, eris.Errorf("report: unknown kind %q", kind)
		}
		f.Kind = k
	}
	return f, nil
}

// buildTables derives every export table from the filtered zones.
func buildTables(zones []model.Zone, groupKey, indKey string, limit int) ([]report.Table, error) {
	group, err := report.GroupByKey(groupKey)
	if err != nil {
		return nil, err
	}
	ind, err := report.IndicatorByKey(indKey)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, eris.Errorf("report: limit must be >= 0, got %d", limit)
	}

	tables := []report.Table{
		report.RosterTable(report.Roster(zones, group, ind, limit), group, ind),
	}
	for _, a := range []report.Axis{report.AxisHydric, report.AxisEnvironmental, report.AxisSocial} {
		tables = append(tables, report.OperationalTable(report.Operational(zones, a), a))
	}
	for _, p := range []report.Phase{report.PhasePreparedness, report.PhasePrevention, report.PhaseResponse} {
		tables = append(tables, report.SendaiTable(report.Sendai(zones, p, limit)))
	}
	tables = append(tables,
		report.DecisionTable(report.Decisions(zones, false)),
		report.EconomicTable(report.Economic(zones)),
		report.RestrictedTable(report.Restricted(zones)),
	)
	return tables, nil
}

// writeTables writes one CSV per table and a workbook holding all of them.
func writeTables(dir string, tables []report.Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", dir)
	}

	paths := make([]string, 0, len(tables)+1)
	for _, t := range tables {
		p := filepath.Join(dir, t.Name+".csv")
		if err := writeCSVFile(p, t); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	book := filepath.Join(dir, "sits_reportes.xlsx")
	if err := report.WriteXLSX(book, tables...); err != nil {
		return paths, err
	}
	paths = append(paths, book)

	zap.L().Info("report: tables written", zap.String("dir", dir), zap.Int("tables", len(tables)))
	return paths, nil
}

func writeCSVFile(path string, t report.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	if err := report.WriteCSV(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}

func formatWritten(out io.Writer, tables []report.Table, paths []string) {
	for i, t := range tables {
		if i >= len(paths) {
			break
		}
		_, _ = fmt.Fprintf(out, "%-28s %5d rows  %s\n", t.Name, len(t.Rows), paths[i])
	}
	if len(paths) > len(tables) {
		_, _ = fmt.Fprintf(out, "workbook: %s\n", paths[len(paths)-1])
	}
}

func init() {
	reportCmd.Flags().StringVar(&reportDataDir, "data-dir", "", "dataset directory (default output.dir)")
	reportCmd.Flags().StringVar(&reportOutDir, "out", "", "report directory (default <data-dir>/reports)")
	reportCmd.Flags().StringVar(&reportKind, "kind", "", "zone kind filter: urban or rural")
	reportCmd.Flags().StringVar(&reportLocality, "locality", "", "locality name filter")
	reportCmd.Flags().StringVar(&reportAGEB, "ageb", "", "AGEB key filter (urban zones)")
	reportCmd.Flags().StringVar(&reportGroup, "group", model.PropTotal, "population group for the roster")
	reportCmd.Flags().StringVar(&reportIndicator, "indicator", model.PropComposite, "indicator for the roster")
	reportCmd.Flags().IntVar(&reportLimit, "limit", report.RosterLimit, "rows kept in ranked tables")
	rootCmd.AddCommand(reportCmd)
}
