package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/streamdash/internal/charts"
	"github.com/verte-zerg/streamdash/internal/config"
	"github.com/verte-zerg/streamdash/internal/export"
	"github.com/verte-zerg/streamdash/internal/generator"
	"github.com/verte-zerg/streamdash/internal/model"
	"github.com/verte-zerg/streamdash/internal/store"
)

const (
	defaultGenerateOut  = "olympics_data.csv"
	defaultExportsLimit = 20
)

var (
	summaryWidth int
	summaryColor bool

	generateRows  int
	generateSeed  int64
	generateStart string
	generateEnd   string
	generateOut   string

	exportsLimit int
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print charts and the summary table",
		Args:  cobra.NoArgs,
		RunE:  runSummaryCmd,
	}
	addSourceFlags(cmd)
	addFilterFlags(cmd)
	cmd.Flags().IntVar(&summaryWidth, "width", 0, "output width (default: terminal width)")
	cmd.Flags().BoolVar(&summaryColor, "color", false, "force colored output")
	return cmd
}

func runSummaryCmd(cmd *cobra.Command, _ []string) error {
	settings, fileCfg, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	initCLILogging(settings)

	var st *store.Store
	if settings.Source.Kind == "store" {
		st, err = store.Open(settings.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
	}

	ds, err := loadDataset(cmd.Context(), buildProvider(settings, st))
	if err != nil {
		return err
	}
	spec, err := resolveFilter(cmd, fileCfg, ds)
	if err != nil {
		return err
	}
	report, err := charts.BuildReport(ds, spec)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	out := cmd.OutOrStdout()
	opts := charts.RenderOptions{
		Width: summaryWidth,
		Color: charts.ShouldUseColor(out, summaryColor),
	}
	if err := charts.RenderReport(out, report, opts); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write filtered rows and aggregates as CSV",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	addSourceFlags(cmd)
	addFilterFlags(cmd)
	cmd.Flags().StringVar(&exportDir, "out", config.DefaultExportDir(), "export directory")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	settings, fileCfg, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	initCLILogging(settings)

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ds, err := loadDataset(cmd.Context(), buildProvider(settings, st))
	if err != nil {
		return err
	}
	spec, err := resolveFilter(cmd, fileCfg, ds)
	if err != nil {
		return err
	}
	report, err := charts.BuildReport(ds, spec)
	if err != nil {
		return fmt.Errorf("failed to filter dataset: %w", err)
	}
	files, err := export.Bundle(settings.ExportDir, report.Dataset)
	if err != nil {
		return err
	}
	filter, err := store.EncodeFilter(spec)
	if err != nil {
		return fmt.Errorf("failed to encode filter: %w", err)
	}
	records := export.Records(store.NewRunID(), filter, files, time.Now())
	if err := st.RecordExports(cmd.Context(), records); err != nil {
		return fmt.Errorf("failed to record exports: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, f := range files {
		if _, err := fmt.Fprintf(out, "wrote %s (%d rows)\n", f.Path, f.Rows); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic viewership CSV",
		Args:  cobra.NoArgs,
		RunE:  runGenerateCmd,
	}
	cmd.Flags().IntVar(&generateRows, "rows", generator.DefaultRows, "number of events")
	cmd.Flags().Int64Var(&generateSeed, "seed", 0, "generator seed (0 seeds from the clock)")
	cmd.Flags().StringVar(&generateStart, "start", generator.DefaultStart.Format(model.DateLayout), "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&generateEnd, "end", generator.DefaultEnd.Format(model.DateLayout), "last date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&generateOut, "output", "o", defaultGenerateOut, "output CSV path")
	return cmd
}

func runGenerateCmd(cmd *cobra.Command, _ []string) error {
	if generateRows <= 0 {
		return fmt.Errorf("--rows must be greater than 0")
	}
	start, err := time.Parse(model.DateLayout, generateStart)
	if err != nil {
		return fmt.Errorf("invalid --start value: %w", err)
	}
	end, err := time.Parse(model.DateLayout, generateEnd)
	if err != nil {
		return fmt.Errorf("invalid --end value: %w", err)
	}
	gen := generator.New()
	if generateSeed != 0 {
		gen = generator.NewSeeded(generateSeed)
	}
	gen, err = gen.WithDates(start, end)
	if err != nil {
		return err
	}
	ds := model.NewDataset(gen.Generate(generateRows))
	if err := export.WriteFile(generateOut, func(w io.Writer) error {
		return export.WriteDataset(w, ds)
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", generateOut, err)
	}
	logErrf("Wrote %d events to %s\n", ds.Len(), generateOut)
	return nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a dataset snapshot in the local database",
		Args:  cobra.NoArgs,
		RunE:  runImportCmd,
	}
	addSourceFlags(cmd)
	return cmd
}

func runImportCmd(cmd *cobra.Command, _ []string) error {
	settings, _, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	initCLILogging(settings)
	if settings.Source.Kind == "store" {
		return fmt.Errorf("import needs a csv, api or generate source")
	}

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	p := buildProvider(settings, st)
	ds, err := loadDataset(cmd.Context(), p)
	if err != nil {
		return err
	}
	if err := st.SaveDataset(cmd.Context(), settings.Source.Dataset, p.Name(), ds); err != nil {
		return fmt.Errorf("failed to store dataset: %w", err)
	}
	logErrf("Stored %d events as %q\n", ds.Len(), settings.Source.Dataset)
	return nil
}

func newExportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List export history",
		Args:  cobra.NoArgs,
		RunE:  runExportsCmd,
	}
	cmd.Flags().IntVar(&exportsLimit, "limit", defaultExportsLimit, "number of entries (0 for all)")
	return cmd
}

func runExportsCmd(cmd *cobra.Command, _ []string) error {
	settings, _, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	initCLILogging(settings)

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	records, err := st.ListExports(cmd.Context(), exportsLimit)
	if err != nil {
		return fmt.Errorf("failed to list exports: %w", err)
	}
	if len(records) == 0 {
		logErrln("No exports yet. Run: streamdash export")
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.CreatedAt.Local().Format(model.TimestampLayout),
			shortID(r.RunID),
			r.Kind,
			strconv.Itoa(r.Rows),
			r.Path,
		})
	}
	return writeLines(cmd.OutOrStdout(), charts.FormatTable([]string{"Created", "Run", "Kind", "Rows", "Path"}, rows, map[int]bool{3: true}))
}

func newDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List stored dataset snapshots",
		Args:  cobra.NoArgs,
		RunE:  runDatasetsCmd,
	}
}

func runDatasetsCmd(cmd *cobra.Command, _ []string) error {
	settings, _, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	initCLILogging(settings)

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	infos, err := st.ListDatasets(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}
	if len(infos) == 0 {
		logErrln("No stored datasets. Run: streamdash import")
		return nil
	}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.Source,
			strconv.Itoa(info.Rows),
			info.LoadedAt.Local().Format(model.TimestampLayout),
		})
	}
	return writeLines(cmd.OutOrStdout(), charts.FormatTable([]string{"Name", "Source", "Rows", "Loaded"}, rows, map[int]bool{2: true}))
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
