// Package main provides the CLI entrypoint for streamdash.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/streamdash/internal/config"
	"github.com/verte-zerg/streamdash/internal/dashboard"
	"github.com/verte-zerg/streamdash/internal/dataset"
	"github.com/verte-zerg/streamdash/internal/generator"
	"github.com/verte-zerg/streamdash/internal/logging"
	"github.com/verte-zerg/streamdash/internal/model"
	"github.com/verte-zerg/streamdash/internal/store"
)

const (
	defaultSourceKind = "csv"
	defaultCSVPath    = "olympics_data.csv"
	defaultEncoding   = dataset.EncodingLatin1
	defaultAPITimeout = 30 * time.Second
	defaultFallback   = "generate"
	defaultDataset    = "default"
	defaultLogLevel   = "info"
	defaultLogFormat  = "console"
	apiKeyEnv         = "STREAMDASH_API_KEY"
)

type sourceOptions struct {
	kind        string
	path        string
	encoding    string
	apiEndpoint string
	apiKey      string
	apiTimeout  time.Duration
	apiDelay    time.Duration
	fallback    string
	rows        int
	seed        int64
	dataset     string
}

type filterOptions struct {
	start     string
	end       string
	countries []string
	sports    []string
	devices   []string
}

var (
	sourceOpts sourceOptions
	filterOpts filterOptions
	exportDir  string
	logLevel   string
	logFormat  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "streamdash",
		Short:         "Olympics streaming viewership dashboard",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDashboardCmd,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (trace, debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", defaultLogFormat, "log format (console, json)")
	addSourceFlags(rootCmd)
	addFilterFlags(rootCmd)
	rootCmd.Flags().StringVar(&exportDir, "out", config.DefaultExportDir(), "export directory")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newExportsCmd())
	rootCmd.AddCommand(newDatasetsCmd())

	return rootCmd
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sourceOpts.kind, "source", defaultSourceKind, "data source (csv, api, store, generate)")
	cmd.Flags().StringVar(&sourceOpts.path, "csv", defaultCSVPath, "CSV file for the csv source")
	cmd.Flags().StringVar(&sourceOpts.encoding, "encoding", defaultEncoding, "CSV encoding (utf-8, latin1)")
	cmd.Flags().StringVar(&sourceOpts.apiEndpoint, "api-endpoint", "", "viewership API URL for the api source")
	cmd.Flags().StringVar(&sourceOpts.apiKey, "api-key", "", "viewership API key (or "+apiKeyEnv+")")
	cmd.Flags().DurationVar(&sourceOpts.apiTimeout, "api-timeout", defaultAPITimeout, "viewership API request timeout")
	cmd.Flags().DurationVar(&sourceOpts.apiDelay, "api-delay", 0, "wait before each API request")
	cmd.Flags().StringVar(&sourceOpts.fallback, "fallback", defaultFallback, "source used when the primary has no data (none, generate)")
	cmd.Flags().IntVar(&sourceOpts.rows, "rows", generator.DefaultRows, "events produced by the generate source")
	cmd.Flags().Int64Var(&sourceOpts.seed, "seed", 0, "generator seed (0 seeds from the clock)")
	cmd.Flags().StringVar(&sourceOpts.dataset, "dataset", defaultDataset, "stored dataset name")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&filterOpts.start, "start", "", "first date (YYYY-MM-DD, default: earliest in data)")
	cmd.Flags().StringVar(&filterOpts.end, "end", "", "last date (YYYY-MM-DD, default: latest in data)")
	cmd.Flags().StringSliceVar(&filterOpts.countries, "country", nil, "country filter (repeatable or comma-separated)")
	cmd.Flags().StringSliceVar(&filterOpts.sports, "sport", nil, "sport filter (repeatable or comma-separated)")
	cmd.Flags().StringSliceVar(&filterOpts.devices, "device", nil, "device filter (repeatable or comma-separated)")
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	settings, fileCfg, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	logPath := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			// Best-effort close of the log file.
			_ = cerr
		}
	}()
	logging.Init(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat, Output: logFile})

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

	m := dashboard.NewModel(ds, dashboard.Options{
		Filter:    spec,
		ExportDir: settings.ExportDir,
		Recorder:  st,
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

// resolveSettings merges flags, the config file and defaults. Flags set on the
// command line win over config values.
func resolveSettings(cmd *cobra.Command) (model.Settings, config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Settings{}, config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	src := fileCfg.Source
	applyStringConfig(cmd, "source", &sourceOpts.kind, src.Kind)
	applyStringConfig(cmd, "csv", &sourceOpts.path, src.Path)
	applyStringConfig(cmd, "encoding", &sourceOpts.encoding, src.Encoding)
	applyStringConfig(cmd, "api-endpoint", &sourceOpts.apiEndpoint, src.APIEndpoint)
	applyStringConfig(cmd, "api-key", &sourceOpts.apiKey, src.APIKey)
	applyDurationConfig(cmd, "api-timeout", &sourceOpts.apiTimeout, src.APITimeout)
	applyDurationConfig(cmd, "api-delay", &sourceOpts.apiDelay, src.APIDelay)
	applyStringConfig(cmd, "fallback", &sourceOpts.fallback, src.Fallback)
	applyIntConfig(cmd, "rows", &sourceOpts.rows, src.Rows)
	applyInt64Config(cmd, "seed", &sourceOpts.seed, src.Seed)
	applyStringConfig(cmd, "dataset", &sourceOpts.dataset, src.Dataset)
	applyStringConfig(cmd, "out", &exportDir, fileCfg.Export.Dir)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-format", &logFormat, fileCfg.Log.Format)
	if strings.TrimSpace(sourceOpts.apiKey) == "" {
		sourceOpts.apiKey = os.Getenv(apiKeyEnv)
	}

	settings := model.Settings{
		Source: model.SourceSettings{
			Kind:        strings.ToLower(strings.TrimSpace(sourceOpts.kind)),
			Path:        sourceOpts.path,
			Encoding:    strings.ToLower(strings.TrimSpace(sourceOpts.encoding)),
			APIEndpoint: strings.TrimSpace(sourceOpts.apiEndpoint),
			APIKey:      strings.TrimSpace(sourceOpts.apiKey),
			APITimeout:  sourceOpts.apiTimeout,
			APIDelay:    sourceOpts.apiDelay,
			Fallback:    strings.ToLower(strings.TrimSpace(sourceOpts.fallback)),
			Rows:        sourceOpts.rows,
			Seed:        sourceOpts.seed,
			Dataset:     strings.TrimSpace(sourceOpts.dataset),
		},
		ExportDir: exportDir,
		DBPath:    config.DefaultDBPath(),
		LogLevel:  strings.ToLower(logLevel),
		LogFormat: strings.ToLower(logFormat),
	}
	if err := config.Validate(settings); err != nil {
		return model.Settings{}, config.FileConfig{}, err
	}
	return settings, fileCfg, nil
}

// resolveFilter builds the initial selection. Open date bounds take the dataset's span.
func resolveFilter(cmd *cobra.Command, fileCfg config.FileConfig, ds model.Dataset) (model.FilterSpec, error) {
	applyStringConfig(cmd, "start", &filterOpts.start, fileCfg.Filter.Start)
	applyStringConfig(cmd, "end", &filterOpts.end, fileCfg.Filter.End)
	applyStringSliceConfig(cmd, "country", &filterOpts.countries, fileCfg.Filter.Countries)
	applyStringSliceConfig(cmd, "sport", &filterOpts.sports, fileCfg.Filter.Sports)
	applyStringSliceConfig(cmd, "device", &filterOpts.devices, fileCfg.Filter.Devices)

	lo, hi, _ := ds.DateBounds()
	dates, err := config.ParseDateRange(filterOpts.start, filterOpts.end, lo, hi)
	if err != nil {
		return model.FilterSpec{}, err
	}
	return model.FilterSpec{
		DateRange: dates,
		Countries: config.SplitList(filterOpts.countries),
		Sports:    config.SplitList(filterOpts.sports),
		Devices:   config.SplitList(filterOpts.devices),
	}, nil
}

// buildProvider maps settings onto a dataset provider. st may be nil unless the
// store source is selected.
func buildProvider(s model.Settings, st *store.Store) dataset.Provider {
	generated := dataset.GeneratedSource{Rows: s.Source.Rows, Seed: s.Source.Seed}
	var p dataset.Provider
	switch s.Source.Kind {
	case "generate":
		return generated
	case "api":
		p = dataset.NewAPIClient(dataset.APIConfig{
			Endpoint: s.Source.APIEndpoint,
			Key:      s.Source.APIKey,
			Timeout:  s.Source.APITimeout,
			Delay:    s.Source.APIDelay,
		})
	case "store":
		p = store.Source{Store: st, Dataset: s.Source.Dataset}
	default:
		p = dataset.CSVSource{Path: s.Source.Path, Encoding: s.Source.Encoding}
	}
	if s.Source.Fallback == "generate" {
		return dataset.Fallback{Primary: p, Secondary: generated}
	}
	return p
}

func loadDataset(ctx context.Context, p dataset.Provider) (model.Dataset, error) {
	ds, stats, err := p.Load(ctx)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("failed to load dataset from %s: %w", p.Name(), err)
	}
	logging.Info().
		Str("source", p.Name()).
		Int("read", stats.Read).
		Int("kept", stats.Kept).
		Int("dropped_blank", stats.DroppedBlank).
		Int("dropped_invalid", stats.DroppedInvalid).
		Msg("dataset loaded")
	if ds.Len() == 0 {
		logging.Warn().Str("source", p.Name()).Msg("dataset is empty")
	}
	return ds, nil
}

func initCLILogging(s model.Settings) {
	logging.Init(logging.Config{Level: s.LogLevel, Format: s.LogFormat, Output: os.Stderr})
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target, value *time.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# streamdash configuration
# Uncomment a value to enable it. CLI flags override config values.

[source]
# kind = %q               # csv, api, store or generate
# path = %q    # CSV file for the csv source
# encoding = %q           # utf-8 or latin1
# api-endpoint = ""           # Viewership API URL for the api source
# api-key = ""                # API key (or set %s)
# api-timeout = %q           # API request timeout
# api-delay = "0s"            # Wait before each API request
# fallback = %q         # none or generate, used when the source has no data
# rows = %d                 # Events produced by the generate source
# seed = 0                    # Generator seed (0 seeds from the clock)
# dataset = %q           # Stored dataset name for import and the store source

[filter]
# start = "2024-06-07"        # First date (default: earliest in data)
# end = "2024-06-10"          # Last date (default: latest in data)
# countries = ["USA"]
# sports = ["Swimming"]
# devices = ["Mobile"]

[export]
# dir = %q

[log]
# level = %q              # trace, debug, info, warn, error or disabled
# format = %q          # console or json
`,
		defaultSourceKind,
		defaultCSVPath,
		defaultEncoding,
		apiKeyEnv,
		defaultAPITimeout.String(),
		defaultFallback,
		generator.DefaultRows,
		defaultDataset,
		config.DefaultExportDir(),
		defaultLogLevel,
		defaultLogFormat,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
