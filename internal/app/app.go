package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"phenocli/internal/config"
	"phenocli/internal/errors"
	"phenocli/internal/exporter"
	"phenocli/internal/infrastructure"
	"phenocli/internal/operations"
	"phenocli/internal/validation"
)

// Options are the command line inputs of one report run
type Options struct {
	// BasePath holds RAW_CSV_DATA and receives PROCESSED_CSV_DATA
	BasePath string
	// ConfigFile is an optional YAML file layered over the defaults
	ConfigFile string
	// LogLevel overrides logging.level when set
	LogLevel string
	// Console receives logs and stdout traces; defaults to stderr
	Console io.Writer
	// Clock stamps the workbook name; defaults to time.Now
	Clock func() time.Time
}

// Application holds everything one report run needs
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	validator *validation.FileValidator
	clock     func() time.Time
	logFile   *os.File
}

// NewApplication loads configuration and sets up logging and telemetry
func NewApplication(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, errors.NewConfigError("failed to load configuration", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	paths, err := config.NewPaths(opts.BasePath)
	if err != nil {
		return nil, errors.NewAppValidationError(err.Error())
	}
	if cfg.Logging.Output != "console" && cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = paths.GetOutputPath(config.LogFileName)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	logger, logFile, err := infrastructure.NewLogger(cfg.Logging, console)
	if err != nil {
		return nil, errors.NewStorageError("failed to initialize logger", err)
	}
	slog.SetDefault(logger)

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	otelCfg.TraceWriter = console
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, errors.NewConfigError("failed to initialize OpenTelemetry", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		validator:     validation.NewFileValidator(logger),
		clock:         clock,
		logFile:       logFile,
	}, nil
}

// Run validates the directories, executes the report pipeline and returns the
// path of the written workbook
func (a *Application) Run(ctx context.Context) (string, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	runID := infrastructure.GetTraceID(ctx)

	a.Logger.InfoContext(ctx, "Report run starting",
		slog.String("app", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("base_path", a.Paths.BaseDir))
	a.Paths.LogPathResolution(a.Logger)

	if err := a.validator.ValidateInputDirectory(a.Paths.RawDir, config.InputFilePattern); err != nil {
		return "", err
	}
	if err := a.validator.ValidateOutputDirectory(a.Paths.ProcessedDir); err != nil {
		return "", err
	}

	workbook, err := exporter.NewWorkbook(a.Logger)
	if err != nil {
		return "", err
	}
	defer workbook.Close()

	pipeline := operations.PipelineConfig{
		Paths:   a.Paths,
		Report:  a.Config.Report,
		Sink:    workbook,
		Clock:   a.clock,
		Metrics: a.OTelProviders.Metrics,
	}
	if a.Config.Report.ExportCSV {
		pipeline.Tables = exporter.NewCSVWriter(a.Logger, a.Paths.ProcessedDir)
	}

	manager := operations.NewManager(a.Logger, a.OTelProviders.Metrics)
	for _, step := range operations.NewReportStages(a.Logger, pipeline) {
		if err := manager.RegisterStep(step); err != nil {
			return "", err
		}
	}

	state := operations.NewOperationState(runID)
	runErr := manager.Execute(ctx, state)

	if err := a.OTelProviders.WriteMetricsTextfile(a.Config.Telemetry.MetricsTextfile); err != nil {
		a.Logger.WarnContext(ctx, "Failed to write metrics textfile",
			slog.String("path", a.Config.Telemetry.MetricsTextfile),
			slog.String("error", err.Error()))
	}

	if runErr != nil {
		infrastructure.WithError(a.Logger, runErr).ErrorContext(ctx, "Report run failed",
			slog.Any("failed_steps", failedStepIDs(state)),
			slog.Duration("duration", state.Duration()))
		return "", runErr
	}

	a.Logger.InfoContext(ctx, "Report run completed",
		slog.String("output", state.OutputPath),
		slog.Int("input_files", len(state.InputFiles)),
		slog.Duration("duration", state.Duration()))
	return state.OutputPath, nil
}

// Close flushes telemetry and closes the log file
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, err)
		}
		a.logFile = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func failedStepIDs(state *operations.OperationState) []string {
	var ids []string
	for _, st := range state.GetFailedStages() {
		ids = append(ids, st.ID)
	}
	sort.Strings(ids)
	return ids
}
