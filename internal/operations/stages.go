package operations

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"phenocli/internal/config"
	"phenocli/internal/dataprocessing"
	"phenocli/internal/errors"
	"phenocli/internal/files"
	"phenocli/internal/infrastructure"
	"phenocli/internal/validation"
	"phenocli/pkg/contracts/domain"
)

// counter picks one of the pipeline counters
type counter func(*infrastructure.PipelineMetrics) metric.Int64Counter

func addCount(ctx context.Context, m *infrastructure.PipelineMetrics, pick counter, n int, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	infrastructure.AddCount(ctx, pick(m), n, attrs...)
}

func stageLogger(logger *slog.Logger, id string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return infrastructure.WithComponent(logger, "operations").With(slog.String("Step", id))
}

// requireArtifact fails a step whose input was never produced
func requireArtifact(present bool, step, artifact string) error {
	if present {
		return nil
	}
	return NewFatalError(artifact+" missing before "+step, nil)
}

// IngestStage discovers the raw exports and reads them into one table
type IngestStage struct {
	BaseStage
	logger    *slog.Logger
	discovery *files.Discovery
	validator *validation.FileValidator
	parser    *dataprocessing.Parser
	dir       string
	pattern   string
	metrics   *infrastructure.PipelineMetrics
}

// NewIngestStage creates the ingestion step reading dir/pattern
func NewIngestStage(logger *slog.Logger, parser *dataprocessing.Parser, dir, pattern string, metrics *infrastructure.PipelineMetrics) *IngestStage {
	return &IngestStage{
		BaseStage: NewBaseStage(StageIDIngest, StageNameIngest),
		logger:    stageLogger(logger, StageIDIngest),
		discovery: files.NewDiscovery(dir),
		validator: validation.NewFileValidator(logger),
		parser:    parser,
		dir:       dir,
		pattern:   pattern,
		metrics:   metrics,
	}
}

// Execute reads every input file in name order
func (s *IngestStage) Execute(ctx context.Context, state *OperationState) error {
	found, err := s.discovery.FindFilesByPattern(s.dir, s.pattern)
	if err != nil {
		return errors.NewStorageError("failed to list input files", err).WithContext("directory", s.dir)
	}
	if len(found) == 0 {
		return errors.NewEmptyDatasetError("discovery").WithContext("directory", s.dir)
	}
	for _, f := range found {
		if err := s.validator.ValidateCSVFile(f.Path); err != nil {
			return err
		}
	}
	state.InputFiles = files.Paths(found)

	s.logger.InfoContext(ctx, "Discovered input files",
		slog.Int("files", len(found)),
		slog.Int64("bytes", files.TotalSize(found)))

	raw, report, err := s.parser.Ingest(ctx, state.InputFiles)
	if err != nil {
		return err
	}
	state.Raw = raw
	state.Ingest = report

	addCount(ctx, s.metrics, func(m *infrastructure.PipelineMetrics) metric.Int64Counter { return m.RecordsIngested }, report.Records)
	addCount(ctx, s.metrics, func(m *infrastructure.PipelineMetrics) metric.Int64Counter { return m.RecordsFiltered }, report.Filtered)

	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("files", report.Files)
		st.SetMetadata("records", report.Records)
		st.SetMetadata("filtered", report.Filtered)
	}
	return nil
}

// ClassifyStage maps raw column names to canonical names and detects the variant
type ClassifyStage struct {
	BaseStage
	classifier *dataprocessing.Classifier
	metrics    *infrastructure.PipelineMetrics
}

// NewClassifyStage creates the classification step
func NewClassifyStage(logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *ClassifyStage {
	return &ClassifyStage{
		BaseStage:  NewBaseStage(StageIDClassify, StageNameClassify),
		classifier: dataprocessing.NewClassifier(stageLogger(logger, StageIDClassify)),
		metrics:    metrics,
	}
}

// Execute classifies the ingested columns and renames the table
func (s *ClassifyStage) Execute(ctx context.Context, state *OperationState) error {
	if err := requireArtifact(state.Raw != nil, s.ID(), "raw table"); err != nil {
		return err
	}
	cls := s.classifier.Classify(ctx, state.Raw.Columns)
	state.Classification = cls
	state.Classified = cls.Apply(state.Raw)

	addCount(ctx, s.metrics, func(m *infrastructure.PipelineMetrics) metric.Int64Counter { return m.AmbiguousColumns }, len(cls.Ambiguities))
	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"schema.variant": cls.Variant.String(),
		"schema.renames": len(cls.Renames),
	})

	if st := state.GetStage(s.ID()); st != nil {
		st.SetMetadata("variant", cls.Variant.String())
	}
	return nil
}

// ReshapeStage turns classified rows into canonical per-scan records
type ReshapeStage struct {
	BaseStage
	reshaper *dataprocessing.Reshaper
	metrics  *infrastructure.PipelineMetrics
}

// NewReshapeStage creates the reshaping step
func NewReshapeStage(logger *slog.Logger, cfg dataprocessing.ReshaperConfig, metrics *infrastructure.PipelineMetrics) *ReshapeStage {
	return &ReshapeStage{
		BaseStage: NewBaseStage(StageIDReshape, StageNameReshape),
		reshaper:  dataprocessing.NewReshaper(stageLogger(logger, StageIDReshape), cfg),
		metrics:   metrics,
	}
}

// Execute reshapes the classified table
func (s *ReshapeStage) Execute(ctx context.Context, state *OperationState) error {
	if err := requireArtifact(state.Classified != nil, s.ID(), "classified table"); err != nil {
		return err
	}
	data, err := s.reshaper.Reshape(ctx, state.Classified, state.Classification)
	if err != nil {
		return err
	}
	state.Reshaped = data

	addCount(ctx, s.metrics, func(m *infrastructure.PipelineMetrics) metric.Int64Counter { return m.RecordsUnclassified }, data.Report.Unclassified)
	addCount(ctx, s.metrics, func(m *infrastructure.PipelineMetrics) metric.Int64Counter { return m.LabelsSkipped }, data.Report.LabelsSkipped)
	return nil
}

// AggregateStage averages scans per plant and day
type AggregateStage struct {
	BaseStage
	aggregator *dataprocessing.Aggregator
	metrics    *infrastructure.PipelineMetrics
}

// NewAggregateStage creates the aggregation step
func NewAggregateStage(logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *AggregateStage {
	return &AggregateStage{
		BaseStage:  NewBaseStage(StageIDAggregate, StageNameAggregate),
		aggregator: dataprocessing.NewAggregator(stageLogger(logger, StageIDAggregate)),
		metrics:    metrics,
	}
}

// Execute aggregates the reshaped records
func (s *AggregateStage) Execute(ctx context.Context, state *OperationState) error {
	if err := requireArtifact(state.Reshaped != nil, s.ID(), "reshaped records"); err != nil {
		return err
	}
	agg, report, err := s.aggregator.Aggregate(ctx, state.Reshaped)
	if err != nil {
		return err
	}
	state.Aggregated = agg
	state.Join = report

	for family, n := range report.Dropped {
		addCount(ctx, s.metrics, func(m *infrastructure.PipelineMetrics) metric.Int64Counter { return m.JoinDropped }, n,
			attribute.String("family", string(family)))
	}
	return nil
}

// StatisticsStage computes the population statistics
type StatisticsStage struct {
	BaseStage
	summarizer *dataprocessing.Summarizer
}

// NewStatisticsStage creates the statistics step
func NewStatisticsStage(logger *slog.Logger) *StatisticsStage {
	return &StatisticsStage{
		BaseStage:  NewBaseStage(StageIDStatistics, StageNameStatistics),
		summarizer: dataprocessing.NewSummarizer(stageLogger(logger, StageIDStatistics)),
	}
}

// Execute summarises the aggregated table
func (s *StatisticsStage) Execute(ctx context.Context, state *OperationState) error {
	if err := requireArtifact(state.Aggregated != nil, s.ID(), "aggregated table"); err != nil {
		return err
	}
	state.Statistics = s.summarizer.Summarize(ctx, state.Aggregated)
	return nil
}

// PivotStage builds the per-sensor summary views selected for the dataset
type PivotStage struct {
	BaseStage
	builder    *dataprocessing.PivotBuilder
	includeSEM bool
}

// NewPivotStage creates the pivot step
func NewPivotStage(logger *slog.Logger, includeSEM bool) *PivotStage {
	return &PivotStage{
		BaseStage:  NewBaseStage(StageIDPivot, StageNamePivot),
		builder:    dataprocessing.NewPivotBuilder(stageLogger(logger, StageIDPivot)),
		includeSEM: includeSEM,
	}
}

// Execute selects the sheet plan and builds every pivot
func (s *PivotStage) Execute(ctx context.Context, state *OperationState) error {
	if err := requireArtifact(state.Statistics != nil && state.Reshaped != nil, s.ID(), "statistics table"); err != nil {
		return err
	}
	plan := dataprocessing.SheetPlan(dataprocessing.VisFields(state.Statistics.Fields))
	specs := dataprocessing.SelectSheets(plan, dataprocessing.PlanOptions{
		Variant:    state.Reshaped.Variant,
		IRObserved: state.Reshaped.IRObserved,
		IncludeSEM: s.includeSEM,
	})
	state.Pivots = s.builder.Build(ctx, state.Statistics, specs)
	return nil
}

// ExportStage renders every table and hands the sheets to the report sink
type ExportStage struct {
	BaseStage
	logger  *slog.Logger
	sink    ReportSink
	tables  TableExporter
	dir     string
	clock   func() time.Time
	metrics *infrastructure.PipelineMetrics
}

// NewExportStage creates the export step. tables may be nil; clock defaults to time.Now.
func NewExportStage(logger *slog.Logger, sink ReportSink, tables TableExporter, dir string, clock func() time.Time, metrics *infrastructure.PipelineMetrics) *ExportStage {
	if clock == nil {
		clock = time.Now
	}
	return &ExportStage{
		BaseStage: NewBaseStage(StageIDExport, StageNameExport),
		logger:    stageLogger(logger, StageIDExport),
		sink:      sink,
		tables:    tables,
		dir:       dir,
		clock:     clock,
		metrics:   metrics,
	}
}

// Execute writes Raw Data, Statistics, then the pivots in plan order
func (s *ExportStage) Execute(ctx context.Context, state *OperationState) error {
	if err := requireArtifact(state.Aggregated != nil && state.Statistics != nil, s.ID(), "report tables"); err != nil {
		return err
	}

	rawSheet := dataprocessing.RenderRawData(state.Aggregated)
	statsSheet := dataprocessing.RenderStatistics(state.Statistics)
	sheets := []domain.SheetData{rawSheet, statsSheet}
	for _, p := range state.Pivots {
		sheets = append(sheets, dataprocessing.RenderPivot(p))
	}

	for _, sheet := range sheets {
		if err := s.sink.AddSheet(ctx, sheet); err != nil {
			return err
		}
	}

	if s.tables != nil {
		written, err := s.tables.ExportTables(ctx, rawSheet, statsSheet)
		state.CSVFiles = written
		if err != nil {
			s.removeCSV(ctx, state)
			return err
		}
	}

	path, err := s.sink.Save(ctx, s.dir, s.clock())
	if err != nil {
		s.removeCSV(ctx, state)
		return err
	}
	state.OutputPath = path

	addCount(ctx, s.metrics, func(m *infrastructure.PipelineMetrics) metric.Int64Counter { return m.SheetsWritten }, len(sheets))
	s.logger.InfoContext(ctx, "Report exported",
		slog.String("path", path),
		slog.Int("sheets", len(sheets)),
		slog.Int("csv_files", len(state.CSVFiles)))
	return nil
}

// removeCSV deletes CSV files of a run whose workbook was never saved
func (s *ExportStage) removeCSV(ctx context.Context, state *OperationState) {
	for _, path := range state.CSVFiles {
		if !config.FileExists(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.logger.WarnContext(ctx, "Failed to remove partial CSV export",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	state.CSVFiles = nil
}

// PipelineConfig wires the report steps
type PipelineConfig struct {
	Paths   *config.Paths
	Report  config.ReportConfig
	Sink    ReportSink
	Tables  TableExporter
	Clock   func() time.Time
	Metrics *infrastructure.PipelineMetrics
}

// NewReportStages returns ingest, classify, reshape, aggregate, statistics, pivot
// and export steps in execution order
func NewReportStages(logger *slog.Logger, cfg PipelineConfig) []Step {
	var delimiter rune
	if r := []rune(cfg.Report.Delimiter); len(r) > 0 {
		delimiter = r[0]
	}
	parser := dataprocessing.NewParser(stageLogger(logger, StageIDIngest), dataprocessing.ParserConfig{
		Delimiter: delimiter,
		Workers:   cfg.Report.Workers,
	})

	return []Step{
		NewIngestStage(logger, parser, cfg.Paths.RawDir, config.InputFilePattern, cfg.Metrics),
		NewClassifyStage(logger, cfg.Metrics),
		NewReshapeStage(logger, dataprocessing.ReshaperConfig{LabelPolicy: cfg.Report.LabelPolicy}, cfg.Metrics),
		NewAggregateStage(logger, cfg.Metrics),
		NewStatisticsStage(logger),
		NewPivotStage(logger, cfg.Report.IncludeSEM),
		NewExportStage(logger, cfg.Sink, cfg.Tables, cfg.Paths.ProcessedDir, cfg.Clock, cfg.Metrics),
	}
}
