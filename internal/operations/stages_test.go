package operations

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"phenocli/internal/config"
	"phenocli/internal/dataprocessing"
	"phenocli/internal/errors"
	"phenocli/internal/exporter"
	"phenocli/internal/infrastructure"
	"phenocli/internal/shared/testutil"
	"phenocli/pkg/contracts/domain"
)

var reportTime = time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)

type pipelineRun struct {
	state     *OperationState
	err       error
	paths     *config.Paths
	providers *infrastructure.OTelProviders
}

func runPipeline(t *testing.T, base string, report config.ReportConfig) pipelineRun {
	t.Helper()

	paths, err := config.NewPaths(base)
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	providers, err := infrastructure.InitializeOTel(nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { providers.Shutdown(context.Background()) })

	wb, err := exporter.NewWorkbook(nil)
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close() })

	cfg := PipelineConfig{
		Paths:   paths,
		Report:  report,
		Sink:    wb,
		Clock:   func() time.Time { return reportTime },
		Metrics: providers.Metrics,
	}
	if report.ExportCSV {
		cfg.Tables = exporter.NewCSVWriter(nil, paths.ProcessedDir)
	}

	m := NewManager(nil, providers.Metrics)
	for _, step := range NewReportStages(nil, cfg) {
		require.NoError(t, m.RegisterStep(step))
	}

	state := NewOperationState("test-run")
	err = m.Execute(context.Background(), state)
	return pipelineRun{state: state, err: err, paths: paths, providers: providers}
}

func defaultReport() config.ReportConfig {
	return config.Default().Report
}

func nirScan(tag, label, low, med, high string) testutil.Scan {
	return testutil.FamilyScan(tag, label, "2024-03-09 11:00:00", "nir_top", map[string]string{
		"NIR water low": low, "NIR water med": med, "NIR water high": high,
	})
}

// writeStandardDataset writes two experiments across two files. E1_A03 is an
// empty well and must vanish.
func writeStandardDataset(t *testing.T, rawDir string) {
	t.Helper()
	e1Vis := testutil.VisScan("E1", "A01", "2024-03-09 10:00:00", "10")
	e1Vis["Green px"] = "4"
	testutil.WriteSensorCSV(t, rawDir, "batch_a.csv", testutil.StandardHeader, []testutil.Scan{
		e1Vis,
		testutil.VisScan("E1", "A02", "2024-03-09 10:02:00", "20"),
		testutil.VisScan("E1", "A03", "2024-03-09 10:04:00", "0"),
		nirScan("E1", "A01", "2", "6", "1"),
		nirScan("E1", "A02", "4", "8", "3"),
		testutil.FamilyScan("E1", "A01", "2024-03-09 12:00:00", "flu_top", map[string]string{"Fluo signal low": "9"}),
	})
	testutil.WriteSensorCSV(t, rawDir, "batch_b.csv", testutil.StandardHeader, []testutil.Scan{
		testutil.VisScan("E2", "A01", "2024-03-09 10:00:00", "30"),
		testutil.VisScan("E2", "A02", "2024-03-09 10:02:00", "50"),
	})
}

func TestReportPipeline_StandardDataset(t *testing.T) {
	base := t.TempDir()
	writeStandardDataset(t, filepath.Join(base, config.RawDataDirName))

	run := runPipeline(t, base, defaultReport())
	require.NoError(t, run.err)

	state := run.state
	assert.Equal(t, filepath.Join(run.paths.ProcessedDir, "output_20240310083000.xlsx"), state.OutputPath)
	assert.Len(t, state.InputFiles, 2)
	assert.Equal(t, 8, state.Ingest.Records)
	assert.Equal(t, 1, state.Ingest.Filtered)
	assert.Equal(t, domain.StandardVisVariant, state.Classification.Variant)

	for _, step := range []string{StageIDIngest, StageIDClassify, StageIDReshape, StageIDAggregate, StageIDStatistics, StageIDPivot, StageIDExport} {
		assert.Equal(t, StepStatusCompleted, state.GetStage(step).GetStatus(), step)
	}

	f, err := excelize.OpenFile(state.OutputPath)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		"Raw Data", "Statistics",
		"VIS (mean)", "VIS (sem)",
		"VIS (color - mean)", "VIS (color - sem)",
		"NIR (mean)", "NIR (sem)",
		"FLU (mean)", "FLU (sem)",
	}, f.GetSheetList())

	raw, err := f.GetRows("Raw Data")
	require.NoError(t, err)
	require.Len(t, raw, 5, "header plus four plants; the empty well is gone")
	for _, row := range raw[1:] {
		assert.NotEqual(t, "E1_A03", row[3])
	}
	assert.Equal(t, []string{"E1", "A", "1", "E1_A01", "2024-03-09"}, raw[1][:5])

	vis, err := f.GetRows("VIS (mean)")
	require.NoError(t, err)
	assert.Equal(t, []string{"Stat", "date", "E1", "E2"}, vis[0])
	assert.Equal(t, []string{"Area", "2024-03-09", "15", "40"}, vis[1])

	nir, err := f.GetRows("NIR (mean)")
	require.NoError(t, err)
	require.Len(t, nir, 3)
	assert.Equal(t, []string{"exp", "E1", "E1", "E1", "E2", "E2", "E2"}, nir[0])
	assert.Equal(t, []string{"metric", "NIR Low", "NIR Med", "NIR High", "NIR Low", "NIR Med", "NIR High"}, nir[1])
	assert.Equal(t, []string{"2024-03-09", "3", "7", "2"}, nir[2], "E2 has no NIR scans")

	stats, err := f.GetRows("Statistics")
	require.NoError(t, err)
	assert.Len(t, stats, 1+2*9)

	require.NoError(t, run.providers.WriteMetricsTextfile(filepath.Join(base, "metrics.prom")))
	metrics, err := os.ReadFile(filepath.Join(base, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "pheno_records_ingested_total 8")
	assert.Contains(t, string(metrics), "pheno_records_filtered_total 1")
	assert.Contains(t, string(metrics), "pheno_sheets_written_total 10")
	assert.Contains(t, string(metrics), "pheno_step_duration_seconds")
}

func TestReportPipeline_SingleScanRoundTrip(t *testing.T) {
	base := t.TempDir()
	testutil.WriteSensorCSV(t, filepath.Join(base, config.RawDataDirName), "one.csv", testutil.StandardHeader, []testutil.Scan{
		testutil.VisScan("E1", "B02", "2024-03-09 10:00:00", "12.5"),
	})

	report := defaultReport()
	report.ExportCSV = true
	run := runPipeline(t, base, report)
	require.NoError(t, run.err)

	rec := run.state.Aggregated.Records[0]
	assert.Equal(t, domain.AggregationKey{ExperimentTag: "E1", Row: "B", Plant: "2", PlantID: "E1_B02", Date: "2024-03-09"}, rec.Key)
	assert.Equal(t, map[string]float64{"Area": 12.5, "Convex Hull Area": 12.5, "Caliper Length": 10, "Compactness": 0.5}, rec.Values)

	mean, ok := run.state.Statistics.Lookup(domain.StatisticsKey{ExperimentTag: "E1", Date: "2024-03-09", Statistic: domain.StatMean})
	require.True(t, ok)
	assert.Equal(t, 12.5, mean.Values["Area"])
	std, ok := run.state.Statistics.Lookup(domain.StatisticsKey{ExperimentTag: "E1", Date: "2024-03-09", Statistic: domain.StatStd})
	require.True(t, ok)
	assert.Empty(t, std.Values)

	assert.Equal(t, []string{
		filepath.Join(run.paths.ProcessedDir, config.RawDataCSVName),
		filepath.Join(run.paths.ProcessedDir, config.StatisticsCSVName),
	}, run.state.CSVFiles)
	for _, p := range run.state.CSVFiles {
		assert.FileExists(t, p)
	}
}

func TestReportPipeline_ColorClassDataset(t *testing.T) {
	base := t.TempDir()
	cc := func(writer, c1 string) testutil.Scan {
		return testutil.FamilyScan("E1", "A01", "2024-03-09 10:00:00", writer, map[string]string{"ColorClass_01": c1})
	}
	vis := testutil.VisScan("E1", "A01", "2024-03-09 10:00:00", "10")
	vis["ColorClass_01"] = "99"
	testutil.WriteSensorCSV(t, filepath.Join(base, config.RawDataDirName), "cc.csv", testutil.ColorClassHeader, []testutil.Scan{
		vis, cc("nir_top", "4"), cc("flu_top", "6"),
	})

	report := defaultReport()
	report.IncludeSEM = false
	run := runPipeline(t, base, report)
	require.NoError(t, run.err)

	assert.Equal(t, domain.ColorClassVariant, run.state.Classification.Variant)

	f, err := excelize.OpenFile(run.state.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Raw Data", "Statistics", "VIS (mean)", "NIR (mean)", "FLU (mean)"}, f.GetSheetList())

	nir, err := f.GetRows("NIR (mean)")
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "NIR Color Class 1", "NIR Color Class 2", "NIR Color Class 3"}, nir[1])
	assert.Equal(t, []string{"2024-03-09", "4"}, nir[2])

	flu, err := f.GetRows("FLU (mean)")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-09", "6"}, flu[2], "FLU color classes come from FLU scans only")
}

func TestReportPipeline_Failures(t *testing.T) {
	t.Run("malformed label aborts and writes nothing", func(t *testing.T) {
		base := t.TempDir()
		testutil.WriteSensorCSV(t, filepath.Join(base, config.RawDataDirName), "bad.csv", testutil.StandardHeader, []testutil.Scan{
			testutil.VisScan("E1", "A001", "2024-03-09 10:00:00", "5"),
		})

		run := runPipeline(t, base, defaultReport())
		require.Error(t, run.err)
		assert.True(t, errors.IsType(run.err, errors.ErrTypeDataIntegrity))
		assert.Equal(t, StepStatusFailed, run.state.GetStage(StageIDReshape).GetStatus())
		assert.Equal(t, StepStatusSkipped, run.state.GetStage(StageIDExport).GetStatus())

		entries, err := os.ReadDir(run.paths.ProcessedDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("skip policy drops the label", func(t *testing.T) {
		base := t.TempDir()
		testutil.WriteSensorCSV(t, filepath.Join(base, config.RawDataDirName), "mixed.csv", testutil.StandardHeader, []testutil.Scan{
			testutil.VisScan("E1", "A001", "2024-03-09 10:00:00", "5"),
			testutil.VisScan("E1", "A01", "2024-03-09 10:00:00", "7"),
		})

		report := defaultReport()
		report.LabelPolicy = config.LabelPolicySkip
		run := runPipeline(t, base, report)
		require.NoError(t, run.err)
		assert.Equal(t, 1, run.state.Reshaped.Report.LabelsSkipped)
		assert.Len(t, run.state.Aggregated.Records, 1)
	})

	t.Run("no input files", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(base, config.RawDataDirName), 0755))

		run := runPipeline(t, base, defaultReport())
		assert.True(t, errors.IsType(run.err, errors.ErrTypeEmptyDataset))
		assert.Equal(t, StepStatusFailed, run.state.GetStage(StageIDIngest).GetStatus())
	})

	t.Run("only empty wells", func(t *testing.T) {
		base := t.TempDir()
		testutil.WriteSensorCSV(t, filepath.Join(base, config.RawDataDirName), "zero.csv", testutil.StandardHeader, []testutil.Scan{
			testutil.VisScan("E1", "A01", "2024-03-09 10:00:00", "0"),
		})

		run := runPipeline(t, base, defaultReport())
		assert.True(t, errors.IsType(run.err, errors.ErrTypeEmptyDataset))
	})
}

// failingSink accepts sheets but cannot save
type failingSink struct {
	sheets int
}

func (s *failingSink) AddSheet(context.Context, domain.SheetData) error {
	s.sheets++
	return nil
}

func (s *failingSink) Save(context.Context, string, time.Time) (string, error) {
	return "", errors.NewStorageError("disk full", nil)
}

func TestExportStage_RemovesCSVWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	sink := &failingSink{}
	stage := NewExportStage(nil, sink, exporter.NewCSVWriter(nil, dir), dir, nil, nil)

	state := NewOperationState("export")
	state.Aggregated = &domain.AggregatedTable{Fields: []string{"Area"}}
	state.Statistics = &domain.StatisticsTable{Fields: []string{"Area"}}

	err := stage.Execute(context.Background(), state)
	assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
	assert.Equal(t, 2, sink.sheets)
	assert.Empty(t, state.CSVFiles)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStages_MissingArtifacts(t *testing.T) {
	steps := []Step{
		NewClassifyStage(nil, nil),
		NewReshapeStage(nil, dataprocessing.ReshaperConfig{}, nil),
		NewAggregateStage(nil, nil),
		NewStatisticsStage(nil),
		NewPivotStage(nil, true),
	}
	for _, step := range steps {
		t.Run(step.ID(), func(t *testing.T) {
			err := step.Execute(context.Background(), NewOperationState("empty"))
			assert.Equal(t, ErrorTypeFatal, GetErrorType(err))
		})
	}
}

func TestIngestStage_ValidatesInputFiles(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		extra   string
		wantErr errors.ErrorType
	}{
		{name: "csv only", pattern: config.InputFilePattern, extra: "notes.txt"},
		{name: "non csv match", pattern: "*", extra: "notes.txt", wantErr: errors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteSensorCSV(t, dir, "scans.csv", testutil.StandardHeader, []testutil.Scan{
				testutil.VisScan("E1", "A01", "2024-03-09 10:00:00", "5"),
			})
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.extra), []byte("not a scan"), 0644))

			logger, handler := testutil.NewTestLogger(t)
			stage := NewIngestStage(logger, dataprocessing.NewParser(nil, dataprocessing.ParserConfig{}), dir, tt.pattern, nil)
			state := NewOperationState("ingest")
			err := stage.Execute(context.Background(), state)

			if tt.wantErr != "" {
				assert.True(t, errors.IsType(err, tt.wantErr))
				assert.Nil(t, state.Raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{filepath.Join(dir, "scans.csv")}, state.InputFiles)
			testutil.AssertLogAttr(t, handler, "component", "operations")
			testutil.AssertLogAttr(t, handler, "Step", StageIDIngest)
		})
	}
}
