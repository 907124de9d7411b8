package operations

import (
	"context"
	"time"

	"phenocli/pkg/contracts/domain"
)

// operation Step identifiers
const (
	StageIDIngest     = "ingest"
	StageIDClassify   = "classify"
	StageIDReshape    = "reshape"
	StageIDAggregate  = "aggregate"
	StageIDStatistics = "statistics"
	StageIDPivot      = "pivot"
	StageIDExport     = "export"
)

// operation Step names
const (
	StageNameIngest     = "Data Ingestion"
	StageNameClassify   = "Column Classification"
	StageNameReshape    = "Row Reshaping"
	StageNameAggregate  = "Plant Aggregation"
	StageNameStatistics = "Population Statistics"
	StageNamePivot      = "Pivot Construction"
	StageNameExport     = "Report Export"
)

// ReportSink receives rendered sheets in workbook order and persists them
type ReportSink interface {
	AddSheet(ctx context.Context, sheet domain.SheetData) error
	Save(ctx context.Context, dir string, now time.Time) (string, error)
}

// TableExporter writes the raw data and statistics sheets as standalone files
type TableExporter interface {
	ExportTables(ctx context.Context, rawData, statistics domain.SheetData) ([]string, error)
}
