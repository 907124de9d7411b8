package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"phenocli/pkg/contracts/domain"
)

// PivotBuilder builds wide report views from the combined statistics table
type PivotBuilder struct {
	logger *slog.Logger
}

// NewPivotBuilder creates a pivot builder
func NewPivotBuilder(logger *slog.Logger) *PivotBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PivotBuilder{logger: logger}
}

// statisticsIndex gives constant-time access to statistics rows by key
type statisticsIndex map[domain.StatisticsKey]domain.StatisticsRecord

func indexStatistics(stats *domain.StatisticsTable) statisticsIndex {
	idx := make(statisticsIndex, len(stats.Records))
	for _, r := range stats.Records {
		if _, ok := idx[r.Key]; !ok {
			idx[r.Key] = r
		}
	}
	return idx
}

func (idx statisticsIndex) cell(tag, date, statistic, field string) (domain.Cell, bool) {
	r, ok := idx[domain.StatisticsKey{ExperimentTag: tag, Date: date, Statistic: statistic}]
	if !ok {
		return domain.Cell{}, false
	}
	v, ok := r.Values[field]
	if !ok {
		return domain.Cell{}, true
	}
	return domain.NumberCell(v), true
}

// Build renders every spec in order
func (b *PivotBuilder) Build(ctx context.Context, stats *domain.StatisticsTable, specs []SheetSpec) []domain.PivotTable {
	idx := indexStatistics(stats)
	dates := stats.Dates()
	tags := stats.ExperimentTags()

	tables := make([]domain.PivotTable, 0, len(specs))
	for _, spec := range specs {
		var t domain.PivotTable
		switch spec.Shape {
		case domain.PivotVisual:
			t = visualPivot(idx, dates, tags, spec)
		default:
			t = familyPivot(idx, dates, tags, spec)
		}
		tables = append(tables, t)
		b.logger.DebugContext(ctx, "built pivot",
			slog.String("sheet", spec.Sheet),
			slog.String("shape", string(spec.Shape)),
			slog.Int("rows", len(t.Rows)),
			slog.Int("columns", len(t.Columns)))
	}
	return tables
}

// VisualPivot indexes rows by (field, date) with one column per experiment tag.
// A row exists for every date at which any tag has the statistic; rows are
// sorted by field name then date.
func (b *PivotBuilder) VisualPivot(stats *domain.StatisticsTable, spec SheetSpec) domain.PivotTable {
	return visualPivot(indexStatistics(stats), stats.Dates(), stats.ExperimentTags(), spec)
}

// FamilyPivot indexes rows by date with one column per (experiment tag, field),
// tag-major. Missing statistics render blank.
func (b *PivotBuilder) FamilyPivot(stats *domain.StatisticsTable, spec SheetSpec) domain.PivotTable {
	return familyPivot(indexStatistics(stats), stats.Dates(), stats.ExperimentTags(), spec)
}

func visualPivot(idx statisticsIndex, dates, tags []string, spec SheetSpec) domain.PivotTable {
	t := domain.PivotTable{Sheet: spec.Sheet, Shape: domain.PivotVisual, Statistic: spec.Statistic}
	for _, tag := range tags {
		t.Columns = append(t.Columns, domain.PivotColumn{ExperimentTag: tag})
	}

	fields := append([]string(nil), spec.Fields...)
	sort.Strings(fields)
	seen := make(map[string]bool)
	for _, field := range fields {
		if seen[field] {
			continue
		}
		seen[field] = true
		for _, date := range dates {
			row := domain.PivotRow{Stat: field, Date: date, Cells: make([]domain.Cell, len(tags))}
			present := false
			for i, tag := range tags {
				c, ok := idx.cell(tag, date, spec.Statistic, field)
				if ok {
					present = true
					row.Cells[i] = c
				}
			}
			if present {
				t.Rows = append(t.Rows, row)
			}
		}
	}
	return t
}

func familyPivot(idx statisticsIndex, dates, tags []string, spec SheetSpec) domain.PivotTable {
	t := domain.PivotTable{Sheet: spec.Sheet, Shape: domain.PivotFamily, Statistic: spec.Statistic}
	for _, tag := range tags {
		for _, field := range spec.Fields {
			t.Columns = append(t.Columns, domain.PivotColumn{ExperimentTag: tag, Field: field})
		}
	}
	for _, date := range dates {
		row := domain.PivotRow{Date: date, Cells: make([]domain.Cell, len(t.Columns))}
		for i, col := range t.Columns {
			c, _ := idx.cell(col.ExperimentTag, date, spec.Statistic, col.Field)
			row.Cells[i] = c
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
