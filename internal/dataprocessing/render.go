package dataprocessing

import (
	"phenocli/pkg/contracts/domain"
)

// Header labels of the rendered sheets
const (
	HeaderExperiment = ColumnExperimentTag
	HeaderRow        = "Row"
	HeaderPlant      = "Plant"
	HeaderPlantID    = "Plant ID"
	HeaderDate       = ColumnDate
	HeaderStatistic  = "Statistic"
	HeaderStat       = "Stat"
	HeaderExp        = "exp"
	HeaderMetric     = "metric"
)

func valueCell(values map[string]float64, field string) domain.SheetValue {
	v, ok := values[field]
	if !ok {
		return domain.SheetValue{}
	}
	return domain.NumberValue(domain.NumberCell(v))
}

// RenderRawData lays out the aggregated table with its key columns first
func RenderRawData(agg *domain.AggregatedTable) domain.SheetData {
	header := []string{HeaderExperiment, HeaderRow, HeaderPlant, HeaderPlantID, HeaderDate}
	header = append(header, agg.Fields...)

	sheet := domain.SheetData{
		Name:       SheetRawData,
		HeaderRows: [][]string{header},
		Rows:       make([][]domain.SheetValue, 0, len(agg.Records)),
	}
	for _, r := range agg.Records {
		row := []domain.SheetValue{
			domain.TextValue(r.Key.ExperimentTag),
			domain.TextValue(r.Key.Row),
			domain.TextValue(r.Key.Plant),
			domain.TextValue(r.Key.PlantID),
			domain.TextValue(r.Key.Date),
		}
		for _, f := range agg.Fields {
			row = append(row, valueCell(r.Values, f))
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// RenderStatistics lays out the combined statistics indexed by (experiment, date,
// statistic), with a separator after each population.
func RenderStatistics(stats *domain.StatisticsTable) domain.SheetData {
	header := []string{HeaderExperiment, HeaderDate, HeaderStatistic}
	header = append(header, stats.Fields...)

	sheet := domain.SheetData{
		Name:         SheetStatistics,
		HeaderRows:   [][]string{header},
		Rows:         make([][]domain.SheetValue, 0, len(stats.Records)),
		IndexColumns: 3,
		GroupSize:    len(stats.Statistics),
	}
	for _, r := range stats.Records {
		row := []domain.SheetValue{
			domain.TextValue(r.Key.ExperimentTag),
			domain.TextValue(r.Key.Date),
			domain.TextValue(r.Key.Statistic),
		}
		for _, f := range stats.Fields {
			row = append(row, valueCell(r.Values, f))
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// RenderPivot lays out a pivot table. Visual pivots have one header row; family
// pivots carry the experiment and metric on two header rows.
func RenderPivot(p domain.PivotTable) domain.SheetData {
	sheet := domain.SheetData{Name: p.Sheet, Rows: make([][]domain.SheetValue, 0, len(p.Rows))}

	switch p.Shape {
	case domain.PivotVisual:
		header := []string{HeaderStat, HeaderDate}
		for _, c := range p.Columns {
			header = append(header, c.ExperimentTag)
		}
		sheet.HeaderRows = [][]string{header}
		sheet.IndexColumns = 2
	default:
		exp := []string{HeaderExp}
		metric := []string{HeaderMetric}
		for _, c := range p.Columns {
			exp = append(exp, c.ExperimentTag)
			metric = append(metric, c.Field)
		}
		sheet.HeaderRows = [][]string{exp, metric}
		sheet.IndexColumns = 1
	}

	for _, r := range p.Rows {
		var row []domain.SheetValue
		if p.Shape == domain.PivotVisual {
			row = append(row, domain.TextValue(r.Stat))
		}
		row = append(row, domain.TextValue(r.Date))
		for _, c := range r.Cells {
			row = append(row, domain.NumberValue(c))
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}
