package domain

import (
	"fmt"
	"sort"
	"strings"
)

// SensorFamily identifies the imaging sensor that produced a scan
type SensorFamily string

const (
	FamilyUnclassified SensorFamily = ""
	FamilyVIS          SensorFamily = "VIS"
	FamilyNIR          SensorFamily = "NIR"
	FamilyFLU          SensorFamily = "FLU"
	FamilyIR           SensorFamily = "IR"
)

// Families lists the supported sensor families in report order
var Families = []SensorFamily{FamilyVIS, FamilyNIR, FamilyFLU, FamilyIR}

// SchemaVariant is the dataset-wide column naming convention. It is computed once
// from the full set of input columns and never varies within a dataset.
type SchemaVariant int

const (
	StandardVisVariant SchemaVariant = iota
	AlternativeVisVariant
	ColorClassVariant
)

// String implements fmt.Stringer
func (v SchemaVariant) String() string {
	switch v {
	case StandardVisVariant:
		return "standard_vis"
	case AlternativeVisVariant:
		return "alternative_vis"
	case ColorClassVariant:
		return "color_class"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// RawTable is the concatenation of every ingested file, one row per sensor scan.
// Cells are kept as text until classification decides what each column means.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of name in the table header, or -1
func (t *RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the header contains name
func (t *RawTable) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Value returns the cell of row for column name, or "" when the column is absent
func (t *RawTable) Value(row []string, name string) string {
	idx := t.ColumnIndex(name)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// CanonicalRecord is one classified and reshaped scan
type CanonicalRecord struct {
	Date          string
	Timestamp     string
	ExperimentTag string
	Label         string
	Row           string
	Plant         string
	PlantID       string
	Family        SensorFamily
	Values        map[string]float64
}

// Value returns the numeric field and whether it is present
func (r CanonicalRecord) Value(field string) (float64, bool) {
	v, ok := r.Values[field]
	return v, ok
}

// AggregationKey identifies one plant on one day
type AggregationKey struct {
	ExperimentTag string
	Row           string
	Plant         string
	PlantID       string
	Date          string
}

// Less orders keys by tag, row, plant, plant id, then date
func (k AggregationKey) Less(o AggregationKey) bool {
	if k.ExperimentTag != o.ExperimentTag {
		return k.ExperimentTag < o.ExperimentTag
	}
	if k.Row != o.Row {
		return k.Row < o.Row
	}
	if k.Plant != o.Plant {
		return k.Plant < o.Plant
	}
	if k.PlantID != o.PlantID {
		return k.PlantID < o.PlantID
	}
	return k.Date < o.Date
}

// AggregatedRecord holds the averaged measurements of one plant on one day
type AggregatedRecord struct {
	Key    AggregationKey
	Values map[string]float64
}

// AggregatedTable is the "Raw Data" output
type AggregatedTable struct {
	Fields  []string
	Records []AggregatedRecord
}

// Statistic names produced by the descriptive summary and the SEM pass
const (
	StatCount  = "count"
	StatMean   = "mean"
	StatStd    = "std"
	StatMin    = "min"
	StatQ1     = "25%"
	StatMedian = "50%"
	StatQ3     = "75%"
	StatMax    = "max"
	StatSEM    = "sem"
)

// DescriptiveStatistics lists the summary statistics in computation order
var DescriptiveStatistics = []string{StatCount, StatMean, StatStd, StatMin, StatQ1, StatMedian, StatQ3, StatMax}

// StatisticsKey identifies one row of the combined statistics table
type StatisticsKey struct {
	ExperimentTag string
	Date          string
	Statistic     string
}

// StatisticsRecord holds one statistic of every field for an experiment on a date
type StatisticsRecord struct {
	Key    StatisticsKey
	Values map[string]float64
}

// StatisticsTable is the combined descriptive and SEM table, one row per key
type StatisticsTable struct {
	Fields     []string
	Records    []StatisticsRecord
	Statistics []string
}

// Lookup returns the record for key, if any
func (t *StatisticsTable) Lookup(key StatisticsKey) (StatisticsRecord, bool) {
	for _, r := range t.Records {
		if r.Key == key {
			return r, true
		}
	}
	return StatisticsRecord{}, false
}

// Dates returns the distinct dates in ascending order
func (t *StatisticsTable) Dates() []string {
	seen := make(map[string]bool)
	var dates []string
	for _, r := range t.Records {
		if !seen[r.Key.Date] {
			seen[r.Key.Date] = true
			dates = append(dates, r.Key.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

// ExperimentTags returns the distinct tags sorted case-insensitively
func (t *StatisticsTable) ExperimentTags() []string {
	seen := make(map[string]bool)
	var tags []string
	for _, r := range t.Records {
		if !seen[r.Key.ExperimentTag] {
			seen[r.Key.ExperimentTag] = true
			tags = append(tags, r.Key.ExperimentTag)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool {
		li, lj := strings.ToLower(tags[i]), strings.ToLower(tags[j])
		if li != lj {
			return li < lj
		}
		return tags[i] < tags[j]
	})
	return tags
}

// Cell is a possibly blank numeric value
type Cell struct {
	Value float64
	Valid bool
}

// NumberCell returns a valid cell holding v
func NumberCell(v float64) Cell {
	return Cell{Value: v, Valid: true}
}

// PivotShape selects the layout of a pivot table
type PivotShape string

const (
	// PivotVisual indexes rows by (metric, date) with one column per experiment
	PivotVisual PivotShape = "visual"
	// PivotFamily indexes rows by date with one column per (experiment, field)
	PivotFamily PivotShape = "family"
)

// PivotColumn is one value column of a pivot table. Field is empty for visual pivots.
type PivotColumn struct {
	ExperimentTag string
	Field         string
}

// PivotRow is one row of a pivot table. Stat is empty for family pivots.
type PivotRow struct {
	Stat  string
	Date  string
	Cells []Cell
}

// PivotTable is a report-ready wide view of the statistics table
type PivotTable struct {
	Sheet     string
	Shape     PivotShape
	Statistic string
	Columns   []PivotColumn
	Rows      []PivotRow
}

// SheetValue is one rendered worksheet cell: text, number, or blank
type SheetValue struct {
	Text    string
	Number  float64
	Numeric bool
}

// String returns the display text used for column width estimation
func (v SheetValue) String() string {
	if v.Numeric {
		return fmt.Sprintf("%v", v.Number)
	}
	return v.Text
}

// TextValue returns a text cell
func TextValue(s string) SheetValue {
	return SheetValue{Text: s}
}

// NumberValue returns a numeric cell, or a blank cell when c is invalid
func NumberValue(c Cell) SheetValue {
	if !c.Valid {
		return SheetValue{}
	}
	return SheetValue{Number: c.Value, Numeric: true}
}

// SheetData is what the report sink receives for one worksheet
type SheetData struct {
	Name         string
	HeaderRows   [][]string
	Rows         [][]SheetValue
	IndexColumns int
	// GroupSize draws a separator after every GroupSize body rows when positive
	GroupSize int
}
