// Package dataprocessing turns raw plant-phenotyping sensor exports into the
// tables of the report workbook.
//
// # Pipeline
//
//	Parser.Ingest        semicolon files -> RawTable (union of columns, Area > 0, date)
//	Classifier.Classify  column names -> Classification (renames, SchemaVariant)
//	Reshaper.Reshape     classified rows -> CanonicalRecord (family, row, plant, plant id)
//	Aggregator.Aggregate records -> AggregatedTable, one row per plant per day
//	Summarizer.Summarize aggregated rows -> StatisticsTable per experiment and date
//	PivotBuilder.Build   statistics + SheetPlan -> PivotTable per sheet
//
// Render* functions convert the tables into domain.SheetData for the exporter.
//
// # Schema variants
//
// The variant is decided once from the full column set. Color class columns
// (colorclass_01..03) select ColorClassVariant; otherwise chalky or translucent
// columns select AlternativeVisVariant; otherwise StandardVisVariant. Every
// later stage takes the variant as a value.
//
// # Labels
//
// ROI labels split into row and plant around a single '0' ("A01" is row A, plant
// 1). Any other shape is a DATA_INTEGRITY error unless the skip label policy is
// configured, in which case the record is dropped and counted.
package dataprocessing
