// Package exporter writes rendered report sheets to disk.
//
// Workbook is the report sink: sheets are added in order, headers are bold,
// column widths fit their content, and grouped sheets get a thick separator
// under each group. Save writes output_<timestamp>.xlsx atomically.
//
// CSVWriter optionally mirrors the raw data and statistics sheets as UTF-8 CSV
// files with a byte order mark for Excel.
//
// Example usage:
//
//	wb, err := exporter.NewWorkbook(logger)
//	if err != nil {
//		return err
//	}
//	defer wb.Close()
//	for _, sheet := range sheets {
//		if err := wb.AddSheet(ctx, sheet); err != nil {
//			return err
//		}
//	}
//	path, err := wb.Save(ctx, paths.ProcessedDir, time.Now())
package exporter
