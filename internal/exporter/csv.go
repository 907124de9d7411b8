package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"phenocli/internal/config"
	"phenocli/internal/errors"
	"phenocli/pkg/contracts/domain"
)

// CSVWriter provides CSV export of rendered sheets
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer rooted at dir
func NewCSVWriter(logger *slog.Logger, dir string) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{dir: dir, logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   [][]string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(ctx context.Context, filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	w.logger.InfoContext(ctx, "Writing CSV file",
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return errors.NewStorageError("failed to create directory", err).WithContext("path", fullPath)
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.NewStorageError("failed to open file", err).WithContext("path", fullPath)
	}
	defer file.Close()

	// Write BOM if requested (helps Excel recognize UTF-8)
	if options.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return errors.NewStorageError("failed to write BOM", err)
		}
	}

	writer := csv.NewWriter(file)
	for _, header := range options.Headers {
		if err := writer.Write(header); err != nil {
			return errors.NewStorageError("failed to write headers", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to write record %d", i), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewStorageError("failed to flush csv", err).WithContext("path", fullPath)
	}
	return file.Close()
}

// WriteSheet writes a rendered sheet with its header rows
func (w *CSVWriter) WriteSheet(ctx context.Context, filePath string, sheet domain.SheetData) error {
	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		records = append(records, FormatRow(row))
	}
	return w.WriteCSV(ctx, filePath, WriteOptions{
		Headers:   sheet.HeaderRows,
		Records:   records,
		BOMPrefix: true,
	})
}

// ExportTables writes the raw data and statistics sheets next to the workbook
func (w *CSVWriter) ExportTables(ctx context.Context, rawData, statistics domain.SheetData) ([]string, error) {
	var written []string
	for _, item := range []struct {
		name  string
		sheet domain.SheetData
	}{
		{config.RawDataCSVName, rawData},
		{config.StatisticsCSVName, statistics},
	} {
		if err := w.WriteSheet(ctx, item.name, item.sheet); err != nil {
			return written, err
		}
		written = append(written, w.resolvePath(item.name))
	}
	return written, nil
}

// FormatRow converts sheet cells to CSV fields; blank cells become empty fields
func FormatRow(row []domain.SheetValue) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if v.Numeric {
			out[i] = strconv.FormatFloat(v.Number, 'f', -1, 64)
			continue
		}
		out[i] = v.Text
	}
	return out
}

// resolvePath joins relative paths onto the writer's directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(w.dir, filePath)
}
