package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"phenocli/internal/config"
	"phenocli/internal/errors"
	"phenocli/pkg/contracts/domain"
)

const (
	defaultSheetName = "Sheet1"
	columnPadding    = 2
	// excelize border style 5 is a continuous thick line
	thickBorderStyle = 5
)

// Workbook collects report sheets in insertion order and saves them as one xlsx file
type Workbook struct {
	logger *slog.Logger
	file   *excelize.File
	sheets []string

	headerStyle    int
	separatorStyle int
}

// NewWorkbook creates an empty workbook
func NewWorkbook(logger *slog.Logger) (*Workbook, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, errors.NewStorageError("failed to create header style", err)
	}
	separatorStyle, err := f.NewStyle(&excelize.Style{
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: thickBorderStyle}},
	})
	if err != nil {
		f.Close()
		return nil, errors.NewStorageError("failed to create separator style", err)
	}

	return &Workbook{
		logger:         logger,
		file:           f,
		headerStyle:    headerStyle,
		separatorStyle: separatorStyle,
	}, nil
}

// Sheets returns the sheet names added so far
func (w *Workbook) Sheets() []string {
	return append([]string(nil), w.sheets...)
}

// AddSheet writes one worksheet. Header rows go first in bold, then the body rows.
// Column widths fit the longest text in each column.
func (w *Workbook) AddSheet(ctx context.Context, sheet domain.SheetData) error {
	for _, existing := range w.sheets {
		if existing == sheet.Name {
			return errors.NewAppValidationError("duplicate sheet name").WithContext("sheet", sheet.Name)
		}
	}

	if _, err := w.file.NewSheet(sheet.Name); err != nil {
		return errors.NewStorageError("failed to create sheet", err).WithContext("sheet", sheet.Name)
	}
	if len(w.sheets) == 0 {
		if err := w.file.DeleteSheet(defaultSheetName); err != nil {
			return errors.NewStorageError("failed to remove default sheet", err)
		}
	}
	w.sheets = append(w.sheets, sheet.Name)

	widths := make(map[int]int)
	track := func(col int, text string) {
		if n := utf8.RuneCountInString(text); n > widths[col] {
			widths[col] = n
		}
	}

	row := 1
	for _, header := range sheet.HeaderRows {
		values := make([]interface{}, len(header))
		for i, h := range header {
			values[i] = h
			track(i, h)
		}
		if err := w.writeRow(sheet.Name, row, values); err != nil {
			return err
		}
		if len(header) > 0 {
			if err := w.styleRow(sheet.Name, row, len(header), w.headerStyle); err != nil {
				return err
			}
		}
		row++
	}

	width := 0
	for _, h := range sheet.HeaderRows {
		width = max(width, len(h))
	}
	for i, body := range sheet.Rows {
		values := make([]interface{}, len(body))
		for j, v := range body {
			switch {
			case v.Numeric:
				values[j] = v.Number
			case v.Text != "":
				values[j] = v.Text
			default:
				values[j] = nil
			}
			track(j, v.String())
		}
		width = max(width, len(body))
		if err := w.writeRow(sheet.Name, row, values); err != nil {
			return err
		}
		if sheet.GroupSize > 0 && (i+1)%sheet.GroupSize == 0 && width > 0 {
			if err := w.styleRow(sheet.Name, row, width, w.separatorStyle); err != nil {
				return err
			}
		}
		row++
	}

	for col, n := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return errors.NewStorageError("invalid column", err)
		}
		if err := w.file.SetColWidth(sheet.Name, name, name, float64(n+columnPadding)); err != nil {
			return errors.NewStorageError("failed to set column width", err).WithContext("sheet", sheet.Name)
		}
	}

	w.logger.DebugContext(ctx, "added sheet",
		slog.String("sheet", sheet.Name),
		slog.Int("header_rows", len(sheet.HeaderRows)),
		slog.Int("rows", len(sheet.Rows)))
	return nil
}

func (w *Workbook) writeRow(sheet string, row int, values []interface{}) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.NewStorageError("invalid cell", err)
	}
	if err := w.file.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.NewStorageError("failed to write row", err).
			WithContext("sheet", sheet).
			WithContext("row", row)
	}
	return nil
}

func (w *Workbook) styleRow(sheet string, row, columns, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.NewStorageError("invalid cell", err)
	}
	last, err := excelize.CoordinatesToCellName(columns, row)
	if err != nil {
		return errors.NewStorageError("invalid cell", err)
	}
	if err := w.file.SetCellStyle(sheet, first, last, style); err != nil {
		return errors.NewStorageError("failed to style row", err).WithContext("sheet", sheet)
	}
	return nil
}

// Save writes the workbook into dir as output_<timestamp>.xlsx and returns its path.
// The file is written under a temporary name first so a failed run leaves nothing behind.
func (w *Workbook) Save(ctx context.Context, dir string, now time.Time) (string, error) {
	if len(w.sheets) == 0 {
		return "", errors.NewEmptyDatasetError("export")
	}
	w.file.SetActiveSheet(0)

	tmp, err := os.CreateTemp(dir, ".output_*.xlsx.tmp")
	if err != nil {
		return "", errors.NewStorageError("failed to create temporary workbook", err).WithContext("dir", dir)
	}
	tmpPath := tmp.Name()

	if _, err := w.file.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", errors.NewStorageError("failed to write workbook", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", errors.NewStorageError("failed to write workbook", err)
	}

	target := filepath.Join(dir, config.ReportFileName(now))
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", errors.NewStorageError("failed to move workbook into place", err).WithContext("path", target)
	}

	w.logger.InfoContext(ctx, "saved workbook",
		slog.String("path", target),
		slog.Int("sheets", len(w.sheets)))
	return target, nil
}

// Close releases the workbook buffers
func (w *Workbook) Close() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close workbook: %w", err)
	}
	return nil
}
