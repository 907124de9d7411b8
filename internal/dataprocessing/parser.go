package dataprocessing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"phenocli/internal/config"
	"phenocli/internal/errors"
	"phenocli/pkg/contracts/domain"
)

// Structural columns of the sensor export
const (
	ColumnExperimentTag = "Snapshot ID Tag"
	ColumnLabel         = "ROI Label"
	ColumnTimestamp     = "Snapshot Time Stamp"
	ColumnRowNumber     = "Row No"
	ColumnSensor        = "Sensor"
	ColumnArea          = "Area"
	// ColumnDate is derived from the timestamp during ingestion
	ColumnDate = "date"
)

// timestampLayouts are tried in order when deriving the calendar date
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"02.01.2006 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParserConfig holds ingestion options
type ParserConfig struct {
	Delimiter rune
	Workers   int
}

// IngestReport summarizes what ingestion kept and removed
type IngestReport struct {
	Files    int
	Records  int
	Filtered int
}

// Parser reads semicolon separated sensor exports into one raw table
type Parser struct {
	logger    *slog.Logger
	delimiter rune
	workers   int
}

// NewParser creates a parser. Zero values fall back to ';' and the default worker count.
func NewParser(logger *slog.Logger, cfg ParserConfig) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = rune(config.DefaultDelimiter[0])
	}
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultParseWorkers
	}
	return &Parser{
		logger:    logger,
		delimiter: cfg.Delimiter,
		workers:   cfg.Workers,
	}
}

// Ingest parses every file, concatenates them in the given order, removes empty-well
// scans and derives the date column. The result keeps the union of all headers.
func (p *Parser) Ingest(ctx context.Context, paths []string) (*domain.RawTable, IngestReport, error) {
	report := IngestReport{Files: len(paths)}

	combined, err := p.ParseFiles(ctx, paths)
	if err != nil {
		return nil, report, err
	}
	report.Records = len(combined.Rows)

	filtered, removed := FilterEmptyArea(combined)
	report.Filtered = removed
	if removed > 0 {
		p.logger.InfoContext(ctx, "removed scans without measurable area",
			slog.Int("removed", removed),
			slog.Int("remaining", len(filtered.Rows)))
	}
	if len(filtered.Rows) == 0 {
		return nil, report, errors.NewEmptyDatasetError("ingestion").
			WithContext("files", len(paths)).
			WithContext("records", report.Records)
	}

	dated, err := DeriveDates(filtered)
	if err != nil {
		return nil, report, err
	}

	p.logger.InfoContext(ctx, "ingested raw records",
		slog.Int("files", report.Files),
		slog.Int("records", report.Records),
		slog.Int("kept", len(dated.Rows)),
		slog.Int("columns", len(dated.Columns)))

	return dated, report, nil
}

// ParseFiles reads files concurrently and concatenates them in input order
func (p *Parser) ParseFiles(ctx context.Context, paths []string) (*domain.RawTable, error) {
	tables := make([]*domain.RawTable, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := p.ParseFile(path)
			if err != nil {
				return err
			}
			tables[i] = t
			p.logger.DebugContext(gctx, "parsed input file",
				slog.String("file", filepath.Base(path)),
				slog.Int("rows", len(t.Rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Concatenate(tables...), nil
}

// ParseFile reads one delimited file with a header line
func (p *Parser) ParseFile(path string) (*domain.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open input file", err).
			WithContext("file", path)
	}
	defer f.Close()

	t, err := p.ParseReader(f)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr.WithContext("file", path)
		}
		return nil, err
	}
	return t, nil
}

// ParseReader reads delimited records from r. Rows shorter than the header are
// padded; longer rows are an error.
func (p *Parser) ParseReader(r io.Reader) (*domain.RawTable, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.Comma = p.delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return &domain.RawTable{}, nil
	}
	if err != nil {
		return nil, errors.NewParsingError("failed to read header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &domain.RawTable{Columns: header}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewParsingError("failed to read record", err).WithContext("line", line)
		}
		if isBlankRecord(record) {
			continue
		}
		if len(record) > len(header) {
			return nil, errors.NewParsingError(
				fmt.Sprintf("record has %d fields, header has %d", len(record), len(header)), nil).
				WithContext("line", line)
		}
		row := make([]string, len(header))
		for i, v := range record {
			row[i] = strings.TrimSpace(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Concatenate stacks tables with union-of-columns alignment. Columns keep first-seen
// order; a column missing from a table is empty for that table's rows.
func Concatenate(tables ...*domain.RawTable) *domain.RawTable {
	out := &domain.RawTable{}
	index := make(map[string]int)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if _, ok := index[c]; !ok {
				index[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}

	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, src := range t.Rows {
			row := make([]string, len(out.Columns))
			for i, c := range t.Columns {
				if i < len(src) {
					row[index[c]] = src[i]
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// FilterEmptyArea drops rows whose Area is missing, unparseable or not positive
func FilterEmptyArea(t *domain.RawTable) (*domain.RawTable, int) {
	out := &domain.RawTable{Columns: t.Columns}
	idx := t.ColumnIndex(ColumnArea)
	for _, row := range t.Rows {
		if idx < 0 {
			continue
		}
		v, ok := ParseMeasurement(row[idx])
		if !ok || v <= 0 {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, len(t.Rows) - len(out.Rows)
}

// DeriveDates appends the calendar date (YYYY-MM-DD) of each row's snapshot timestamp
func DeriveDates(t *domain.RawTable) (*domain.RawTable, error) {
	idx := t.ColumnIndex(ColumnTimestamp)
	if idx < 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("required column %q is missing", ColumnTimestamp), nil)
	}

	out := &domain.RawTable{Columns: append(append([]string{}, t.Columns...), ColumnDate)}
	out.Rows = make([][]string, 0, len(t.Rows))
	for i, row := range t.Rows {
		ts, err := ParseTimestamp(row[idx])
		if err != nil {
			return nil, errors.NewParsingError("unparseable snapshot timestamp", err).
				WithContext("row", i+1).
				WithContext("value", row[idx])
		}
		out.Rows = append(out.Rows, append(append(make([]string, 0, len(row)+1), row...), ts.Format(config.DateLayout)))
	}
	return out, nil
}

// ParseTimestamp parses a snapshot timestamp in any of the supported layouts
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q matches no known layout", value)
}

// ParseMeasurement parses a numeric cell. Empty, NaN and infinite cells are missing.
func ParseMeasurement(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// isMeasurement reports whether value is empty or parses as a float, NaN and Inf included
func isMeasurement(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}
