package exporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"phenocli/internal/errors"
	"phenocli/pkg/contracts/domain"
)

var runTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func statisticsSheet() domain.SheetData {
	var rows [][]domain.SheetValue
	for _, tag := range []string{"E1", "E2"} {
		for _, stat := range []string{"mean", "sem"} {
			rows = append(rows, []domain.SheetValue{
				domain.TextValue(tag),
				domain.TextValue("2024-03-09"),
				domain.TextValue(stat),
				domain.NumberValue(domain.NumberCell(1.5)),
			})
		}
	}
	return domain.SheetData{
		Name:         "Statistics",
		HeaderRows:   [][]string{{"Snapshot ID Tag", "date", "Statistic", "Area"}},
		Rows:         rows,
		IndexColumns: 3,
		GroupSize:    2,
	}
}

func saveWorkbook(t *testing.T, sheets ...domain.SheetData) string {
	t.Helper()
	wb, err := NewWorkbook(nil)
	require.NoError(t, err)
	defer wb.Close()

	for _, s := range sheets {
		require.NoError(t, wb.AddSheet(context.Background(), s))
	}
	path, err := wb.Save(context.Background(), t.TempDir(), runTime)
	require.NoError(t, err)
	return path
}

func TestWorkbook_SaveName(t *testing.T) {
	path := saveWorkbook(t, statisticsSheet())

	assert.Equal(t, "output_20240309140507.xlsx", filepath.Base(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary file is left behind")
}

func TestWorkbook_SheetOrderAndContent(t *testing.T) {
	raw := domain.SheetData{
		Name:       "Raw Data",
		HeaderRows: [][]string{{"Snapshot ID Tag", "Area", "Green"}},
		Rows: [][]domain.SheetValue{
			{domain.TextValue("E1"), domain.NumberValue(domain.NumberCell(15)), {}},
		},
	}
	family := domain.SheetData{
		Name:         "NIR (mean)",
		HeaderRows:   [][]string{{"exp", "E1"}, {"metric", "NIR Low"}},
		Rows:         [][]domain.SheetValue{{domain.TextValue("2024-03-09"), domain.NumberValue(domain.NumberCell(2))}},
		IndexColumns: 1,
	}

	path := saveWorkbook(t, raw, statisticsSheet(), family)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Raw Data", "Statistics", "NIR (mean)"}, f.GetSheetList())

	rows, err := f.GetRows("Raw Data")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Snapshot ID Tag", "Area", "Green"}, {"E1", "15"}}, rows)

	rows, err = f.GetRows("NIR (mean)")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"exp", "E1"}, {"metric", "NIR Low"}, {"2024-03-09", "2"}}, rows)

	value, err := f.GetCellValue("Statistics", "D2")
	require.NoError(t, err)
	assert.Equal(t, "1.5", value)
}

func TestWorkbook_Formatting(t *testing.T) {
	path := saveWorkbook(t, statisticsSheet())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	width, err := f.GetColWidth("Statistics", "A")
	require.NoError(t, err)
	assert.Equal(t, float64(len("Snapshot ID Tag")+2), width)

	width, err = f.GetColWidth("Statistics", "B")
	require.NoError(t, err)
	assert.Equal(t, float64(len("2024-03-09")+2), width)

	styleOf := func(cell string) *excelize.Style {
		idx, err := f.GetCellStyle("Statistics", cell)
		require.NoError(t, err)
		style, err := f.GetStyle(idx)
		require.NoError(t, err)
		return style
	}

	header := styleOf("A1")
	require.NotNil(t, header.Font)
	assert.True(t, header.Font.Bold)

	// Groups of two body rows: rows 3 and 5 close a group
	for _, cell := range []string{"A3", "D3", "A5"} {
		s := styleOf(cell)
		require.Len(t, s.Border, 1, cell)
		assert.Equal(t, "bottom", s.Border[0].Type)
		assert.Equal(t, thickBorderStyle, s.Border[0].Style)
	}
	assert.Empty(t, styleOf("A2").Border)
	assert.Empty(t, styleOf("A4").Border)
}

func TestWorkbook_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate sheet", func(t *testing.T) {
		wb, err := NewWorkbook(nil)
		require.NoError(t, err)
		defer wb.Close()

		require.NoError(t, wb.AddSheet(ctx, statisticsSheet()))
		err = wb.AddSheet(ctx, statisticsSheet())
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		assert.Equal(t, []string{"Statistics"}, wb.Sheets())
	})

	t.Run("empty workbook", func(t *testing.T) {
		wb, err := NewWorkbook(nil)
		require.NoError(t, err)
		defer wb.Close()

		_, err = wb.Save(ctx, t.TempDir(), runTime)
		assert.True(t, errors.IsType(err, errors.ErrTypeEmptyDataset))
	})

	t.Run("missing directory", func(t *testing.T) {
		wb, err := NewWorkbook(nil)
		require.NoError(t, err)
		defer wb.Close()

		require.NoError(t, wb.AddSheet(ctx, statisticsSheet()))
		_, err = wb.Save(ctx, filepath.Join(t.TempDir(), "absent"), runTime)
		assert.True(t, errors.IsType(err, errors.ErrTypeStorage))
	})
}
