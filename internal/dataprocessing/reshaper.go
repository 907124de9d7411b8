package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"phenocli/internal/config"
	"phenocli/internal/errors"
	"phenocli/pkg/contracts/domain"
)

// labelPattern splits a ROI label into row and plant around a single '0'
var labelPattern = regexp.MustCompile(`^([^0]+)0([^0]+)$`)

// structuralColumns never become measurement fields
var structuralColumns = map[string]bool{
	ColumnExperimentTag: true,
	ColumnLabel:         true,
	ColumnTimestamp:     true,
	ColumnRowNumber:     true,
	ColumnSensor:        true,
	ColumnDate:          true,
}

// ParseSensorFamily maps a writer label to its sensor family. Matching is
// case-sensitive and "flu" is checked before "vis", "nir" and "ir".
func ParseSensorFamily(label string) domain.SensorFamily {
	switch {
	case strings.Contains(label, "flu"):
		return domain.FamilyFLU
	case strings.Contains(label, "vis"):
		return domain.FamilyVIS
	case strings.Contains(label, "nir"):
		return domain.FamilyNIR
	case strings.Contains(label, "ir"):
		return domain.FamilyIR
	default:
		return domain.FamilyUnclassified
	}
}

// ParseLabel splits a ROI label like "A01" into row "A" and plant "1"
func ParseLabel(label string) (row, plant string, err error) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return "", "", fmt.Errorf("label %q must contain exactly one '0' with text on both sides", label)
	}
	return m[1], m[2], nil
}

// FamilyColorClassField returns the per-family color class column, e.g. "NIR Color Class 2"
func FamilyColorClassField(family domain.SensorFamily, generic string) string {
	return string(family) + " " + generic
}

// ReshaperConfig holds reshaping options
type ReshaperConfig struct {
	// LabelPolicy is config.LabelPolicyStrict or config.LabelPolicySkip
	LabelPolicy string
}

// ReshapeReport counts records that were kept without a family or dropped
type ReshapeReport struct {
	Records       int
	Unclassified  int
	LabelsSkipped int
}

// ReshapedData is the canonical per-scan dataset
type ReshapedData struct {
	Records []domain.CanonicalRecord
	// Fields are the numeric measurement columns in canonical column order
	Fields     []string
	Variant    domain.SchemaVariant
	IRObserved bool
	Report     ReshapeReport
}

// HasField reports whether name is one of the measurement fields
func (d *ReshapedData) HasField(name string) bool {
	return containsString(d.Fields, name)
}

// Reshaper turns classified raw rows into canonical records
type Reshaper struct {
	logger *slog.Logger
	policy string
}

// NewReshaper creates a reshaper; an empty policy means strict
func NewReshaper(logger *slog.Logger, cfg ReshaperConfig) *Reshaper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LabelPolicy == "" {
		cfg.LabelPolicy = config.LabelPolicyStrict
	}
	return &Reshaper{logger: logger, policy: cfg.LabelPolicy}
}

// Reshape derives family, row, plant and plant id for every row of a classified
// table and extracts its numeric fields.
func (r *Reshaper) Reshape(ctx context.Context, t *domain.RawTable, cls Classification) (*ReshapedData, error) {
	for _, required := range []string{ColumnExperimentTag, ColumnLabel, ColumnDate} {
		if !t.HasColumn(required) {
			return nil, errors.NewParsingError(fmt.Sprintf("required column %q is missing", required), nil)
		}
	}

	numeric := r.numericColumns(ctx, t)
	data := &ReshapedData{Variant: cls.Variant}

	families := make([]domain.SensorFamily, len(t.Rows))
	for i, row := range t.Rows {
		families[i] = ParseSensorFamily(t.Value(row, ColumnSensor))
		if families[i] == domain.FamilyIR {
			data.IRObserved = true
		}
	}

	// Generic color class columns are split per family and dropped
	var genericColorClass []string
	for _, col := range numeric {
		if cls.Variant == domain.ColorClassVariant && containsString(ColorClassFields, col) {
			genericColorClass = append(genericColorClass, col)
			continue
		}
		data.Fields = append(data.Fields, col)
	}
	colorClassFamilies := []domain.SensorFamily{domain.FamilyNIR, domain.FamilyFLU}
	if data.IRObserved {
		colorClassFamilies = append(colorClassFamilies, domain.FamilyIR)
	}
	for _, fam := range colorClassFamilies {
		for _, generic := range genericColorClass {
			data.Fields = append(data.Fields, FamilyColorClassField(fam, generic))
		}
	}

	tagIdx := t.ColumnIndex(ColumnExperimentTag)
	labelIdx := t.ColumnIndex(ColumnLabel)
	dateIdx := t.ColumnIndex(ColumnDate)
	tsIdx := t.ColumnIndex(ColumnTimestamp)

	for i, row := range t.Rows {
		tag, label := row[tagIdx], row[labelIdx]
		plantRow, plant, err := ParseLabel(label)
		if err != nil {
			if r.policy == config.LabelPolicySkip {
				data.Report.LabelsSkipped++
				r.logger.WarnContext(ctx, "skipping record with malformed label",
					slog.String("experiment", tag),
					slog.String("label", label))
				continue
			}
			return nil, errors.NewDataIntegrityError(err.Error()).
				WithContext("experiment", tag).
				WithContext("label", label).
				WithContext("row", i+1)
		}

		rec := domain.CanonicalRecord{
			Date:          row[dateIdx],
			ExperimentTag: tag,
			Label:         label,
			Row:           plantRow,
			Plant:         plant,
			PlantID:       tag + "_" + label,
			Family:        families[i],
			Values:        make(map[string]float64),
		}
		if tsIdx >= 0 {
			rec.Timestamp = row[tsIdx]
		}
		if rec.Family == domain.FamilyUnclassified {
			data.Report.Unclassified++
		}

		for _, col := range numeric {
			v, ok := ParseMeasurement(t.Value(row, col))
			if !ok {
				continue
			}
			if containsString(genericColorClass, col) {
				if rec.Family != domain.FamilyUnclassified && rec.Family != domain.FamilyVIS {
					rec.Values[FamilyColorClassField(rec.Family, col)] = v
				}
				continue
			}
			rec.Values[col] = v
		}
		data.Records = append(data.Records, rec)
	}
	data.Report.Records = len(data.Records)

	if data.Report.Unclassified > 0 {
		r.logger.WarnContext(ctx, "records without a recognizable sensor family",
			slog.Int("count", data.Report.Unclassified))
	}

	r.logger.InfoContext(ctx, "reshaped records",
		slog.Int("records", data.Report.Records),
		slog.Int("fields", len(data.Fields)),
		slog.Bool("ir_observed", data.IRObserved),
		slog.Int("labels_skipped", data.Report.LabelsSkipped))

	return data, nil
}

// numericColumns returns the non-structural columns whose every non-empty value is a float
func (r *Reshaper) numericColumns(ctx context.Context, t *domain.RawTable) []string {
	var cols []string
	for i, col := range t.Columns {
		if structuralColumns[col] {
			continue
		}
		numeric := true
		for _, row := range t.Rows {
			if !isMeasurement(row[i]) {
				numeric = false
				break
			}
		}
		if numeric {
			cols = append(cols, col)
		} else {
			r.logger.DebugContext(ctx, "dropping non-numeric column", slog.String("column", col))
		}
	}
	return cols
}
