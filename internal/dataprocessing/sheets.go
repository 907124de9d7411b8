package dataprocessing

import (
	"phenocli/pkg/contracts/domain"
)

// Fixed sheet names
const (
	SheetRawData    = "Raw Data"
	SheetStatistics = "Statistics"
)

var (
	colorFields            = []string{FieldGreen, FieldYellow}
	alternativeColorFields = []string{FieldChalky, FieldTranslucent}
	nirFields              = []string{FieldNIRLow, FieldNIRMed, FieldNIRHigh}
	fluFields              = []string{FieldFluoNo, FieldFluoLow, FieldFluoMed, FieldFluoHigh}
)

var (
	allVariants     = []domain.SchemaVariant{domain.StandardVisVariant, domain.AlternativeVisVariant, domain.ColorClassVariant}
	standardOnly    = []domain.SchemaVariant{domain.StandardVisVariant}
	alternativeOnly = []domain.SchemaVariant{domain.AlternativeVisVariant}
	colorClassOnly  = []domain.SchemaVariant{domain.ColorClassVariant}
)

// SheetSpec declares one pivot sheet of the report
type SheetSpec struct {
	Sheet     string
	Shape     domain.PivotShape
	Statistic string
	Fields    []string
	Variants  []domain.SchemaVariant

	// RequiresFamily limits the sheet to datasets where that family was observed
	RequiresFamily domain.SensorFamily
}

func (s SheetSpec) appliesTo(v domain.SchemaVariant) bool {
	for _, candidate := range s.Variants {
		if candidate == v {
			return true
		}
	}
	return false
}

func familyColorClassFields(f domain.SensorFamily) []string {
	fields := make([]string, 0, len(ColorClassFields))
	for _, generic := range ColorClassFields {
		fields = append(fields, FamilyColorClassField(f, generic))
	}
	return fields
}

// meanAndSEM declares the mean sheet and its sem companion
func meanAndSEM(prefix string, shape domain.PivotShape, fields []string, variants []domain.SchemaVariant, requires domain.SensorFamily) []SheetSpec {
	return []SheetSpec{
		{Sheet: prefix + "mean)", Shape: shape, Statistic: domain.StatMean, Fields: fields, Variants: variants, RequiresFamily: requires},
		{Sheet: prefix + "sem)", Shape: shape, Statistic: domain.StatSEM, Fields: fields, Variants: variants, RequiresFamily: requires},
	}
}

// SheetPlan returns the pivot sheets in workbook order. visFields are the VIS
// measurements of the dataset.
func SheetPlan(visFields []string) []SheetSpec {
	var plan []SheetSpec
	plan = append(plan, meanAndSEM("VIS (", domain.PivotVisual, visFields, allVariants, "")...)
	plan = append(plan, meanAndSEM("VIS (color - ", domain.PivotFamily, colorFields, standardOnly, "")...)
	plan = append(plan, meanAndSEM("VIS (color - ", domain.PivotFamily, alternativeColorFields, alternativeOnly, "")...)
	plan = append(plan, meanAndSEM("NIR (", domain.PivotFamily, nirFields, standardOnly, "")...)
	plan = append(plan, meanAndSEM("NIR (", domain.PivotFamily, familyColorClassFields(domain.FamilyNIR), colorClassOnly, "")...)
	plan = append(plan, meanAndSEM("FLU (", domain.PivotFamily, fluFields, standardOnly, "")...)
	plan = append(plan, meanAndSEM("FLU (", domain.PivotFamily, familyColorClassFields(domain.FamilyFLU), colorClassOnly, "")...)
	plan = append(plan, meanAndSEM("IR (", domain.PivotFamily, familyColorClassFields(domain.FamilyIR), colorClassOnly, domain.FamilyIR)...)
	return plan
}

// PlanOptions selects sheets from a plan
type PlanOptions struct {
	Variant    domain.SchemaVariant
	IRObserved bool
	IncludeSEM bool
}

// SelectSheets keeps the specs that apply to the dataset
func SelectSheets(plan []SheetSpec, opts PlanOptions) []SheetSpec {
	var out []SheetSpec
	for _, spec := range plan {
		if !spec.appliesTo(opts.Variant) {
			continue
		}
		if spec.RequiresFamily == domain.FamilyIR && !opts.IRObserved {
			continue
		}
		if spec.Statistic == domain.StatSEM && !opts.IncludeSEM {
			continue
		}
		out = append(out, spec)
	}
	return out
}
