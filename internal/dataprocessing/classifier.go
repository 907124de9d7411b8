package dataprocessing

import (
	"context"
	"log/slog"
	"strings"

	"phenocli/pkg/contracts/domain"
)

// Canonical measurement names produced by classification
const (
	FieldFluoNo      = "FLUO No"
	FieldFluoLow     = "FLUO Low"
	FieldFluoMed     = "FLUO Med"
	FieldFluoHigh    = "FLUO High"
	FieldNIRLow      = "NIR Low"
	FieldNIRMed      = "NIR Med"
	FieldNIRHigh     = "NIR High"
	FieldYellow      = "Yellow"
	FieldGreen       = "Green"
	FieldTranslucent = "Translucent"
	FieldChalky      = "Chalky"
	FieldColorClass1 = "Color Class 1"
	FieldColorClass2 = "Color Class 2"
	FieldColorClass3 = "Color Class 3"
)

// ColorClassFields are the generic per-scan color class measurements
var ColorClassFields = []string{FieldColorClass1, FieldColorClass2, FieldColorClass3}

type ruleFlag int

const (
	flagNone ruleFlag = iota
	flagColorClass
	flagAlternativeVis
)

// Rule maps raw column names to a canonical name. Group and Token are matched as
// case-insensitive substrings; an empty Group always matches.
type Rule struct {
	Group     []string
	Token     string
	Canonical string
	flag      ruleFlag
}

func (r Rule) matches(lower string) bool {
	if !strings.Contains(lower, r.Token) {
		return false
	}
	if len(r.Group) == 0 {
		return true
	}
	for _, g := range r.Group {
		if strings.Contains(lower, g) {
			return true
		}
	}
	return false
}

var (
	fluoGroup = []string{"fluo", "signal"}
	nirGroup  = []string{"nir", "water"}
)

// DefaultRules is the ordered rule list. Every rule is evaluated; the last match wins.
var DefaultRules = []Rule{
	{Group: fluoGroup, Token: "low", Canonical: FieldFluoLow},
	{Group: fluoGroup, Token: "med", Canonical: FieldFluoMed},
	{Group: fluoGroup, Token: "high", Canonical: FieldFluoHigh},
	{Group: fluoGroup, Token: "no", Canonical: FieldFluoNo},
	{Group: nirGroup, Token: "low", Canonical: FieldNIRLow},
	{Group: nirGroup, Token: "med", Canonical: FieldNIRMed},
	{Group: nirGroup, Token: "high", Canonical: FieldNIRHigh},
	{Token: "yellow", Canonical: FieldYellow},
	{Token: "green", Canonical: FieldGreen},
	{Token: "translucent", Canonical: FieldTranslucent, flag: flagAlternativeVis},
	{Token: "chalky", Canonical: FieldChalky, flag: flagAlternativeVis},
	{Token: "colorclass_01", Canonical: FieldColorClass1, flag: flagColorClass},
	{Token: "colorclass_02", Canonical: FieldColorClass2, flag: flagColorClass},
	{Token: "colorclass_03", Canonical: FieldColorClass3, flag: flagColorClass},
	{Token: "writer", Canonical: ColumnSensor},
}

// Ambiguity records a column matched by rules with different canonical names
type Ambiguity struct {
	Column     string
	Candidates []string
	Chosen     string
}

// Classification is the result of inspecting the full column set
type Classification struct {
	Renames              map[string]string
	Variant              domain.SchemaVariant
	ColorClassPresent    bool
	AlternativeVisFields bool
	Ambiguities          []Ambiguity
}

// CanonicalName returns the renamed column, or column itself when no rule matched
func (c Classification) CanonicalName(column string) string {
	if name, ok := c.Renames[column]; ok {
		return name
	}
	return column
}

// Classifier assigns canonical names to raw sensor columns
type Classifier struct {
	logger *slog.Logger
	rules  []Rule
}

// NewClassifier creates a classifier using DefaultRules
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger, rules: DefaultRules}
}

// Classify computes renames and the schema variant from every column name
func (c *Classifier) Classify(ctx context.Context, columns []string) Classification {
	cls := Classification{Renames: make(map[string]string)}

	for _, col := range columns {
		lower := strings.ToLower(col)
		var candidates []string
		chosen := ""
		for _, rule := range c.rules {
			if !rule.matches(lower) {
				continue
			}
			chosen = rule.Canonical
			if !containsString(candidates, rule.Canonical) {
				candidates = append(candidates, rule.Canonical)
			}
			switch rule.flag {
			case flagColorClass:
				cls.ColorClassPresent = true
			case flagAlternativeVis:
				cls.AlternativeVisFields = true
			}
		}
		if chosen == "" {
			continue
		}
		cls.Renames[col] = chosen
		if len(candidates) > 1 {
			amb := Ambiguity{Column: col, Candidates: candidates, Chosen: chosen}
			cls.Ambiguities = append(cls.Ambiguities, amb)
			c.logger.WarnContext(ctx, "column matched several classification rules",
				slog.String("column", col),
				slog.Any("candidates", candidates),
				slog.String("chosen", chosen))
		}
	}

	switch {
	case cls.ColorClassPresent:
		cls.Variant = domain.ColorClassVariant
	case cls.AlternativeVisFields:
		cls.Variant = domain.AlternativeVisVariant
	default:
		cls.Variant = domain.StandardVisVariant
	}

	c.logger.InfoContext(ctx, "classified columns",
		slog.Int("columns", len(columns)),
		slog.Int("renamed", len(cls.Renames)),
		slog.String("variant", cls.Variant.String()),
		slog.Int("ambiguous", len(cls.Ambiguities)))

	return cls
}

// Apply renames the table's columns. Raw columns that collapse onto the same
// canonical name are merged left to right, first non-empty value per row.
func (c Classification) Apply(t *domain.RawTable) *domain.RawTable {
	out := &domain.RawTable{}
	target := make([]int, len(t.Columns))
	index := make(map[string]int)
	for i, col := range t.Columns {
		name := c.CanonicalName(col)
		pos, ok := index[name]
		if !ok {
			pos = len(out.Columns)
			index[name] = pos
			out.Columns = append(out.Columns, name)
		}
		target[i] = pos
	}

	out.Rows = make([][]string, 0, len(t.Rows))
	for _, src := range t.Rows {
		row := make([]string, len(out.Columns))
		for i, v := range src {
			if i >= len(target) {
				break
			}
			if row[target[i]] == "" {
				row[target[i]] = v
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
