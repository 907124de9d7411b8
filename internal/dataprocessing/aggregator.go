package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"phenocli/internal/errors"
	"phenocli/pkg/contracts/domain"
)

// Visual camera measurements
const (
	FieldArea           = ColumnArea
	FieldConvexHullArea = "Convex Hull Area"
	FieldCaliperLength  = "Caliper Length"
	FieldCompactness    = "Compactness"
	FieldExcentricity   = "Excentricity"
	FieldCircumference  = "Circumference"
)

var (
	baseVisFields     = []string{FieldArea, FieldConvexHullArea, FieldCaliperLength, FieldCompactness}
	optionalVisFields = []string{FieldExcentricity, FieldCircumference}
)

// VisFields returns the VIS measurements present in fields, base fields first
func VisFields(fields []string) []string {
	var out []string
	for _, f := range append(append([]string{}, baseVisFields...), optionalVisFields...) {
		if containsString(fields, f) {
			out = append(out, f)
		}
	}
	return out
}

// JoinReport counts aggregation keys lost because a family had no matching scan
type JoinReport struct {
	Dropped     map[domain.SensorFamily]int
	DroppedKeys int
}

// Aggregator averages scans into one record per plant per day
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// keyOf returns the aggregation key of a canonical record
func keyOf(r domain.CanonicalRecord) domain.AggregationKey {
	return domain.AggregationKey{
		ExperimentTag: r.ExperimentTag,
		Row:           r.Row,
		Plant:         r.Plant,
		PlantID:       r.PlantID,
		Date:          r.Date,
	}
}

// meanAccumulator keeps per-field sums and counts for one key
type meanAccumulator struct {
	sums   map[string]float64
	counts map[string]int
}

func newMeanAccumulator() *meanAccumulator {
	return &meanAccumulator{sums: make(map[string]float64), counts: make(map[string]int)}
}

func (m *meanAccumulator) add(r domain.CanonicalRecord, fields []string) {
	for _, f := range fields {
		if v, ok := r.Value(f); ok {
			m.sums[f] += v
			m.counts[f]++
		}
	}
}

func (m *meanAccumulator) means(into map[string]float64) {
	for f, n := range m.counts {
		into[f] = m.sums[f] / float64(n)
	}
}

// groupMeans averages fields over the records accepted by keep, per aggregation key
func groupMeans(records []domain.CanonicalRecord, fields []string, keep func(domain.CanonicalRecord) bool) map[domain.AggregationKey]*meanAccumulator {
	groups := make(map[domain.AggregationKey]*meanAccumulator)
	for _, r := range records {
		if !keep(r) {
			continue
		}
		k := keyOf(r)
		acc, ok := groups[k]
		if !ok {
			acc = newMeanAccumulator()
			groups[k] = acc
		}
		acc.add(r, fields)
	}
	return groups
}

func familyIs(f domain.SensorFamily) func(domain.CanonicalRecord) bool {
	return func(r domain.CanonicalRecord) bool { return r.Family == f }
}

// Aggregate produces the "Raw Data" table. With the color class variant each family
// is averaged on its own and the results are inner joined on the key. Otherwise VIS
// fields come from VIS scans, every other field from all scans of the key, and only
// keys with a VIS scan survive.
func (a *Aggregator) Aggregate(ctx context.Context, data *ReshapedData) (*domain.AggregatedTable, JoinReport, error) {
	report := JoinReport{Dropped: make(map[domain.SensorFamily]int)}
	visFields := VisFields(data.Fields)

	var table *domain.AggregatedTable
	if data.Variant == domain.ColorClassVariant {
		table = a.aggregateColorClass(data, visFields, &report)
	} else {
		table = a.aggregateVisJoin(data, visFields, &report)
	}

	if report.DroppedKeys > 0 {
		attrs := []any{slog.Int("dropped_keys", report.DroppedKeys)}
		for _, fam := range domain.Families {
			if n := report.Dropped[fam]; n > 0 {
				attrs = append(attrs, slog.Int("dropped_"+string(fam), n))
			}
		}
		if n := report.Dropped[domain.FamilyUnclassified]; n > 0 {
			attrs = append(attrs, slog.Int("dropped_unclassified", n))
		}
		a.logger.WarnContext(ctx, "aggregation keys lost in join", attrs...)
	}

	if len(table.Records) == 0 {
		return nil, report, errors.NewEmptyDatasetError("aggregation").
			WithContext("variant", data.Variant.String()).
			WithContext("records", len(data.Records))
	}

	sort.Slice(table.Records, func(i, j int) bool {
		return table.Records[i].Key.Less(table.Records[j].Key)
	})

	a.logger.InfoContext(ctx, "aggregated records",
		slog.Int("keys", len(table.Records)),
		slog.Int("fields", len(table.Fields)),
		slog.String("variant", data.Variant.String()))

	return table, report, nil
}

func (a *Aggregator) aggregateColorClass(data *ReshapedData, visFields []string, report *JoinReport) *domain.AggregatedTable {
	families := []domain.SensorFamily{domain.FamilyVIS, domain.FamilyNIR, domain.FamilyFLU}
	if data.IRObserved {
		families = append(families, domain.FamilyIR)
	}

	table := &domain.AggregatedTable{}
	groups := make([]map[domain.AggregationKey]*meanAccumulator, len(families))
	for i, fam := range families {
		fields := visFields
		if fam != domain.FamilyVIS {
			fields = nil
			for _, generic := range ColorClassFields {
				name := FamilyColorClassField(fam, generic)
				if data.HasField(name) {
					fields = append(fields, name)
				}
			}
		}
		table.Fields = append(table.Fields, fields...)
		groups[i] = groupMeans(data.Records, fields, familyIs(fam))
	}

	dropped := make(map[domain.AggregationKey]bool)
	for k, acc := range groups[0] {
		joined := true
		for _, g := range groups[1:] {
			if _, ok := g[k]; !ok {
				joined = false
				break
			}
		}
		if !joined {
			continue
		}
		values := make(map[string]float64)
		acc.means(values)
		for _, g := range groups[1:] {
			g[k].means(values)
		}
		table.Records = append(table.Records, domain.AggregatedRecord{Key: k, Values: values})
	}

	joined := make(map[domain.AggregationKey]bool, len(table.Records))
	for _, r := range table.Records {
		joined[r.Key] = true
	}
	for i, g := range groups {
		for k := range g {
			if !joined[k] {
				report.Dropped[families[i]]++
				dropped[k] = true
			}
		}
	}
	report.DroppedKeys = len(dropped)
	return table
}

func (a *Aggregator) aggregateVisJoin(data *ReshapedData, visFields []string, report *JoinReport) *domain.AggregatedTable {
	var otherFields []string
	for _, f := range data.Fields {
		if !containsString(visFields, f) {
			otherFields = append(otherFields, f)
		}
	}

	table := &domain.AggregatedTable{Fields: append(append([]string{}, otherFields...), visFields...)}

	vis := groupMeans(data.Records, visFields, familyIs(domain.FamilyVIS))
	all := groupMeans(data.Records, otherFields, func(domain.CanonicalRecord) bool { return true })

	for k, acc := range vis {
		values := make(map[string]float64)
		all[k].means(values)
		acc.means(values)
		table.Records = append(table.Records, domain.AggregatedRecord{Key: k, Values: values})
	}

	// Families seen on keys that never had a VIS scan
	lost := make(map[domain.AggregationKey]map[domain.SensorFamily]bool)
	for _, r := range data.Records {
		k := keyOf(r)
		if _, ok := vis[k]; ok {
			continue
		}
		if lost[k] == nil {
			lost[k] = make(map[domain.SensorFamily]bool)
		}
		lost[k][r.Family] = true
	}
	for _, fams := range lost {
		for fam := range fams {
			report.Dropped[fam]++
		}
	}
	report.DroppedKeys = len(lost)
	return table
}
