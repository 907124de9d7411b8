package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"phenocli/pkg/contracts/domain"
)

// Summarizer computes population statistics per experiment and date from the
// aggregated per-plant table.
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a summarizer
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger}
}

// FieldSummary holds the statistics of one field. Values that are undefined for
// the sample size are absent from the map; count is always present.
type FieldSummary map[string]float64

// Describe computes count, mean, std (n-1), min, quartiles, max and sem of values
func Describe(values []float64) FieldSummary {
	n := len(values)
	s := FieldSummary{domain.StatCount: float64(n)}
	if n == 0 {
		return s
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	s[domain.StatMean] = mean
	s[domain.StatMin] = floats.Min(sorted)
	s[domain.StatMax] = floats.Max(sorted)
	s[domain.StatQ1] = LinearQuantile(sorted, 0.25)
	s[domain.StatMedian] = LinearQuantile(sorted, 0.50)
	s[domain.StatQ3] = LinearQuantile(sorted, 0.75)
	if n > 1 {
		s[domain.StatStd] = std
		s[domain.StatSEM] = std / math.Sqrt(float64(n))
	}
	return s
}

// LinearQuantile interpolates between order statistics at h = (n-1)p.
// sorted must be ascending and non-empty.
func LinearQuantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

type populationKey struct {
	tag  string
	date string
}

// Summarize groups aggregated records by (experiment, date) and returns the combined
// descriptive and SEM table sorted by (experiment, date, statistic).
func (s *Summarizer) Summarize(ctx context.Context, agg *domain.AggregatedTable) *domain.StatisticsTable {
	groups := make(map[populationKey][]domain.AggregatedRecord)
	var order []populationKey
	for _, r := range agg.Records {
		k := populationKey{tag: r.Key.ExperimentTag, date: r.Key.Date}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	var descriptive, sem []domain.StatisticsRecord
	for _, k := range order {
		summaries := make(map[string]FieldSummary, len(agg.Fields))
		for _, field := range agg.Fields {
			var values []float64
			for _, r := range groups[k] {
				if v, ok := r.Values[field]; ok {
					values = append(values, v)
				}
			}
			summaries[field] = Describe(values)
		}

		for _, name := range domain.DescriptiveStatistics {
			descriptive = append(descriptive, statisticRow(k, name, agg.Fields, summaries))
		}
		sem = append(sem, statisticRow(k, domain.StatSEM, agg.Fields, summaries))
	}

	table := CombineStatistics(agg.Fields, descriptive, sem)

	s.logger.InfoContext(ctx, "computed statistics",
		slog.Int("populations", len(order)),
		slog.Int("rows", len(table.Records)),
		slog.Int("statistics", len(table.Statistics)))

	return table
}

func statisticRow(k populationKey, name string, fields []string, summaries map[string]FieldSummary) domain.StatisticsRecord {
	values := make(map[string]float64)
	for _, f := range fields {
		if v, ok := summaries[f][name]; ok {
			values[f] = v
		}
	}
	return domain.StatisticsRecord{
		Key:    domain.StatisticsKey{ExperimentTag: k.tag, Date: k.date, Statistic: name},
		Values: values,
	}
}

// CombineStatistics merges statistic row sets keeping the first row seen for each
// (experiment, date, statistic) key, sorted by key in byte order.
func CombineStatistics(fields []string, sets ...[]domain.StatisticsRecord) *domain.StatisticsTable {
	table := &domain.StatisticsTable{Fields: fields}
	seen := make(map[domain.StatisticsKey]bool)
	statNames := make(map[string]bool)
	for _, set := range sets {
		for _, r := range set {
			if seen[r.Key] {
				continue
			}
			seen[r.Key] = true
			statNames[r.Key.Statistic] = true
			table.Records = append(table.Records, r)
		}
	}

	sort.Slice(table.Records, func(i, j int) bool {
		a, b := table.Records[i].Key, table.Records[j].Key
		if a.ExperimentTag != b.ExperimentTag {
			return a.ExperimentTag < b.ExperimentTag
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Statistic < b.Statistic
	})

	for name := range statNames {
		table.Statistics = append(table.Statistics, name)
	}
	sort.Strings(table.Statistics)
	return table
}
