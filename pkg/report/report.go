package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/montanaflynn/stats"

	"github.com/tabsynth/tabsynth-go/pkg/tabular"
)

// maxTopCategories caps how many category counts a summary carries.
const maxTopCategories = 5

// CategoryCount is one categorical value and how often it occurs.
type CategoryCount struct {
	Value string
	Count int
}

// ColumnSummary describes the distribution of a single column. Numeric
// columns carry moment statistics; all others carry their most frequent
// categories.
type ColumnSummary struct {
	Name     string
	Count    int
	Distinct int
	Numeric  bool

	Min    float64
	Max    float64
	Mean   float64
	Median float64
	StdDev float64

	TopCategories []CategoryCount
}

// Summarize computes a ColumnSummary for every column of the table. A column
// is treated as numeric when every non-empty cell parses as a float and at
// least one cell is non-empty.
func Summarize(t *tabular.Table) ([]ColumnSummary, error) {
	summaries := make([]ColumnSummary, 0, t.NumColumns())
	for _, name := range t.Columns() {
		values, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		summary, err := summarizeColumn(name, values)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize column %q: %w", name, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func summarizeColumn(name string, values []string) (ColumnSummary, error) {
	summary := ColumnSummary{Name: name, Count: len(values)}

	distinct := make(map[string]int)
	var numbers stats.Float64Data
	numeric := true
	for _, v := range values {
		distinct[v]++
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			continue
		}
		numbers = append(numbers, f)
	}
	summary.Distinct = len(distinct)
	summary.Numeric = numeric && len(numbers) > 0

	if summary.Numeric {
		var err error
		if summary.Min, err = numbers.Min(); err != nil {
			return ColumnSummary{}, err
		}
		if summary.Max, err = numbers.Max(); err != nil {
			return ColumnSummary{}, err
		}
		if summary.Mean, err = numbers.Mean(); err != nil {
			return ColumnSummary{}, err
		}
		if summary.Median, err = numbers.Median(); err != nil {
			return ColumnSummary{}, err
		}
		if summary.StdDev, err = numbers.StandardDeviation(); err != nil {
			return ColumnSummary{}, err
		}
		return summary, nil
	}

	summary.TopCategories = topCategories(distinct, maxTopCategories)
	return summary, nil
}

// topCategories returns the n most frequent values, ties broken by value for
// stable output.
func topCategories(counts map[string]int, n int) []CategoryCount {
	all := make([]CategoryCount, 0, len(counts))
	for v, c := range counts {
		all = append(all, CategoryCount{Value: v, Count: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Value < all[j].Value
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// ColumnDrift measures how much a synthetic column's distribution deviates
// from the original. Numeric columns report moment deltas; categorical
// columns report the L1 distance between relative frequencies.
type ColumnDrift struct {
	Name        string
	Numeric     bool
	MeanDelta   float64
	StdDevDelta float64
	CategoryL1  float64
}

// Comparison is the result of comparing an original dataset against a
// synthetic one, column by column.
type Comparison struct {
	OriginalRows  int
	SyntheticRows int
	Columns       []ColumnDrift
}

// Compare measures per-column drift between the original and a synthetic
// table over their shared columns. It fails if the tables share no columns.
func Compare(original, synthetic *tabular.Table) (*Comparison, error) {
	origSummaries, err := Summarize(original)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		OriginalRows:  original.NumRows(),
		SyntheticRows: synthetic.NumRows(),
	}
	for _, origSummary := range origSummaries {
		if !synthetic.HasColumn(origSummary.Name) {
			continue
		}
		synValues, err := synthetic.Column(origSummary.Name)
		if err != nil {
			return nil, err
		}
		synSummary, err := summarizeColumn(origSummary.Name, synValues)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize synthetic column %q: %w", origSummary.Name, err)
		}

		drift := ColumnDrift{Name: origSummary.Name}
		if origSummary.Numeric && synSummary.Numeric {
			drift.Numeric = true
			drift.MeanDelta = math.Abs(origSummary.Mean - synSummary.Mean)
			drift.StdDevDelta = math.Abs(origSummary.StdDev - synSummary.StdDev)
		} else {
			origValues, err := original.Column(origSummary.Name)
			if err != nil {
				return nil, err
			}
			drift.CategoryL1 = categoryL1(origValues, synValues)
		}
		cmp.Columns = append(cmp.Columns, drift)
	}

	if len(cmp.Columns) == 0 {
		return nil, fmt.Errorf("tables share no columns to compare")
	}
	return cmp, nil
}

// categoryL1 computes the L1 distance between the relative category
// frequencies of two value sets. It ranges from 0 (identical distributions)
// to 2 (disjoint supports).
func categoryL1(a, b []string) float64 {
	freqA := relativeFrequencies(a)
	freqB := relativeFrequencies(b)

	var distance float64
	for v, pa := range freqA {
		distance += math.Abs(pa - freqB[v])
	}
	for v, pb := range freqB {
		if _, ok := freqA[v]; !ok {
			distance += pb
		}
	}
	return distance
}

func relativeFrequencies(values []string) map[string]float64 {
	freq := make(map[string]float64)
	if len(values) == 0 {
		return freq
	}
	for _, v := range values {
		freq[v]++
	}
	n := float64(len(values))
	for v := range freq {
		freq[v] /= n
	}
	return freq
}

// Render writes the comparison as an aligned text table.
func (c *Comparison) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "column\tkind\tmean delta\tstddev delta\tcategory L1\n")
	for _, col := range c.Columns {
		if col.Numeric {
			_, _ = fmt.Fprintf(tw, "%s\tnumeric\t%.4f\t%.4f\t-\n", col.Name, col.MeanDelta, col.StdDevDelta)
		} else {
			_, _ = fmt.Fprintf(tw, "%s\tcategorical\t-\t-\t%.4f\n", col.Name, col.CategoryL1)
		}
	}
	_, _ = fmt.Fprintf(tw, "\nrows: %d original, %d synthetic\n", c.OriginalRows, c.SyntheticRows)
	return tw.Flush()
}
