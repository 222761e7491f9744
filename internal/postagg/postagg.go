// Package postagg computes aggregates that are not expressible in SQL over
// the records of an executed statement.
package postagg

import (
	"fmt"
	"strconv"
	"strings"

	"starquery/internal/domain"
	"starquery/internal/result"
)

// DefaultWindowSize is used when an aggregate names no window size.
const DefaultWindowSize = 2

// Func reduces one window of values.
type Func func(values []float64) float64

// Calculators are the known post-aggregation functions by name.
var Calculators = map[string]Func{
	"sma": SMA,
	"wma": WMA,
}

// SMA is the simple moving average.
func SMA(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// WMA is the weighted moving average; the most recent value weighs most.
func WMA(values []float64) float64 {
	n := float64(len(values))
	var sum float64
	for i, v := range values {
		sum += float64(i+1) * v
	}
	return sum / (n * (n + 1) / 2)
}

// Spec describes one post-aggregated column.
type Spec struct {
	Function   string
	Source     string
	Target     string
	WindowSize int
	// Key labels split records into independent series, usually the keys
	// of the non-time drilldown levels.
	Key []string
}

// window keeps the last values of every series of one spec.
type window struct {
	spec   Spec
	fn     Func
	series map[string][]float64
}

func newWindow(spec Spec) (*window, error) {
	fn, ok := Calculators[strings.ToLower(spec.Function)]
	if !ok {
		return nil, domain.ErrModel("aggregate %q: unknown function %q", spec.Target, spec.Function)
	}
	if spec.WindowSize <= 0 {
		spec.WindowSize = DefaultWindowSize
	}
	return &window{spec: spec, fn: fn, series: make(map[string][]float64)}, nil
}

func (w *window) apply(rec result.Record) {
	key := seriesKey(rec, w.spec.Key)
	values := w.series[key]
	if v, ok := toFloat(rec[w.spec.Source]); ok {
		values = append(values, v)
		if len(values) > w.spec.WindowSize {
			values = values[len(values)-w.spec.WindowSize:]
		}
		w.series[key] = values
	}
	if len(values) == 0 {
		rec[w.spec.Target] = nil
		return
	}
	rec[w.spec.Target] = w.fn(values)
}

func seriesKey(rec result.Record, labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprint(rec[l])
	}
	return strings.Join(parts, "\x1f")
}

// Apply computes every spec over records in order, writing the targets
// into the records.
func Apply(records []result.Record, specs []Spec) error {
	windows := make([]*window, 0, len(specs))
	for _, s := range specs {
		w, err := newWindow(s)
		if err != nil {
			return err
		}
		windows = append(windows, w)
	}
	for _, rec := range records {
		for _, w := range windows {
			w.apply(rec)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
