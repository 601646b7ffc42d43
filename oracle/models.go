package oracle

import (
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/trinity/core"
)

// ModelType categorizes the behavior a registered model implements.
type ModelType string

const (
	// ModelForecast estimates the next value of a numeric series.
	ModelForecast ModelType = "forecast"
	// ModelClassification maps a numeric record onto a class with probability.
	ModelClassification ModelType = "classification"
	// ModelAnomaly flags records whose values fall outside learned ranges.
	ModelAnomaly ModelType = "anomaly"
)

// Built-in model identifiers registered by every Oracle.
const (
	DefaultForecastModel   = "trend-v1"
	DefaultClassifierModel = "bands-v1"
	DefaultAnomalyModel    = "range-v1"
)

// ModelNotFoundError reports an Execute or validation call referencing an
// unregistered model.
type ModelNotFoundError struct {
	Model string
}

// Error implements the error interface.
func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.Model)
}

// ModelInfo describes a registered model for discovery via Models().
type ModelInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     ModelType `json:"type"`
	Accuracy float64   `json:"accuracy"` // latest backtest accuracy, 0 if never validated
}

// ClassBand maps a score interval onto a class label. Bands are evaluated in
// order; the first band containing the score wins.
type ClassBand struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Baseline holds the learned normal range of one record field.
type Baseline struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// model is the internal registry entry. Parameters are private to the agent;
// external callers interact only through the Oracle's public methods. Once a
// model is visible in the registry it is never mutated: writers clone it,
// adjust the copy and swap it in under the registry lock, so evaluations may
// read a looked-up model without holding the lock.
type model struct {
	info      ModelInfo
	bands     []ClassBand         // classification models
	weights   map[string]float64  // classification feature weights, uniform if empty
	baselines map[string]Baseline // anomaly models
}

// clone returns a copy safe to mutate before being swapped into the registry.
func (m *model) clone() *model {
	c := &model{info: m.info, bands: m.bands}
	if len(m.weights) > 0 {
		c.weights = make(map[string]float64, len(m.weights))
		for k, v := range m.weights {
			c.weights[k] = v
		}
	}
	if m.baselines != nil {
		c.baselines = make(map[string]Baseline, len(m.baselines))
		for k, v := range m.baselines {
			c.baselines[k] = v
		}
	}
	return c
}

// anomaly decision boundary and severity bands in z-score units
const (
	anomalyBoundaryZ = 2.0
	anomalyHighZ     = 3.0
)

// forecastSeries fits a least-squares line over the series and extrapolates
// one step. Confidence scales inversely with the residual spread relative to
// the series magnitude, so regular (monotonic, low-variance) series score
// higher than noisy ones.
func forecastSeries(values []float64) (next, confidence float64, factors []core.Factor, err error) {
	n := len(values)
	if n < 2 {
		return 0, 0, nil, fmt.Errorf("forecast requires at least 2 points, got %d: %w", n, core.ErrInvalidInput)
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	var slope, intercept float64
	if denom != 0 {
		slope = (fn*sumXY - sumX*sumY) / denom
		intercept = (sumY - slope*sumX) / fn
	} else {
		intercept = sumY / fn
	}
	next = intercept + slope*fn

	// Residual spread relative to magnitude drives confidence.
	var ssr float64
	for i, v := range values {
		r := v - (intercept + slope*float64(i))
		ssr += r * r
	}
	residStd := math.Sqrt(ssr / fn)
	mean := sumY / fn
	scale := math.Abs(mean)
	if scale < 1e-9 {
		scale = 1
	}
	cv := residStd / scale
	confidence = clamp01(1 / (1 + 4*cv))

	factors = []core.Factor{
		{
			Name:        "trend",
			Importance:  math.Abs(slope) / (math.Abs(slope) + residStd + 1e-9),
			Direction:   direction(slope),
			Description: fmt.Sprintf("fitted slope %.4f per step", slope),
		},
		{
			Name:        "volatility",
			Importance:  clamp01(cv),
			Direction:   "negative",
			Description: fmt.Sprintf("residual spread %.4f against mean %.4f", residStd, mean),
		},
		{
			Name:        "sample_size",
			Importance:  clamp01(fn / (fn + 10)),
			Direction:   "positive",
			Description: fmt.Sprintf("%d observations", n),
		},
	}
	return next, confidence, factors, nil
}

// classifyRecord scores the record by (weighted) mean of its fields and maps
// the score onto the model's class bands. Probability reflects how deep in
// the winning band the score landed.
func (m *model) classifyRecord(fields map[string]float64) (class string, probability, confidence float64, factors []core.Factor, err error) {
	if len(fields) == 0 {
		return "", 0, 0, nil, fmt.Errorf("classification requires a non-empty record: %w", core.ErrInvalidInput)
	}

	var score, totalWeight float64
	names := sortedKeys(fields)
	for _, name := range names {
		w := 1.0
		if len(m.weights) > 0 {
			if mw, ok := m.weights[name]; ok {
				w = mw
			}
		}
		score += fields[name] * w
		totalWeight += w
	}
	if totalWeight > 0 {
		score /= totalWeight
	}

	band, ok := m.bandFor(score)
	if !ok {
		return "", 0, 0, nil, fmt.Errorf("score %.4f outside all class bands: %w", score, core.ErrInvalidInput)
	}
	class = band.Name

	width := band.Max - band.Min
	if width <= 0 {
		probability = 0.99
	} else {
		// Distance from the nearest band edge, normalized to half the width.
		margin := math.Min(score-band.Min, band.Max-score)
		probability = clamp01(0.5 + margin/width)
		if probability > 0.99 {
			probability = 0.99
		}
	}
	confidence = probability

	for _, name := range names {
		w := 1.0
		if len(m.weights) > 0 {
			if mw, ok := m.weights[name]; ok {
				w = mw
			}
		}
		factors = append(factors, core.Factor{
			Name:        name,
			Importance:  clamp01(w / math.Max(totalWeight, 1e-9)),
			Direction:   direction(fields[name] - score),
			Description: fmt.Sprintf("value %.4f, weight %.2f", fields[name], w),
		})
	}
	return class, probability, confidence, factors, nil
}

func (m *model) bandFor(score float64) (ClassBand, bool) {
	for _, b := range m.bands {
		if score >= b.Min && score < b.Max {
			return b, true
		}
	}
	// Open-ended top band: a score equal to the final Max still classifies.
	if n := len(m.bands); n > 0 && score >= m.bands[n-1].Min {
		return m.bands[n-1], true
	}
	return ClassBand{}, false
}

// detectAnomaly compares each baselined field against its learned range.
// The field with the largest z distance decides the outcome: beyond the
// decision boundary the record is anomalous, with severity escalating as the
// distance grows. Fields without a baseline are skipped.
func (m *model) detectAnomaly(fields map[string]float64) (isAnomaly bool, severity core.SeverityTier, confidence float64, factors []core.Factor, err error) {
	if len(fields) == 0 {
		return false, "", 0, nil, fmt.Errorf("anomaly check requires a non-empty record: %w", core.ErrInvalidInput)
	}

	var maxZ float64
	checked := 0
	for _, name := range sortedKeys(fields) {
		base, ok := m.baselines[name]
		if !ok || base.StdDev <= 0 {
			continue
		}
		checked++
		z := math.Abs(fields[name]-base.Mean) / base.StdDev
		if z > maxZ {
			maxZ = z
		}
		factors = append(factors, core.Factor{
			Name:        name,
			Importance:  clamp01(z / (z + anomalyBoundaryZ)),
			Direction:   direction(fields[name] - base.Mean),
			Description: fmt.Sprintf("%.2f standard deviations from mean %.4f", z, base.Mean),
		})
	}
	if checked == 0 {
		return false, "", 0, nil, fmt.Errorf("no baselined fields in record: %w", core.ErrInvalidInput)
	}

	isAnomaly = maxZ > anomalyBoundaryZ
	switch {
	case maxZ >= anomalyHighZ:
		severity = core.SeverityHigh
	case isAnomaly:
		severity = core.SeverityMedium
	default:
		severity = core.SeverityLow
	}

	// Distance from the decision boundary drives certainty either way.
	d := math.Abs(maxZ - anomalyBoundaryZ)
	confidence = clamp01(0.5 + 0.5*d/(d+2))
	return isAnomaly, severity, confidence, factors, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func direction(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "neutral"
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
