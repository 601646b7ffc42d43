package oracle

import (
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/trinity/core"
)

// LabeledSample pairs one model input with its expected outcome. Series
// feeds forecast models; Fields feeds classification and anomaly models.
// Only the expectation matching the model's type is consulted.
type LabeledSample struct {
	Series          []float64          `json:"series,omitempty"`
	Fields          map[string]float64 `json:"fields,omitempty"`
	ExpectedValue   float64            `json:"expected_value,omitempty"`
	ExpectedClass   string             `json:"expected_class,omitempty"`
	ExpectedAnomaly bool               `json:"expected_anomaly,omitempty"`
}

// SampleError records the outcome of one backtest sample.
type SampleError struct {
	Index    int     `json:"index"`
	Expected string  `json:"expected"`
	Actual   string  `json:"actual"`
	AbsError float64 `json:"abs_error,omitempty"` // forecast models only
	Correct  bool    `json:"correct"`
}

// ValidationReport summarizes a backtest run: accuracy over the labeled
// samples, per-sample errors and a combined performance score. It is meant
// for regression testing of model changes, not for online training.
type ValidationReport struct {
	ModelID  string        `json:"model_id"`
	Samples  int           `json:"samples"`
	Accuracy float64       `json:"accuracy"`
	Score    float64       `json:"score"` // accuracy weighted by mean confidence
	Errors   []SampleError `json:"errors"`
}

// forecast predictions within this relative error count as correct
const forecastTolerance = 0.10

// ValidateModel runs the named model over the labeled samples and reports
// accuracy, per-sample errors and a performance score. The latest accuracy
// is folded back into the model's ModelInfo for discovery.
func (o *Oracle) ValidateModel(modelID string, samples []LabeledSample) (*ValidationReport, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("validation requires labeled samples: %w", core.ErrInvalidInput)
	}
	m, err := o.lookup(modelID, "")
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{ModelID: m.info.ID, Samples: len(samples)}
	var correct int
	var confSum float64

	for i, s := range samples {
		se := SampleError{Index: i}
		switch m.info.Type {
		case ModelForecast:
			next, conf, _, ferr := forecastSeries(s.Series)
			if ferr != nil {
				se.Actual = ferr.Error()
				se.Expected = fmt.Sprintf("%.4f", s.ExpectedValue)
				report.Errors = append(report.Errors, se)
				continue
			}
			confSum += conf
			se.AbsError = math.Abs(next - s.ExpectedValue)
			se.Expected = fmt.Sprintf("%.4f", s.ExpectedValue)
			se.Actual = fmt.Sprintf("%.4f", next)
			scale := math.Max(math.Abs(s.ExpectedValue), 1e-9)
			se.Correct = se.AbsError/scale <= forecastTolerance

		case ModelClassification:
			class, _, conf, _, cerr := m.classifyRecord(s.Fields)
			if cerr != nil {
				se.Actual = cerr.Error()
				se.Expected = s.ExpectedClass
				report.Errors = append(report.Errors, se)
				continue
			}
			confSum += conf
			se.Expected = s.ExpectedClass
			se.Actual = class
			se.Correct = class == s.ExpectedClass

		case ModelAnomaly:
			isAnomaly, _, conf, _, aerr := m.detectAnomaly(s.Fields)
			if aerr != nil {
				se.Actual = aerr.Error()
				se.Expected = fmt.Sprintf("%t", s.ExpectedAnomaly)
				report.Errors = append(report.Errors, se)
				continue
			}
			confSum += conf
			se.Expected = fmt.Sprintf("%t", s.ExpectedAnomaly)
			se.Actual = fmt.Sprintf("%t", isAnomaly)
			se.Correct = isAnomaly == s.ExpectedAnomaly
		}

		if se.Correct {
			correct++
		} else {
			report.Errors = append(report.Errors, se)
		}
	}

	report.Accuracy = float64(correct) / float64(len(samples))
	report.Score = report.Accuracy * (confSum / float64(len(samples)))

	o.mu.Lock()
	if live, ok := o.models[m.info.ID]; ok {
		next := live.clone()
		next.info.Accuracy = report.Accuracy
		o.models[m.info.ID] = next
	}
	o.mu.Unlock()
	return report, nil
}

func sortModelInfos(infos []ModelInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
}
