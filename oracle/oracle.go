package oracle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hupe1980/trinity/agent"
	"github.com/hupe1980/trinity/core"
)

// Oracle is the prediction agent. It hosts a registry of named models and
// produces forecasts, classifications and anomaly flags with confidence
// scores, tracking a bounded prediction history alongside the substrate's
// execution history.
//
// The model registry is agent-private: external callers read and mutate it
// only through RegisterModel, TrainBaseline and Models.
type Oracle struct {
	*agent.Base

	mu      sync.RWMutex
	models  map[string]*model
	history []core.Prediction // completion order, oldest first
}

var _ core.Agent = (*Oracle)(nil)

// New constructs an Oracle from the descriptor with the built-in default
// models registered: a trend forecaster, a band classifier and a range-based
// anomaly detector, one usable model per supported behavior.
func New(desc core.AgentDescriptor, optFns ...func(o *agent.Options)) (*Oracle, error) {
	base, err := agent.NewBase(desc, optFns...)
	if err != nil {
		return nil, err
	}
	o := &Oracle{Base: base, models: map[string]*model{}}

	o.models[DefaultForecastModel] = &model{
		info: ModelInfo{ID: DefaultForecastModel, Name: "Linear Trend Forecaster", Type: ModelForecast},
	}
	o.models[DefaultClassifierModel] = &model{
		info: ModelInfo{ID: DefaultClassifierModel, Name: "Score Band Classifier", Type: ModelClassification},
		bands: []ClassBand{
			{Name: "low", Min: 0, Max: 33},
			{Name: "medium", Min: 33, Max: 66},
			{Name: "high", Min: 66, Max: 100},
		},
	}
	o.models[DefaultAnomalyModel] = &model{
		info:      ModelInfo{ID: DefaultAnomalyModel, Name: "Range Anomaly Detector", Type: ModelAnomaly},
		baselines: map[string]Baseline{},
	}
	return o, nil
}

// Execute runs one prediction. The input shape selects the behavior:
//   - core.SeriesInput: forecast the next value (default or named forecast model)
//   - core.RecordInput: classify or check for anomalies depending on the
//     selected model's type (default anomaly model when unnamed)
//
// The returned Result carries a *core.Prediction output. Successful
// predictions are appended to the prediction history and published on the
// bus as prediction.generated events.
func (o *Oracle) Execute(ctx context.Context, input core.Input) (*core.Result, error) {
	return o.Run(ctx, input, func(ctx context.Context) (any, error) {
		var (
			pred *core.Prediction
			err  error
		)
		switch in := input.(type) {
		case core.SeriesInput:
			pred, err = o.forecast(in)
		case core.RecordInput:
			pred, err = o.analyzeRecord(in)
		case *core.SeriesInput:
			pred, err = o.forecast(*in)
		case *core.RecordInput:
			pred, err = o.analyzeRecord(*in)
		default:
			return nil, fmt.Errorf("oracle cannot process %T: %w", input, core.ErrInvalidInput)
		}
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		o.appendPrediction(*pred)
		o.SetState(map[string]any{"last_prediction": pred.Clone()})
		o.Publish(core.PredictionPayload{Prediction: pred.Clone()})
		return pred, nil
	})
}

func (o *Oracle) forecast(in core.SeriesInput) (*core.Prediction, error) {
	m, err := o.lookup(in.Model, DefaultForecastModel)
	if err != nil {
		return nil, err
	}
	if m.info.Type != ModelForecast {
		return nil, fmt.Errorf("model %q is %s, series input requires a forecast model: %w",
			m.info.ID, m.info.Type, core.ErrInvalidInput)
	}

	next, confidence, factors, err := forecastSeries(in.Values)
	if err != nil {
		return nil, err
	}
	return &core.Prediction{
		Model:      m.info.ID,
		Metric:     in.Metric,
		Value:      next,
		Confidence: confidence,
		Factors:    factors,
		Timestamp:  time.Now().UTC(),
	}, nil
}

func (o *Oracle) analyzeRecord(in core.RecordInput) (*core.Prediction, error) {
	m, err := o.lookup(in.Model, DefaultAnomalyModel)
	if err != nil {
		return nil, err
	}

	switch m.info.Type {
	case ModelClassification:
		class, probability, confidence, factors, err := m.classifyRecord(in.Fields)
		if err != nil {
			return nil, err
		}
		return &core.Prediction{
			Model:       m.info.ID,
			Class:       class,
			Probability: probability,
			Confidence:  confidence,
			Factors:     factors,
			Timestamp:   time.Now().UTC(),
		}, nil

	case ModelAnomaly:
		isAnomaly, severity, confidence, factors, err := m.detectAnomaly(in.Fields)
		if err != nil {
			return nil, err
		}
		return &core.Prediction{
			Model:      m.info.ID,
			IsAnomaly:  isAnomaly,
			Severity:   severity,
			Confidence: confidence,
			Factors:    factors,
			Timestamp:  time.Now().UTC(),
		}, nil

	default:
		return nil, fmt.Errorf("model %q is %s, record input requires a classification or anomaly model: %w",
			m.info.ID, m.info.Type, core.ErrInvalidInput)
	}
}

// lookup resolves a model by name under the read lock, falling back to the
// given default when name is empty. Registry models are immutable once
// published, so the returned model may be evaluated without the lock.
func (o *Oracle) lookup(name, fallback string) (*model, error) {
	if name == "" {
		name = fallback
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.models[name]
	if !ok {
		return nil, &ModelNotFoundError{Model: name}
	}
	return m, nil
}

// RegisterModel adds or atomically replaces a model definition. Bands apply
// to classification models, weights to classification scoring; both are
// optional.
func (o *Oracle) RegisterModel(info ModelInfo, bands []ClassBand, weights map[string]float64) error {
	if info.ID == "" {
		return fmt.Errorf("model id required: %w", core.ErrInvalidInput)
	}
	switch info.Type {
	case ModelForecast, ModelClassification, ModelAnomaly:
	default:
		return fmt.Errorf("unknown model type %q: %w", info.Type, core.ErrInvalidInput)
	}

	m := &model{info: info, bands: append([]ClassBand(nil), bands...)}
	if len(weights) > 0 {
		m.weights = make(map[string]float64, len(weights))
		for k, v := range weights {
			m.weights[k] = v
		}
	}
	if info.Type == ModelAnomaly {
		m.baselines = map[string]Baseline{}
	}

	o.mu.Lock()
	o.models[info.ID] = m
	o.mu.Unlock()
	return nil
}

// TrainBaseline establishes the normal range of each field of an anomaly
// model from representative samples. Existing baselines for the same fields
// are replaced.
func (o *Oracle) TrainBaseline(modelID string, samples []map[string]float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("baseline training requires samples: %w", core.ErrInvalidInput)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.models[modelID]
	if !ok {
		return &ModelNotFoundError{Model: modelID}
	}
	if m.info.Type != ModelAnomaly {
		return fmt.Errorf("model %q is %s, baselines apply to anomaly models: %w",
			modelID, m.info.Type, core.ErrInvalidInput)
	}

	// In-flight evaluations may still be reading m, so train into a copy and
	// swap it in rather than mutating the published model.
	next := m.clone()
	if next.baselines == nil {
		next.baselines = map[string]Baseline{}
	}

	sums := map[string]float64{}
	counts := map[string]float64{}
	for _, s := range samples {
		for k, v := range s {
			sums[k] += v
			counts[k]++
		}
	}
	for k := range sums {
		mean := sums[k] / counts[k]
		var ss float64
		for _, s := range samples {
			if v, ok := s[k]; ok {
				d := v - mean
				ss += d * d
			}
		}
		std := 0.0
		if counts[k] > 1 {
			std = math.Sqrt(ss / counts[k])
		}
		if std <= 0 {
			// Degenerate constant baseline; keep a small band so any
			// departure registers.
			std = math.Max(1e-6, 0.01*math.Abs(mean))
		}
		next.baselines[k] = Baseline{Mean: mean, StdDev: std}
	}
	o.models[modelID] = next
	return nil
}

// Models returns descriptors for every registered model, sorted by ID.
func (o *Oracle) Models() []ModelInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]ModelInfo, 0, len(o.models))
	for _, m := range o.models {
		out = append(out, m.info)
	}
	sortModelInfos(out)
	return out
}

// PredictionHistory returns up to limit predictions, most recent first.
func (o *Oracle) PredictionHistory(limit int) []core.Prediction {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := len(o.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.Prediction, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, o.history[i].Clone())
	}
	return out
}

func (o *Oracle) appendPrediction(p core.Prediction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, p)
	if over := len(o.history) - o.Retention(); over > 0 {
		o.history = o.history[over:]
	}
}
