package core

// RiskTolerance shapes how aggressive advisory output may be.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// SeriesInput asks a prediction agent to forecast the next value of a
// numeric sequence. Metric names the quantity being forecast so downstream
// consumers (e.g. the coordinator seeding a sentinel threshold) know which
// metric the estimate applies to. Model selects a registered model; empty
// selects the default forecaster.
type SeriesInput struct {
	Metric string    `json:"metric"`
	Values []float64 `json:"values"`
	Model  string    `json:"model,omitempty"`
}

func (SeriesInput) isInput() {}

// RecordInput asks a prediction agent to classify a structured numeric
// record or check it for anomalies, depending on the selected model's type.
type RecordInput struct {
	Fields map[string]float64 `json:"fields"`
	Model  string             `json:"model,omitempty"`
}

func (RecordInput) isInput() {}

// Snapshot is a flat metric-key to value mapping evaluated by a monitoring
// agent against every registered threshold whose key is present.
type Snapshot map[string]float64

func (Snapshot) isInput() {}

// Query is a free-form advisory question.
type Query string

func (Query) isInput() {}

// DecisionContext is the structured advisory input. When Alternatives and
// PriorityWeights are both present the sage runs a weighted multi-criteria
// analysis; otherwise it generates recommendations shaped by RiskTolerance
// and CurrentState.
type DecisionContext struct {
	Domain          string             `json:"domain"`
	Objective       string             `json:"objective"`
	CurrentState    map[string]any     `json:"current_state,omitempty"`
	RiskTolerance   RiskTolerance      `json:"risk_tolerance,omitempty"`
	Alternatives    []Alternative      `json:"alternatives,omitempty"`
	PriorityWeights map[string]float64 `json:"priority_weights,omitempty"`
	Budget          float64            `json:"budget,omitempty"`
	Timeline        string             `json:"timeline,omitempty"`
}

func (DecisionContext) isInput() {}

// CloneInput deep-copies a known input shape so recorded history stays
// stable when the caller mutates the original after Execute returns.
// Unrecognized implementations are returned as-is.
func CloneInput(in Input) Input {
	switch v := in.(type) {
	case SeriesInput:
		v.Values = append([]float64(nil), v.Values...)
		return v
	case *SeriesInput:
		return CloneInput(*v)
	case RecordInput:
		v.Fields = copyFloat64Map(v.Fields)
		return v
	case *RecordInput:
		return CloneInput(*v)
	case Snapshot:
		out := make(Snapshot, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case DecisionContext:
		if v.CurrentState != nil {
			state := make(map[string]any, len(v.CurrentState))
			for k, val := range v.CurrentState {
				state[k] = val
			}
			v.CurrentState = state
		}
		if v.Alternatives != nil {
			alts := make([]Alternative, len(v.Alternatives))
			for i, a := range v.Alternatives {
				a.Attributes = copyFloat64Map(a.Attributes)
				alts[i] = a
			}
			v.Alternatives = alts
		}
		v.PriorityWeights = copyFloat64Map(v.PriorityWeights)
		return v
	case *DecisionContext:
		return CloneInput(*v)
	default:
		return in
	}
}

func copyFloat64Map(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
