package core

// Condition is the comparison operator of a threshold rule.
type Condition string

const (
	ConditionGT  Condition = "gt"
	ConditionGTE Condition = "gte"
	ConditionLT  Condition = "lt"
	ConditionLTE Condition = "lte"
	ConditionEQ  Condition = "eq"
	ConditionNEQ Condition = "neq"
)

// AlertLevel grades a raised alert. It mirrors the severity configured on
// the violated threshold.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Threshold is a named monitoring rule comparing a metric value against a
// condition/value pair. Thresholds are registered and replaced atomically as
// whole values; there is no partial update.
//
// An unrecognized Condition never crashes evaluation: the sentinel treats it
// as never-violated and logs a configuration warning, since a monitoring
// agent must remain available even with partially bad configuration.
type Threshold struct {
	Metric      string     `json:"metric" yaml:"metric"`
	Condition   Condition  `json:"condition" yaml:"condition"`
	Value       float64    `json:"value" yaml:"value"`
	Severity    AlertLevel `json:"severity" yaml:"severity"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// Violated reports whether v breaks the threshold. The second return is
// false when the condition is not recognized.
func (t Threshold) Violated(v float64) (violated, known bool) {
	switch t.Condition {
	case ConditionGT:
		return v > t.Value, true
	case ConditionGTE:
		return v >= t.Value, true
	case ConditionLT:
		return v < t.Value, true
	case ConditionLTE:
		return v <= t.Value, true
	case ConditionEQ:
		return v == t.Value, true
	case ConditionNEQ:
		return v != t.Value, true
	default:
		return false, false
	}
}
