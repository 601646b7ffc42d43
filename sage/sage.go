package sage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/trinity/agent"
	"github.com/hupe1980/trinity/core"
	"github.com/hupe1980/trinity/model"
)

// Advice is the Execute output: the ranked recommendations plus aggregate
// metadata. Every recommendation carries an action, a description, a
// confidence in (0,1] and an impact from the fixed tier set, regardless of
// whether the input was a free-form query or a structured context.
type Advice struct {
	Recommendations []core.Recommendation `json:"recommendations"`
	Confidence      float64               `json:"confidence"` // aggregate mean
	RiskLevel       core.RiskTolerance    `json:"risk_level"`
	DecisionMatrix  *core.DecisionMatrix  `json:"decision_matrix,omitempty"`
}

// clone returns an independent copy so agent state and the Execute result
// never share mutable structures.
func (a *Advice) clone() *Advice {
	c := *a
	c.Recommendations = append([]core.Recommendation(nil), a.Recommendations...)
	if a.DecisionMatrix != nil {
		m := core.DecisionMatrix{
			Ranking: append([]core.RankedAlternative(nil), a.DecisionMatrix.Ranking...),
		}
		if a.DecisionMatrix.Weights != nil {
			m.Weights = make(map[string]float64, len(a.DecisionMatrix.Weights))
			for k, v := range a.DecisionMatrix.Weights {
				m.Weights[k] = v
			}
		}
		c.DecisionMatrix = &m
	}
	return &c
}

// Sage is the advisory agent. The knowledge base and recommendation history
// are agent-private; external callers reach them only through the public
// methods.
type Sage struct {
	*agent.Base

	mu        sync.RWMutex
	knowledge map[string]map[string]any
	history   []core.Recommendation
	llm       model.Model
}

var _ core.Agent = (*Sage)(nil)

// New constructs a Sage from the descriptor with an empty knowledge base.
func New(desc core.AgentDescriptor, optFns ...func(o *agent.Options)) (*Sage, error) {
	base, err := agent.NewBase(desc, optFns...)
	if err != nil {
		return nil, err
	}
	return &Sage{Base: base, knowledge: map[string]map[string]any{}}, nil
}

// SetModel configures an optional language model consulted for reasoning
// text on free-form queries. Without one the built-in heuristic generator is
// used exclusively; model failures fall back to it too.
func (s *Sage) SetModel(m model.Model) {
	s.mu.Lock()
	s.llm = m
	s.mu.Unlock()
}

// Execute produces advice. The input shape selects the path:
//   - core.Query: topic-matched recommendations with reasoning text
//   - core.DecisionContext with alternatives + priority weights: weighted
//     multi-criteria analysis exposing the decision matrix
//   - core.DecisionContext otherwise: recommendations shaped by the risk
//     tolerance and current state
//
// The returned Result carries an *Advice output. Recommendations are
// appended to history and published as recommendation.generated events.
func (s *Sage) Execute(ctx context.Context, input core.Input) (*core.Result, error) {
	return s.Run(ctx, input, func(ctx context.Context) (any, error) {
		var (
			advice *Advice
			err    error
		)
		switch in := input.(type) {
		case core.Query:
			advice, err = s.adviseQuery(ctx, string(in))
		case core.DecisionContext:
			advice, err = s.adviseContext(in)
		case *core.DecisionContext:
			advice, err = s.adviseContext(*in)
		default:
			return nil, fmt.Errorf("sage cannot process %T: %w", input, core.ErrInvalidInput)
		}
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.appendHistory(advice.Recommendations)
		s.SetState(map[string]any{"last_advice": advice.clone()})
		s.Publish(core.RecommendationPayload{Recommendations: append([]core.Recommendation(nil), advice.Recommendations...)})
		return advice, nil
	})
}

func (s *Sage) adviseQuery(ctx context.Context, query string) (*Advice, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", core.ErrInvalidInput)
	}

	recs := topicRecommendations(query)

	// A configured model enriches the top recommendation's reasoning; its
	// failure degrades to the heuristic text, it never fails the call.
	s.mu.RLock()
	llm := s.llm
	s.mu.RUnlock()
	if llm != nil && len(recs) > 0 {
		resp, err := llm.Complete(ctx, model.Request{
			System:    "You are an operations advisor. Answer in two sentences.",
			Prompt:    query,
			MaxTokens: 256,
		})
		if err != nil {
			s.Logger().Warn("advisory model unavailable, using heuristic reasoning", "error", err)
		} else if resp.Text != "" {
			recs[0].Reasoning = resp.Text
		}
	}

	return s.finalize(recs, nil, core.RiskMedium), nil
}

func (s *Sage) adviseContext(dc core.DecisionContext) (*Advice, error) {
	if dc.Objective == "" && len(dc.Alternatives) == 0 {
		return nil, fmt.Errorf("decision context requires an objective or alternatives: %w", core.ErrInvalidInput)
	}

	if len(dc.Alternatives) > 0 && len(dc.PriorityWeights) > 0 {
		matrix, err := Analyze(dc.Alternatives, dc.PriorityWeights)
		if err != nil {
			return nil, err
		}
		top := matrix.Ranking[0]
		margin := 1.0
		if len(matrix.Ranking) > 1 {
			margin = top.Score - matrix.Ranking[1].Score
		}
		rec := core.Recommendation{
			Action:      fmt.Sprintf("adopt %s", top.Name),
			Description: fmt.Sprintf("%s ranks first of %d alternatives by weighted multi-criteria score", top.Name, len(matrix.Ranking)),
			Confidence:  clampConfidence(0.6 + 0.4*margin),
			Impact:      impactForRisk(dc.RiskTolerance),
			Reasoning: fmt.Sprintf("weighted score %.4f across %d criteria; margin %.4f over the runner-up",
				top.Score, len(matrix.Weights), margin),
			Timestamp: time.Now().UTC(),
		}
		return s.finalize([]core.Recommendation{rec}, matrix, dc.RiskTolerance), nil
	}

	recs := s.riskShaped(dc)
	return s.finalize(recs, nil, dc.RiskTolerance), nil
}

// riskShaped generates recommendations influenced by risk tolerance: low
// biases toward lower-impact, higher-confidence actions; high permits
// higher-impact, lower-certainty ones. Known domain knowledge nudges
// confidence upward.
func (s *Sage) riskShaped(dc core.DecisionContext) []core.Recommendation {
	now := time.Now().UTC()
	bump := 0.0
	if _, ok := s.GetKnowledge(dc.Domain); ok {
		bump = 0.1
	}

	var recs []core.Recommendation
	switch dc.RiskTolerance {
	case core.RiskLow:
		recs = []core.Recommendation{
			{
				Action:      "stabilize current operations",
				Description: fmt.Sprintf("harden the existing path toward %q before structural changes", dc.Objective),
				Confidence:  clampConfidence(0.85 + bump),
				Impact:      core.ImpactLow,
			},
			{
				Action:      "run a limited pilot",
				Description: "validate the objective against a small, reversible slice of the system",
				Confidence:  clampConfidence(0.75 + bump),
				Impact:      core.ImpactMedium,
			},
		}
	case core.RiskHigh:
		recs = []core.Recommendation{
			{
				Action:      "pursue the objective aggressively",
				Description: fmt.Sprintf("commit resources to %q ahead of full validation", dc.Objective),
				Confidence:  clampConfidence(0.55 + bump),
				Impact:      core.ImpactHigh,
			},
			{
				Action:      "restructure around the objective",
				Description: "accept short-term disruption for the larger expected payoff",
				Confidence:  clampConfidence(0.45 + bump),
				Impact:      core.ImpactCritical,
			},
		}
	default:
		recs = []core.Recommendation{
			{
				Action:      "proceed incrementally",
				Description: fmt.Sprintf("advance %q in measured stages with checkpoints", dc.Objective),
				Confidence:  clampConfidence(0.7 + bump),
				Impact:      core.ImpactMedium,
			},
			{
				Action:      "prepare a rollback path",
				Description: "document recovery steps before each stage lands",
				Confidence:  clampConfidence(0.8 + bump),
				Impact:      core.ImpactLow,
			},
		}
	}

	if dc.Budget > 0 {
		recs = append(recs, core.Recommendation{
			Action:      "reserve contingency budget",
			Description: fmt.Sprintf("hold back a share of the %.0f budget for unplanned work", dc.Budget),
			Confidence:  clampConfidence(0.9),
			Impact:      core.ImpactLow,
		})
	}
	for i := range recs {
		recs[i].Timestamp = now
		if recs[i].Reasoning == "" {
			recs[i].Reasoning = fmt.Sprintf("derived from objective %q with %s risk tolerance", dc.Objective, riskOrDefault(dc.RiskTolerance))
		}
	}
	return recs
}

func (s *Sage) finalize(recs []core.Recommendation, matrix *core.DecisionMatrix, risk core.RiskTolerance) *Advice {
	var sum float64
	for i := range recs {
		recs[i].Confidence = clampConfidence(recs[i].Confidence)
		if recs[i].Impact == "" {
			recs[i].Impact = core.ImpactMedium
		}
		if recs[i].Timestamp.IsZero() {
			recs[i].Timestamp = time.Now().UTC()
		}
		sum += recs[i].Confidence
	}
	advice := &Advice{
		Recommendations: recs,
		RiskLevel:       riskOrDefault(risk),
		DecisionMatrix:  matrix,
	}
	if len(recs) > 0 {
		advice.Confidence = sum / float64(len(recs))
	}
	return advice
}

// RecommendationHistory returns up to limit recommendations, most recent
// first.
func (s *Sage) RecommendationHistory(limit int) []core.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.Recommendation, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

func (s *Sage) appendHistory(recs []core.Recommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, recs...)
	if over := len(s.history) - s.Retention(); over > 0 {
		s.history = s.history[over:]
	}
}

// topicRecommendations matches the query against a small topic catalog so
// free-form questions still yield topic-relevant, well-formed advice.
func topicRecommendations(query string) []core.Recommendation {
	q := strings.ToLower(query)
	now := time.Now().UTC()

	mk := func(action, desc string, conf float64, impact core.ImpactTier) core.Recommendation {
		return core.Recommendation{
			Action:      action,
			Description: desc,
			Confidence:  clampConfidence(conf),
			Impact:      impact,
			Reasoning:   fmt.Sprintf("matched advisory topic for query %q", query),
			Timestamp:   now,
		}
	}

	switch {
	case containsAny(q, "performance", "latency", "slow", "throughput"):
		return []core.Recommendation{
			mk("profile the hot path", "measure before changing; capture a baseline profile under representative load", 0.85, core.ImpactLow),
			mk("add caching at the bottleneck", "cache the most expensive repeated computation identified by the profile", 0.65, core.ImpactMedium),
		}
	case containsAny(q, "cost", "budget", "spend", "expense"):
		return []core.Recommendation{
			mk("audit recurring spend", "rank cost centers by monthly trend and flag the top movers", 0.8, core.ImpactLow),
			mk("rightsize over-provisioned capacity", "downscale resources idle below 20% utilization", 0.7, core.ImpactMedium),
		}
	case containsAny(q, "alert", "outage", "incident", "reliability", "error"):
		return []core.Recommendation{
			mk("review alert thresholds", "tighten thresholds around the violating metric and add a warning tier below critical", 0.75, core.ImpactMedium),
			mk("add automated remediation", "script the most frequent manual recovery step", 0.6, core.ImpactHigh),
		}
	case containsAny(q, "security", "vulnerability", "breach", "access"):
		return []core.Recommendation{
			mk("rotate exposed credentials", "invalidate and reissue any credential touched by the finding", 0.9, core.ImpactHigh),
			mk("tighten least-privilege scopes", "reduce each role to the permissions exercised in the last 90 days", 0.7, core.ImpactMedium),
		}
	case containsAny(q, "scale", "growth", "capacity", "expand"):
		return []core.Recommendation{
			mk("load-test the projected peak", "validate headroom at 2x the forecast demand", 0.8, core.ImpactMedium),
			mk("introduce horizontal scaling", "shard or replicate the component closest to saturation", 0.55, core.ImpactHigh),
		}
	default:
		return []core.Recommendation{
			mk("gather more context", "collect current metrics and constraints before committing to a direction", 0.6, core.ImpactLow),
			mk("define success criteria", "agree on measurable outcomes so options can be compared", 0.7, core.ImpactLow),
		}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func impactForRisk(r core.RiskTolerance) core.ImpactTier {
	switch r {
	case core.RiskHigh:
		return core.ImpactHigh
	case core.RiskLow:
		return core.ImpactLow
	default:
		return core.ImpactMedium
	}
}

func riskOrDefault(r core.RiskTolerance) core.RiskTolerance {
	if r == "" {
		return core.RiskMedium
	}
	return r
}

// clampConfidence bounds a confidence into (0,1] so the recommendation
// invariant holds even for degenerate inputs.
func clampConfidence(v float64) float64 {
	if v <= 0 {
		return 0.05
	}
	if v > 1 {
		return 1
	}
	return v
}
