// Package coordinator wires the prediction, monitoring, and advisory agents
// together without any of them referencing each other directly. It subscribes
// to the substrate event bus and routes copies of event data into the
// downstream agents, with a circuit breaker per downstream so a failing agent
// is isolated instead of halting the others.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hupe1980/trinity/core"
	"github.com/hupe1980/trinity/logging"
)

const (
	// DefaultForecastConfidence is the minimum Oracle confidence at which a
	// forecast seeds a monitoring threshold.
	DefaultForecastConfidence = 0.8
	// DefaultThresholdFactor scales a forecast value into the seeded
	// threshold bound.
	DefaultThresholdFactor = 0.9

	defaultAdviceTimeout = 15 * time.Second
	defaultBusBuffer     = 64

	breakerMaxFailures uint32 = 5
	breakerTimeout            = 30 * time.Second
)

// ThresholdSetter is the slice of the monitoring agent the coordinator
// needs: seeding thresholds derived from forecasts.
type ThresholdSetter interface {
	SetThreshold(name string, t core.Threshold) error
}

// Advisor is the slice of the advisory agent the coordinator needs:
// obtaining guidance for an alert.
type Advisor interface {
	Execute(ctx context.Context, input core.Input) (*core.Result, error)
}

// Stats counts routing outcomes since Start.
type Stats struct {
	PredictionsRouted int `json:"predictions_routed"`
	AlertsRouted      int `json:"alerts_routed"`
	RoutingFailures   int `json:"routing_failures"`
}

// Options configures a Coordinator.
type Options struct {
	Logger logging.Logger
	// ForecastConfidence gates which predictions seed thresholds.
	ForecastConfidence float64
	// ThresholdFactor scales the forecast value into the threshold bound.
	ThresholdFactor float64
	// AdviceTimeout bounds each advisory call made on behalf of an alert.
	AdviceTimeout time.Duration
	// BusBuffer sizes the event subscription channel.
	BusBuffer int
}

// Coordinator routes events between agents. Construct with New, then Start;
// Stop unsubscribes and waits for the routing loop to drain.
type Coordinator struct {
	bus     *core.Bus
	monitor ThresholdSetter
	advisor Advisor
	logger  logging.Logger
	opts    Options

	monitorBreaker *gobreaker.CircuitBreaker[struct{}]
	advisorBreaker *gobreaker.CircuitBreaker[*core.Result]

	mu      sync.Mutex
	stats   Stats
	started bool
	cancel  func()
	wg      sync.WaitGroup
}

// New constructs a Coordinator over the given bus and agent handles. The
// handles are already-constructed agents injected by the caller; the
// coordinator never builds or owns them.
func New(bus *core.Bus, monitor ThresholdSetter, advisor Advisor, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Logger:             logging.NoOpLogger{},
		ForecastConfidence: DefaultForecastConfidence,
		ThresholdFactor:    DefaultThresholdFactor,
		AdviceTimeout:      defaultAdviceTimeout,
		BusBuffer:          defaultBusBuffer,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ForecastConfidence <= 0 || opts.ForecastConfidence > 1 {
		opts.ForecastConfidence = DefaultForecastConfidence
	}
	if opts.ThresholdFactor <= 0 {
		opts.ThresholdFactor = DefaultThresholdFactor
	}
	if opts.AdviceTimeout <= 0 {
		opts.AdviceTimeout = defaultAdviceTimeout
	}

	c := &Coordinator{
		bus:     bus,
		monitor: monitor,
		advisor: advisor,
		logger:  opts.Logger,
		opts:    opts,
	}
	c.monitorBreaker = newBreaker[struct{}]("monitor", opts.Logger)
	c.advisorBreaker = newBreaker[*core.Result]("advisor", opts.Logger)
	return c
}

func newBreaker[T any](name string, logger logging.Logger) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("routing circuit state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Start subscribes to the bus and launches the routing loop. It is a no-op
// when already started. The loop stops when ctx is cancelled, Stop is
// called, or the bus closes.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	events, unsubscribe := c.bus.Subscribe(c.opts.BusBuffer,
		core.EventPredictionGenerated,
		core.EventAlertRaised,
		core.EventRecommendationGenerated,
	)

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = func() {
		cancel()
		unsubscribe()
	}
	c.started = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				c.route(loopCtx, ev)
			}
		}
	}()
	return nil
}

// Stop terminates the routing loop and waits for it to exit. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

// Stats returns a copy of the routing counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Coordinator) route(ctx context.Context, ev core.Event) {
	switch payload := ev.Payload.(type) {
	case core.PredictionPayload:
		c.routePrediction(ev.Source, payload.Prediction)
	case core.AlertPayload:
		if !payload.Resolved {
			c.routeAlert(ctx, ev.Source, payload.Alert)
		}
	case core.RecommendationPayload:
		c.logger.Info("recommendations available",
			"source", ev.Source,
			"count", len(payload.Recommendations),
		)
	}
}

// routePrediction seeds a monitoring threshold from a confident forecast:
// the threshold bound is the forecast value scaled by the threshold factor,
// so the monitor warns before the predicted level is reached.
func (c *Coordinator) routePrediction(source string, p core.Prediction) {
	if p.Metric == "" || p.Confidence < c.opts.ForecastConfidence {
		return
	}

	name := "forecast:" + p.Metric
	threshold := core.Threshold{
		Metric:      p.Metric,
		Condition:   core.ConditionGT,
		Value:       p.Value * c.opts.ThresholdFactor,
		Severity:    core.AlertWarning,
		Description: fmt.Sprintf("seeded from %s forecast of %.2f (confidence %.2f)", source, p.Value, p.Confidence),
	}

	_, err := c.monitorBreaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.monitor.SetThreshold(name, threshold)
	})
	if err != nil {
		c.recordFailure()
		c.logger.Error("failed to seed threshold from forecast", "threshold", name, "error", err)
		return
	}

	c.mu.Lock()
	c.stats.PredictionsRouted++
	c.mu.Unlock()
	c.logger.Info("seeded threshold from forecast",
		"threshold", name,
		"metric", p.Metric,
		"bound", threshold.Value,
		"confidence", p.Confidence,
	)
}

// routeAlert packages a raised alert into an advisory decision context. The
// context is built fresh from copied alert fields, so the advisor never sees
// the monitor's internal state.
func (c *Coordinator) routeAlert(ctx context.Context, source string, alert core.Alert) {
	risk := core.RiskMedium
	if alert.Level == core.AlertCritical {
		risk = core.RiskLow
	}

	dc := core.DecisionContext{
		Domain:    "operations",
		Objective: fmt.Sprintf("remediate %s alert on %s", alert.Level, alert.Metric),
		CurrentState: map[string]any{
			"metric":    alert.Metric,
			"value":     alert.Value,
			"threshold": alert.ThresholdName,
			"level":     string(alert.Level),
			"raised_at": alert.RaisedAt,
			"source":    source,
		},
		RiskTolerance: risk,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.AdviceTimeout)
	defer cancel()

	_, err := c.advisorBreaker.Execute(func() (*core.Result, error) {
		return c.advisor.Execute(callCtx, dc)
	})
	if err != nil {
		c.recordFailure()
		c.logger.Error("advisory routing failed", "alert", alert.ID, "metric", alert.Metric, "error", err)
		return
	}

	c.mu.Lock()
	c.stats.AlertsRouted++
	c.mu.Unlock()
	c.logger.Info("routed alert to advisor", "alert", alert.ID, "metric", alert.Metric, "risk", string(risk))
}

func (c *Coordinator) recordFailure() {
	c.mu.Lock()
	c.stats.RoutingFailures++
	c.mu.Unlock()
}
