// Package dispatch runs phase activities across a bounded, rotating subset
// of the population with bounded concurrency, adaptive throttling backoff
// and a local fallback when the decision oracle degrades.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-agent-sim/internal/agent"
	"solana-agent-sim/internal/amm"
	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/observability"
	"solana-agent-sim/internal/oracle"
	"solana-agent-sim/internal/storage"
)

// Activity selects which instance action a phase dispatch invokes.
type Activity string

const (
	ActivityAnalysis Activity = "analysis"
	ActivitySocial   Activity = "social"
	ActivityTrading  Activity = "trading"
)

const (
	// DefaultConcurrency caps in-flight dispatch units.
	DefaultConcurrency = 8

	// DefaultUnitTimeout bounds one unit's wall clock, oracle call and any
	// downstream swap included.
	DefaultUnitTimeout = 90 * time.Second

	// DefaultSlippageTolerancePct is applied to dispatched trades.
	DefaultSlippageTolerancePct = 5.0

	// recentMessageCount is how much social context a phase carries.
	recentMessageCount = 20
)

// PhaseResult aggregates the outcome of one phase dispatch.
type PhaseResult struct {
	Activity       Activity `json:"activity"`
	Dispatched     int      `json:"dispatched"`
	Succeeded      int      `json:"succeeded"`
	Failed         int      `json:"failed"`
	RateLimited    int      `json:"rate_limited"`
	Fallbacks      int      `json:"fallbacks"`
	TradesExecuted int      `json:"trades_executed"`
	MessagesPosted int      `json:"messages_posted"`
}

// Options configures Dispatcher.
type Options struct {
	Cache        *agent.Cache
	Window       *Window
	Backoff      *Backoff
	Engine       *amm.Engine
	Participants storage.ParticipantStore
	Messages     storage.MessageStore

	// FallbackSeed derives deterministic local decisions when the oracle
	// is unavailable or declines.
	FallbackSeed int64

	Concurrency          int
	UnitTimeout          time.Duration
	SlippageTolerancePct float64
	Verbose              bool
}

// Dispatcher fans one phase activity out over the active window.
type Dispatcher struct {
	cache        *agent.Cache
	window       *Window
	backoff      *Backoff
	engine       *amm.Engine
	participants storage.ParticipantStore
	messages     storage.MessageStore

	fallbackSeed         int64
	concurrency          int
	unitTimeout          time.Duration
	slippageTolerancePct float64
	verbose              bool
	logger               *log.Logger

	mu           sync.Mutex
	lastActivity time.Time

	now func() time.Time
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = DefaultUnitTimeout
	}
	if opts.SlippageTolerancePct <= 0 {
		opts.SlippageTolerancePct = DefaultSlippageTolerancePct
	}

	return &Dispatcher{
		cache:                opts.Cache,
		window:               opts.Window,
		backoff:              opts.Backoff,
		engine:               opts.Engine,
		participants:         opts.Participants,
		messages:             opts.Messages,
		fallbackSeed:         opts.FallbackSeed,
		concurrency:          opts.Concurrency,
		unitTimeout:          opts.UnitTimeout,
		slippageTolerancePct: opts.SlippageTolerancePct,
		verbose:              opts.Verbose,
		logger:               log.New(os.Stdout, "[dispatch] ", log.LstdFlags),
		now:                  time.Now,
	}
}

// phaseContext is the per-phase shared input: one market snapshot and, for
// social phases, one batch of recent messages with aggregate sentiment.
// Computed once per phase, not once per participant.
type phaseContext struct {
	snapshot *domain.MarketSnapshot
	social   *domain.SocialContext
}

// RunPhase dispatches one activity over a window prefix of batchSize. One
// participant's failure never aborts the batch; the error return covers only
// phase-level setup (window refill, snapshot).
func (d *Dispatcher) RunPhase(ctx context.Context, activity Activity, batchSize int) (*PhaseResult, error) {
	batch, err := d.window.Batch(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}

	pc, err := d.buildPhaseContext(ctx, activity)
	if err != nil {
		return nil, err
	}

	result := &PhaseResult{Activity: activity, Dispatched: len(batch)}
	var resultMu sync.Mutex

	started := d.now()
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, participantID := range batch {
		g.Go(func() error {
			observability.RecordDispatched(string(activity))

			unit, err := d.runUnit(ctx, activity, participantID, pc)

			resultMu.Lock()
			defer resultMu.Unlock()
			switch {
			case err == nil:
				result.Succeeded++
				result.TradesExecuted += unit.trades
				result.MessagesPosted += unit.messages
				result.Fallbacks += unit.fallbacks
				observability.RecordDispatchSuccess(string(activity))
			case oracle.IsRateLimited(err):
				result.RateLimited++
				result.TradesExecuted += unit.trades
				result.MessagesPosted += unit.messages
				result.Fallbacks += unit.fallbacks
				observability.RecordRateLimited(string(activity))
				d.log("rate limited on %s for %s: %v", activity, participantID, err)
			default:
				result.Failed++
				observability.RecordDispatchFailure(string(activity))
				d.log("unit failed on %s for %s: %v", activity, participantID, err)
			}
			return nil
		})
	}
	g.Wait()

	// Fallback output from throttled units is real activity too; a fully
	// rate-limited but productive run must not trip the stall monitor.
	if result.Succeeded > 0 || result.Fallbacks > 0 {
		d.markActivity()
	}
	observability.RecordPhaseDuration(string(activity), d.now().Sub(started).Seconds())

	d.log("phase %s: dispatched=%d succeeded=%d failed=%d rate_limited=%d trades=%d messages=%d",
		activity, result.Dispatched, result.Succeeded, result.Failed,
		result.RateLimited, result.TradesExecuted, result.MessagesPosted)
	return result, nil
}

// buildPhaseContext takes one market snapshot, plus the shared social batch
// for social phases.
func (d *Dispatcher) buildPhaseContext(ctx context.Context, activity Activity) (*phaseContext, error) {
	snapshot, err := d.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("market snapshot: %w", err)
	}
	pc := &phaseContext{snapshot: snapshot}

	if activity == ActivitySocial {
		recent, err := d.messages.GetRecent(ctx, recentMessageCount)
		if err != nil {
			return nil, fmt.Errorf("recent messages: %w", err)
		}
		pc.social = &domain.SocialContext{
			RecentMessages: recent,
			Sentiment:      aggregateSentiment(recent),
		}
	}
	return pc, nil
}

// unitOutcome carries per-unit side-effect counts back to the aggregate.
type unitOutcome struct {
	trades    int
	messages  int
	fallbacks int
}

// runUnit executes one participant's phase action under the unit timeout.
// On a throttling failure it applies backoff, then still tries to produce
// output through the local fallback; the rate-limit error is returned so the
// caller counts it, alongside any fallback side effects.
func (d *Dispatcher) runUnit(parent context.Context, activity Activity, participantID string, pc *phaseContext) (unitOutcome, error) {
	var out unitOutcome

	if err := d.backoff.Wait(parent); err != nil {
		return out, err
	}

	ctx, cancel := context.WithTimeout(parent, d.unitTimeout)
	defer cancel()

	instance, err := d.cache.Get(ctx, participantID)
	if err != nil {
		return out, err
	}

	err = d.invoke(ctx, activity, instance, pc, &out)
	switch {
	case err == nil:
		d.backoff.Success()
		return out, nil
	case oracle.IsRateLimited(err):
		d.backoff.RateLimited()
		if fbErr := d.runFallback(ctx, activity, participantID, pc, &out); fbErr != nil {
			d.log("fallback after throttle failed for %s: %v", participantID, fbErr)
		}
		return out, err
	default:
		return out, err
	}
}

// invoke runs the activity-appropriate action on a live instance and
// persists its outcome.
func (d *Dispatcher) invoke(ctx context.Context, activity Activity, instance agent.Agent, pc *phaseContext, out *unitOutcome) error {
	started := d.now()
	defer func() {
		observability.RecordOracleLatency(string(activity), d.now().Sub(started).Seconds())
	}()

	switch activity {
	case ActivityAnalysis:
		result, err := instance.AnalyzeMarket(ctx, pc.snapshot)
		if err != nil {
			return err
		}
		return d.persistAnalysis(ctx, instance.ParticipantID(), result)

	case ActivitySocial:
		result, err := instance.Socialize(ctx, pc.social)
		if err != nil {
			return err
		}
		return d.persistSocial(ctx, instance.ParticipantID(), result, out)

	case ActivityTrading:
		result, err := instance.DecideTrade(ctx, pc.snapshot)
		if err != nil {
			return err
		}
		if !result.WantsTrade {
			// The oracle declined; a personality-driven local decision may
			// still trade to keep the pool liquid.
			result, err = d.fallbackTrade(ctx, instance.ParticipantID(), pc.snapshot)
			if err != nil {
				return err
			}
			if result.WantsTrade {
				out.fallbacks++
				observability.RecordFallbackDecision(string(activity))
			}
		}
		return d.persistTrade(ctx, instance.ParticipantID(), result, out)

	default:
		return fmt.Errorf("unknown activity %q", activity)
	}
}

// runFallback produces a local decision for the activity so a throttled
// phase still yields output.
func (d *Dispatcher) runFallback(ctx context.Context, activity Activity, participantID string, pc *phaseContext, out *unitOutcome) error {
	participant, err := d.participants.GetByID(ctx, participantID)
	if err != nil {
		return err
	}
	local := agent.NewFallbackAgent(participant, d.fallbackSeed)

	out.fallbacks++
	observability.RecordFallbackDecision(string(activity))

	switch activity {
	case ActivityAnalysis:
		result, err := local.AnalyzeMarket(ctx, pc.snapshot)
		if err != nil {
			return err
		}
		return d.persistAnalysis(ctx, participantID, result)
	case ActivitySocial:
		result, err := local.Socialize(ctx, pc.social)
		if err != nil {
			return err
		}
		return d.persistSocial(ctx, participantID, result, out)
	case ActivityTrading:
		result, err := local.DecideTrade(ctx, pc.snapshot)
		if err != nil {
			return err
		}
		return d.persistTrade(ctx, participantID, result, out)
	default:
		return fmt.Errorf("unknown activity %q", activity)
	}
}

// fallbackTrade asks the local decision source whether to trade anyway.
func (d *Dispatcher) fallbackTrade(ctx context.Context, participantID string, snap *domain.MarketSnapshot) (*domain.TradeResult, error) {
	participant, err := d.participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return agent.NewFallbackAgent(participant, d.fallbackSeed).DecideTrade(ctx, snap)
}

func (d *Dispatcher) persistAnalysis(ctx context.Context, participantID string, result *domain.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	return d.participants.UpdateLastDecision(ctx, participantID, &domain.DecisionInfo{
		Kind:      domain.DecisionMarketAnalysis,
		Payload:   string(payload),
		Timestamp: d.now().UnixMilli(),
	})
}

func (d *Dispatcher) persistSocial(ctx context.Context, participantID string, result *domain.SocialResult, out *unitOutcome) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal social: %w", err)
	}
	if err := d.participants.UpdateLastDecision(ctx, participantID, &domain.DecisionInfo{
		Kind:      domain.DecisionSocial,
		Payload:   string(payload),
		Timestamp: d.now().UnixMilli(),
	}); err != nil {
		return err
	}

	if !result.WantsMessage {
		return nil
	}
	if err := d.messages.Insert(ctx, &domain.Message{
		ParticipantID: participantID,
		Text:          result.Text,
		Sentiment:     result.Sentiment,
		CreatedAt:     d.now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	out.messages++
	observability.RecordMessagePosted()
	return nil
}

func (d *Dispatcher) persistTrade(ctx context.Context, participantID string, result *domain.TradeResult, out *unitOutcome) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := d.participants.UpdateLastDecision(ctx, participantID, &domain.DecisionInfo{
		Kind:      domain.DecisionTrade,
		Payload:   string(payload),
		Timestamp: d.now().UnixMilli(),
	}); err != nil {
		return err
	}

	if !result.WantsTrade {
		return nil
	}

	record, err := d.engine.Execute(ctx, participantID, result.Amount, result.Direction, d.slippageTolerancePct)
	if err != nil {
		// A rejected swap is a valid market outcome, not a unit failure.
		d.log("trade for %s rejected: %v", participantID, err)
		return nil
	}
	if record.Status == domain.TxStatusConfirmed {
		out.trades++
	}
	return nil
}

// aggregateSentiment averages sentiment over the shared message batch.
func aggregateSentiment(messages []*domain.Message) float64 {
	if len(messages) == 0 {
		return 0
	}
	var sum float64
	for _, m := range messages {
		sum += m.Sentiment
	}
	return sum / float64(len(messages))
}

// LastActivity reports when a dispatch last produced output, through either
// a succeeding unit or a throttled unit's fallback. The scheduler's heartbeat
// monitor reads this.
func (d *Dispatcher) LastActivity() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastActivity
}

// WindowSize exposes current active-window occupancy for batch sizing.
func (d *Dispatcher) WindowSize() int {
	return d.window.Size()
}

func (d *Dispatcher) markActivity() {
	at := d.now()
	d.mu.Lock()
	d.lastActivity = at
	d.mu.Unlock()
	observability.RecordDispatchActivity(float64(at.Unix()))
}

func (d *Dispatcher) log(format string, args ...interface{}) {
	if d.verbose {
		d.logger.Printf(format, args...)
	}
}
