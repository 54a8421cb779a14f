// Package scheduler drives the simulation run lifecycle: the state machine,
// the phase rotation, the market refresh and reporting timers, and the
// heartbeat monitor that catches a stalled oracle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"solana-agent-sim/internal/agent"
	"solana-agent-sim/internal/amm"
	"solana-agent-sim/internal/dispatch"
	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/idhash"
	"solana-agent-sim/internal/observability"
	"solana-agent-sim/internal/solana"
	"solana-agent-sim/internal/storage"
)

const (
	// DefaultPhaseDuration is the base rotation period at speed 1.
	DefaultPhaseDuration = 30 * time.Second

	// DefaultMarketRefresh is the market-data refresh period at speed 1.
	DefaultMarketRefresh = 15 * time.Second

	// DefaultReportEvery is the periodic report interval.
	DefaultReportEvery = 5 * time.Minute

	// DefaultStallThreshold is how stale dispatch activity may get before
	// the heartbeat intervenes.
	DefaultStallThreshold = 10 * time.Minute

	// MaxSpeedMultiplier bounds SetSpeed; the valid range is (0, max].
	MaxSpeedMultiplier = 10.0

	// bootstrap sizes: enough that a fresh run is not observably empty.
	bootstrapMessages = 3
	bootstrapTrades   = 2
)

// Reporter produces periodic and final aggregate reports for a run.
type Reporter interface {
	Generate(ctx context.Context, runID string) error
}

// Config is the start request for a run.
type Config struct {
	PopulationSize  int
	MaxActiveWindow int
	BatchSize       int
	PhaseDuration   time.Duration
	SpeedMultiplier float64
	Distribution    domain.PersonalityDistribution

	InitialSolBalance   float64
	InitialTokenBalance float64
	SeedSolReserve      float64
	SeedTokenReserve    float64

	// Seed drives wallet/personality generation and fallback decisions.
	Seed int64
}

// Validate rejects configurations the run loop cannot honor.
func (c *Config) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("population size must be positive, got %d", c.PopulationSize)
	}
	if c.MaxActiveWindow <= 0 {
		return fmt.Errorf("max active window must be positive, got %d", c.MaxActiveWindow)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.PhaseDuration <= 0 {
		return fmt.Errorf("phase duration must be positive, got %v", c.PhaseDuration)
	}
	if c.SpeedMultiplier <= 0 || c.SpeedMultiplier > MaxSpeedMultiplier {
		return fmt.Errorf("speed multiplier %f outside (0, %g]", c.SpeedMultiplier, MaxSpeedMultiplier)
	}
	if c.Distribution == nil {
		return fmt.Errorf("personality distribution is required")
	}
	return c.Distribution.Validate()
}

// Options wires the scheduler's collaborators.
type Options struct {
	Dispatcher   *dispatch.Dispatcher
	Cache        *agent.Cache
	Engine       *amm.Engine
	Runs         storage.RunStore
	Participants storage.ParticipantStore
	Pools        storage.PoolStore
	Messages     storage.MessageStore

	// Optional collaborators
	Reporter       Reporter
	MarketRefresh  time.Duration
	ReportEvery    time.Duration
	StallThreshold time.Duration
	Verbose        bool
}

// Scheduler owns the run state machine. All state transitions happen under
// one mutex; timer callbacks re-check state so paused ticks are no-ops.
type Scheduler struct {
	dispatcher   *dispatch.Dispatcher
	cache        *agent.Cache
	engine       *amm.Engine
	runs         storage.RunStore
	participants storage.ParticipantStore
	pools        storage.PoolStore
	messages     storage.MessageStore
	reporter     Reporter

	marketRefresh  time.Duration
	reportEvery    time.Duration
	stallThreshold time.Duration
	verbose        bool
	logger         *log.Logger

	mu             sync.Mutex
	state          string
	phase          string
	run            *domain.SimulationRun
	config         Config
	cancel         context.CancelFunc
	phaseTicker    *time.Ticker
	marketTicker   *time.Ticker
	inFlight       bool
	stallCondition string

	now func() time.Time
}

// Status is the externally visible run snapshot.
type Status struct {
	State          string    `json:"state"`
	Phase          string    `json:"phase,omitempty"`
	RunID          string    `json:"run_id,omitempty"`
	Speed          float64   `json:"speed,omitempty"`
	WindowSize     int       `json:"window_size"`
	CacheResident  int       `json:"cache_resident"`
	LastActivity   time.Time `json:"last_activity"`
	StallCondition string    `json:"stall_condition,omitempty"`
}

// New creates a scheduler in the STOPPED state.
func New(opts Options) *Scheduler {
	if opts.MarketRefresh <= 0 {
		opts.MarketRefresh = DefaultMarketRefresh
	}
	if opts.ReportEvery <= 0 {
		opts.ReportEvery = DefaultReportEvery
	}
	if opts.StallThreshold <= 0 {
		opts.StallThreshold = DefaultStallThreshold
	}

	return &Scheduler{
		dispatcher:     opts.Dispatcher,
		cache:          opts.Cache,
		engine:         opts.Engine,
		runs:           opts.Runs,
		participants:   opts.Participants,
		pools:          opts.Pools,
		messages:       opts.Messages,
		reporter:       opts.Reporter,
		marketRefresh:  opts.MarketRefresh,
		reportEvery:    opts.ReportEvery,
		stallThreshold: opts.StallThreshold,
		verbose:        opts.Verbose,
		logger:         log.New(os.Stdout, "[scheduler] ", log.LstdFlags),
		state:          domain.RunStatusStopped,
		now:            time.Now,
	}
}

// Start boots a run: validates config, seeds the pool and population,
// creates the run record, bootstraps opening activity and arms the timers.
// Rejects if a run is already RUNNING or PAUSED.
func (s *Scheduler) Start(ctx context.Context, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	if s.state == domain.RunStatusRunning || s.state == domain.RunStatusPaused {
		state := s.state
		s.mu.Unlock()
		return "", fmt.Errorf("run already %s", state)
	}
	s.mu.Unlock()

	if err := s.seedPool(ctx, &cfg); err != nil {
		return "", err
	}
	if err := s.seedPopulation(ctx, &cfg); err != nil {
		return "", err
	}

	run := &domain.SimulationRun{
		RunID:           uuid.New().String(),
		Status:          domain.RunStatusRunning,
		Phase:           domain.PhaseMarketAnalysis,
		PopulationSize:  cfg.PopulationSize,
		MaxActiveWindow: cfg.MaxActiveWindow,
		BatchSize:       cfg.BatchSize,
		PhaseDuration:   cfg.PhaseDuration,
		SpeedMultiplier: cfg.SpeedMultiplier,
		StartedAt:       s.now().UnixMilli(),
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	s.bootstrap(ctx, &cfg)

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.state = domain.RunStatusRunning
	s.phase = domain.PhaseMarketAnalysis
	s.run = run
	s.config = cfg
	s.cancel = cancel
	s.stallCondition = ""
	s.phaseTicker = time.NewTicker(s.effectivePeriod(cfg.PhaseDuration, cfg.SpeedMultiplier))
	s.marketTicker = time.NewTicker(s.effectivePeriod(s.marketRefresh, cfg.SpeedMultiplier))
	s.mu.Unlock()

	go s.runLoop(runCtx)
	s.cache.StartSweeper(runCtx, time.Minute)

	observability.RecordRunStarted()
	s.logger.Printf("run %s started: population=%d window=%d batch=%d phase=%v speed=%.1f",
		run.RunID, cfg.PopulationSize, cfg.MaxActiveWindow, cfg.BatchSize, cfg.PhaseDuration, cfg.SpeedMultiplier)
	return run.RunID, nil
}

// Pause transitions RUNNING → PAUSED. Timers stay armed; their ticks no-op.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.RunStatusRunning {
		return fmt.Errorf("cannot pause from %s", s.state)
	}
	s.state = domain.RunStatusPaused
	s.persistStatusLocked()
	s.logger.Printf("run %s paused", s.run.RunID)
	return nil
}

// Resume transitions PAUSED → RUNNING without re-arming timers.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.RunStatusPaused {
		return fmt.Errorf("cannot resume from %s", s.state)
	}
	s.state = domain.RunStatusRunning
	s.stallCondition = ""
	s.persistStatusLocked()
	s.logger.Printf("run %s resumed", s.run.RunID)
	return nil
}

// SetSpeed re-arms the phase and market timers with the new effective
// period. The current phase is kept.
func (s *Scheduler) SetSpeed(multiplier float64) error {
	if multiplier <= 0 || multiplier > MaxSpeedMultiplier {
		return fmt.Errorf("speed multiplier %f outside (0, %g]", multiplier, MaxSpeedMultiplier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.RunStatusRunning && s.state != domain.RunStatusPaused {
		return fmt.Errorf("no run to retime from %s", s.state)
	}

	s.config.SpeedMultiplier = multiplier
	s.run.SpeedMultiplier = multiplier
	s.phaseTicker.Reset(s.effectivePeriod(s.config.PhaseDuration, multiplier))
	s.marketTicker.Reset(s.effectivePeriod(s.marketRefresh, multiplier))
	s.persistStatusLocked()
	s.logger.Printf("run %s speed set to %.1f", s.run.RunID, multiplier)
	return nil
}

// Stop ends the run: cancels timers, closes the run record, produces the
// final report and drains every live instance.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == domain.RunStatusStopped {
		s.mu.Unlock()
		return fmt.Errorf("no run in progress")
	}
	run := s.run
	cancel := s.cancel
	s.state = domain.RunStatusStopped
	s.phase = ""
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	run.Status = domain.RunStatusStopped
	run.EndedAt = s.now().UnixMilli()
	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.Printf("end run %s: %v", run.RunID, err)
	}

	if s.reporter != nil {
		if err := s.reporter.Generate(ctx, run.RunID); err != nil {
			s.logger.Printf("final report for %s: %v", run.RunID, err)
		}
	}

	drained := s.cache.DrainAll(ctx)
	s.logger.Printf("run %s stopped, drained %d instances", run.RunID, drained)
	return nil
}

// Status returns the current run snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:          s.state,
		Phase:          s.phase,
		WindowSize:     s.dispatcher.WindowSize(),
		CacheResident:  s.cache.Len(),
		LastActivity:   s.dispatcher.LastActivity(),
		StallCondition: s.stallCondition,
	}
	if s.run != nil {
		status.RunID = s.run.RunID
		status.Speed = s.run.SpeedMultiplier
	}
	return status
}

// runLoop services all timers until the run context is cancelled.
func (s *Scheduler) runLoop(ctx context.Context) {
	s.mu.Lock()
	phaseC := s.phaseTicker.C
	marketC := s.marketTicker.C
	s.mu.Unlock()

	reportTicker := time.NewTicker(s.reportEvery)
	heartbeat := time.NewTicker(s.stallThreshold / 2)
	defer func() {
		reportTicker.Stop()
		heartbeat.Stop()
		s.mu.Lock()
		if s.phaseTicker != nil {
			s.phaseTicker.Stop()
		}
		if s.marketTicker != nil {
			s.marketTicker.Stop()
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-phaseC:
			s.phaseTick(ctx)
		case <-marketC:
			s.marketTick(ctx)
		case <-reportTicker.C:
			s.reportTick(ctx)
		case <-heartbeat.C:
			s.heartbeatTick(ctx)
		}
	}
}

// phaseTick runs one phase dispatch. Rotation is timer-paced; if the
// previous dispatch is still in flight the tick is skipped rather than
// double-processing the same window.
func (s *Scheduler) phaseTick(ctx context.Context) {
	s.mu.Lock()
	if s.state != domain.RunStatusRunning {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.mu.Unlock()
		s.log("phase tick skipped: previous dispatch still in flight")
		return
	}
	s.inFlight = true
	phase := s.phase
	batch := s.config.BatchSize
	// Mutate the shared run record and snapshot it while still holding the
	// mutex; Pause/Resume/SetSpeed write the same struct under it.
	s.run.Phase = phase
	snapshot := *s.run
	s.mu.Unlock()

	if err := s.runs.Update(ctx, &snapshot); err != nil {
		s.logger.Printf("persist phase %s: %v", phase, err)
	}
	observability.RecordPhaseRotation(phase)

	go func() {
		defer func() {
			s.mu.Lock()
			s.inFlight = false
			if s.state == domain.RunStatusRunning {
				s.phase = domain.NextPhase(phase)
			}
			s.mu.Unlock()
		}()

		if err := s.runPhase(ctx, phase, batch); err != nil {
			s.fail(ctx, fmt.Errorf("phase %s: %w", phase, err))
		}
	}()
}

// runPhase executes the activity matching one phase.
func (s *Scheduler) runPhase(ctx context.Context, phase string, maxPerPhase int) error {
	if phase == domain.PhaseReporting {
		if s.reporter == nil {
			return nil
		}
		s.mu.Lock()
		runID := s.run.RunID
		s.mu.Unlock()
		if err := s.reporter.Generate(ctx, runID); err != nil {
			// Reporting is best-effort; a failed report never kills the run.
			s.logger.Printf("reporting phase: %v", err)
		}
		return nil
	}

	activity, ok := activityFor(phase)
	if !ok {
		return fmt.Errorf("no activity for phase %q", phase)
	}

	batch := maxPerPhase
	if size := s.dispatcher.WindowSize(); size > 0 && size < batch {
		batch = size
	}

	result, err := s.dispatcher.RunPhase(ctx, activity, batch)
	if err != nil {
		return err
	}
	s.log("phase %s done: %+v", phase, result)
	return nil
}

// marketTick refreshes derived market data.
func (s *Scheduler) marketTick(ctx context.Context) {
	s.mu.Lock()
	running := s.state == domain.RunStatusRunning
	s.mu.Unlock()
	if !running {
		return
	}
	if err := s.engine.RefreshStats(ctx); err != nil {
		s.logger.Printf("market refresh: %v", err)
	}
}

// reportTick produces a periodic aggregate report.
func (s *Scheduler) reportTick(ctx context.Context) {
	s.mu.Lock()
	running := s.state == domain.RunStatusRunning
	var runID string
	if s.run != nil {
		runID = s.run.RunID
	}
	s.mu.Unlock()

	if !running || s.reporter == nil {
		return
	}
	if err := s.reporter.Generate(ctx, runID); err != nil {
		s.logger.Printf("periodic report: %v", err)
	}
}

// heartbeatTick re-runs the current phase once when dispatch activity has
// gone stale; if activity is still stale afterwards the run is paused and
// the condition surfaced through Status.
func (s *Scheduler) heartbeatTick(ctx context.Context) {
	s.mu.Lock()
	if s.state != domain.RunStatusRunning || s.inFlight {
		s.mu.Unlock()
		return
	}
	phase := s.phase
	batch := s.config.BatchSize
	s.mu.Unlock()

	last := s.dispatcher.LastActivity()
	if !last.IsZero() && s.now().Sub(last) < s.stallThreshold {
		return
	}

	// Claim the in-flight slot so a phase tick firing during the re-run skips
	// instead of dispatching the same window concurrently.
	s.mu.Lock()
	if s.state != domain.RunStatusRunning || s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	s.logger.Printf("heartbeat: dispatch stale (last %v), re-running phase %s", last, phase)
	observability.RecordStallRecovery()
	if err := s.runPhase(ctx, phase, batch); err != nil {
		s.logger.Printf("heartbeat re-run: %v", err)
	}

	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()

	last = s.dispatcher.LastActivity()
	if !last.IsZero() && s.now().Sub(last) < s.stallThreshold {
		return
	}

	s.mu.Lock()
	if s.state == domain.RunStatusRunning {
		s.state = domain.RunStatusPaused
		s.stallCondition = fmt.Sprintf("dispatch produced no successful activity since %v", last)
		s.persistStatusLocked()
		s.logger.Printf("heartbeat: still stale, run paused")
	}
	s.mu.Unlock()
}

// fail transitions the run to ERROR on an unrecoverable failure.
func (s *Scheduler) fail(ctx context.Context, cause error) {
	s.logger.Printf("unrecoverable: %v", cause)

	s.mu.Lock()
	if s.state != domain.RunStatusRunning && s.state != domain.RunStatusPaused {
		s.mu.Unlock()
		return
	}
	s.state = domain.RunStatusError
	run := s.run
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	run.Status = domain.RunStatusError
	run.EndedAt = s.now().UnixMilli()
	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.Printf("persist error state: %v", err)
	}
}

// seedPool initializes the liquidity pool if absent.
func (s *Scheduler) seedPool(ctx context.Context, cfg *Config) error {
	if cfg.SeedSolReserve <= 0 {
		cfg.SeedSolReserve = 1000
	}
	if cfg.SeedTokenReserve <= 0 {
		cfg.SeedTokenReserve = 1000000
	}

	pool := &domain.PoolState{
		SolReserve:   cfg.SeedSolReserve,
		TokenReserve: cfg.SeedTokenReserve,
		K:            cfg.SeedSolReserve * cfg.SeedTokenReserve,
		Price:        cfg.SeedSolReserve / cfg.SeedTokenReserve,
		UpdatedAt:    s.now().UnixMilli(),
	}
	err := s.pools.Initialize(ctx, pool)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("seed pool: %w", err)
	}
	return nil
}

// seedPopulation tops the participant population up to the configured size.
// Wallets and personalities derive from the run seed so populations are
// reproducible.
func (s *Scheduler) seedPopulation(ctx context.Context, cfg *Config) error {
	existing, err := s.participants.Count(ctx)
	if err != nil {
		return fmt.Errorf("count population: %w", err)
	}
	if existing >= cfg.PopulationSize {
		return nil
	}

	if cfg.InitialSolBalance <= 0 {
		cfg.InitialSolBalance = 100
	}
	if cfg.InitialTokenBalance <= 0 {
		cfg.InitialTokenBalance = 100000
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	runSeed := fmt.Sprintf("%d", cfg.Seed)
	created := 0

	for i := existing; i < cfg.PopulationSize; i++ {
		wallet, err := solana.NewWalletAddress()
		if err != nil {
			return fmt.Errorf("generate wallet: %w", err)
		}
		personality := cfg.Distribution.Sample(rng)

		p := &domain.Participant{
			ParticipantID: idhash.ComputeParticipantID(runSeed, wallet, personality, i),
			WalletAddress: wallet,
			Personality:   personality,
			SolBalance:    cfg.InitialSolBalance,
			TokenBalance:  cfg.InitialTokenBalance,
			Active:        true,
			CreatedAt:     s.now().UnixMilli(),
		}
		if err := s.participants.Insert(ctx, p); err != nil {
			return fmt.Errorf("seed participant %d: %w", i, err)
		}
		created++
	}

	s.logger.Printf("seeded %d participants (population %d)", created, cfg.PopulationSize)
	return nil
}

// bootstrap posts a few opening messages and executes a couple of small
// trades so a fresh run is not observably empty. Best effort.
func (s *Scheduler) bootstrap(ctx context.Context, cfg *Config) {
	ids, err := s.participants.GetActiveIDs(ctx)
	if err != nil || len(ids) == 0 {
		return
	}

	openers := []string{
		"fresh pool just went live, watching closely",
		"liquidity looks thin but the setup is interesting",
		"first in, let's see where this goes",
	}
	for i := 0; i < bootstrapMessages && i < len(ids); i++ {
		err := s.messages.Insert(ctx, &domain.Message{
			ParticipantID: ids[i],
			Text:          openers[i%len(openers)],
			Sentiment:     0.2,
			CreatedAt:     s.now().UnixMilli(),
		})
		if err != nil {
			s.log("bootstrap message: %v", err)
		}
	}

	for i := 0; i < bootstrapTrades && i < len(ids); i++ {
		amount := cfg.InitialSolBalance * 0.01
		if _, err := s.engine.Execute(ctx, ids[i], amount, domain.DirectionBuy, dispatch.DefaultSlippageTolerancePct); err != nil {
			s.log("bootstrap trade: %v", err)
		}
	}
}

func (s *Scheduler) effectivePeriod(base time.Duration, speed float64) time.Duration {
	period := time.Duration(float64(base) / speed)
	if period < 10*time.Millisecond {
		period = 10 * time.Millisecond
	}
	return period
}

// persistStatusLocked mirrors the in-memory state to the run record.
// Caller holds mu.
func (s *Scheduler) persistStatusLocked() {
	if s.run == nil {
		return
	}
	s.run.Status = s.state
	s.run.Phase = s.phase
	if err := s.runs.Update(context.Background(), s.run); err != nil {
		s.logger.Printf("persist run status: %v", err)
	}
}

// activityFor maps a dispatching phase to its activity.
func activityFor(phase string) (dispatch.Activity, bool) {
	switch phase {
	case domain.PhaseMarketAnalysis:
		return dispatch.ActivityAnalysis, true
	case domain.PhaseSocial:
		return dispatch.ActivitySocial, true
	case domain.PhaseTrading:
		return dispatch.ActivityTrading, true
	default:
		return "", false
	}
}

func (s *Scheduler) log(format string, args ...interface{}) {
	if s.verbose {
		s.logger.Printf(format, args...)
	}
}
