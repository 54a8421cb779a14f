// Package main provides the simulation control server:
// - Scheduler: phase rotation over the participant population
// - Control surface: start/stop/pause/resume/speed over HTTP
// - Live feed: WebSocket event stream for trades, messages, phase changes
// - Reporting (scheduled): markdown summaries and trader CSVs
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-agent-sim/internal/agent"
	"solana-agent-sim/internal/amm"
	"solana-agent-sim/internal/dispatch"
	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/feed"
	"solana-agent-sim/internal/idhash"
	"solana-agent-sim/internal/observability"
	"solana-agent-sim/internal/oracle"
	"solana-agent-sim/internal/reporting"
	"solana-agent-sim/internal/scheduler"
	"solana-agent-sim/internal/solana"
	"solana-agent-sim/internal/storage"
	chstore "solana-agent-sim/internal/storage/clickhouse"
	"solana-agent-sim/internal/storage/memory"
	"solana-agent-sim/internal/storage/migrations"
	pgstore "solana-agent-sim/internal/storage/postgres"
)

// Server holds the wired simulation components behind the HTTP surface.
type Server struct {
	scheduler *scheduler.Scheduler
	engine    *amm.Engine
	stores    *allStores
	hub       *feed.Hub
	logger    *log.Logger

	seed     int64
	defaults scheduler.Config
}

// allStores holds all storage implementations.
type allStores struct {
	participants storage.ParticipantStore
	pools        storage.PoolStore
	transactions storage.TransactionStore
	runs         storage.RunStore
	messages     storage.MessageStore
	stats        storage.MarketStatsStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "Control API HTTP address")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	oracleEndpoint := flag.String("oracle-endpoint", os.Getenv("ORACLE_ENDPOINT"), "Decision oracle HTTP endpoint (empty: local fallback decisions only)")
	oracleAPIKey := flag.String("oracle-api-key", os.Getenv("ORACLE_API_KEY"), "Decision oracle API key")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC endpoint for on-chain balance checks (optional)")
	tokenMint := flag.String("token-mint", os.Getenv("TOKEN_MINT"), "Token mint address for on-chain balance checks")
	outputDir := flag.String("output-dir", envOr("OUTPUT_DIR", "output"), "Output directory for reports")
	cacheSize := flag.Int("cache-size", agent.DefaultMaxSize, "Max resident agent instances")
	concurrency := flag.Int("concurrency", dispatch.DefaultConcurrency, "Max concurrent dispatch units")
	seed := flag.Int64("seed", 42, "Seed for population generation and fallback decisions")
	verbose := flag.Bool("verbose", false, "Verbose logging")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Optional on-chain ledger for balance eligibility checks
	var ledger amm.BalanceSource
	if *rpcEndpoint != "" {
		ledger = solana.NewHTTPClient(*rpcEndpoint, *tokenMint)
		logger.Printf("On-chain ledger enabled: %s", *rpcEndpoint)
	}

	engine := amm.New(amm.Options{
		PoolStore:        stores.pools,
		ParticipantStore: stores.participants,
		TransactionStore: stores.transactions,
		StatsStore:       stores.stats,
		Ledger:           ledger,
		Verbose:          *verbose,
	})

	// Agent factory: oracle-backed when an endpoint is configured,
	// deterministic local fallback otherwise.
	var factory agent.Factory
	if *oracleEndpoint != "" {
		client := oracle.NewClient(*oracleEndpoint, oracle.WithAPIKey(*oracleAPIKey))
		factory = agent.NewOracleFactory(client)
		logger.Printf("Decision oracle enabled: %s", *oracleEndpoint)
	} else {
		factory = agent.NewFallbackFactory(*seed)
		logger.Println("No oracle endpoint configured, using local fallback decisions")
	}

	cache := agent.NewCache(agent.CacheOptions{
		Participants: stores.participants,
		Factory:      factory,
		MaxSize:      *cacheSize,
		Verbose:      *verbose,
	})

	window := dispatch.NewWindow(dispatch.WindowOptions{
		Participants: stores.participants,
		MaxSize:      50,
		Seed:         *seed,
	})

	dispatcher := dispatch.New(dispatch.Options{
		Cache:        cache,
		Window:       window,
		Backoff:      dispatch.NewBackoff(dispatch.BackoffOptions{}),
		Engine:       engine,
		Participants: stores.participants,
		Messages:     stores.messages,
		FallbackSeed: *seed,
		Concurrency:  *concurrency,
		Verbose:      *verbose,
	})

	reporter := reporting.NewGenerator(reporting.Options{
		Runs:         stores.runs,
		Participants: stores.participants,
		Pools:        stores.pools,
		Transactions: stores.transactions,
		Messages:     stores.messages,
		Stats:        stores.stats,
		OutputDir:    *outputDir,
	})

	sched := scheduler.New(scheduler.Options{
		Dispatcher:   dispatcher,
		Cache:        cache,
		Engine:       engine,
		Runs:         stores.runs,
		Participants: stores.participants,
		Pools:        stores.pools,
		Messages:     stores.messages,
		Reporter:     reporter,
		Verbose:      *verbose,
	})

	server := &Server{
		scheduler: sched,
		engine:    engine,
		stores:    stores,
		hub:       feed.NewHub(nil),
		logger:    logger,
		seed:      *seed,
		defaults: scheduler.Config{
			PopulationSize:  100,
			MaxActiveWindow: 50,
			BatchSize:       10,
			PhaseDuration:   scheduler.DefaultPhaseDuration,
			SpeedMultiplier: 1.0,
			Distribution:    domain.DefaultDistribution(),
			Seed:            *seed,
		},
	}

	// Publish status transitions to feed subscribers
	go server.watchStatus(ctx)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start metrics listener
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		logger.Printf("Metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	// Start control API
	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}
	go func() {
		logger.Printf("Control API listening on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	sig := <-sigCh
	logger.Printf("Received signal %v, shutting down...", sig)

	// Second signal forces immediate exit
	go func() {
		<-sigCh
		logger.Println("Second signal received, forcing exit")
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Printf("Scheduler stop: %v", err)
	}
	server.hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
	cancel()

	logger.Println("Shutdown complete")
}

// createStores creates all required stores, running migrations for durable
// backends.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			participants: memory.NewParticipantStore(),
			pools:        memory.NewPoolStore(),
			transactions: memory.NewTransactionStore(),
			runs:         memory.NewRunStore(),
			messages:     memory.NewMessageStore(),
			stats:        memory.NewMarketStatsStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := &allStores{
		participants: pgstore.NewParticipantStore(pool),
		pools:        pgstore.NewPoolStore(pool),
		transactions: pgstore.NewTransactionStore(pool),
		runs:         pgstore.NewRunStore(pool),
		messages:     pgstore.NewMessageStore(pool),
		stats:        chstore.NewMarketStatsStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// routes builds the control API handler.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/run/start", s.handleStart)
	mux.HandleFunc("POST /api/run/stop", s.handleStop)
	mux.HandleFunc("POST /api/run/pause", s.handlePause)
	mux.HandleFunc("POST /api/run/resume", s.handleResume)
	mux.HandleFunc("POST /api/run/speed", s.handleSpeed)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/participants", s.handleRegister)
	mux.HandleFunc("GET /api/participants/{id}/balances", s.handleBalances)
	mux.HandleFunc("POST /api/participants/{id}/deposit", s.handleDeposit)
	mux.HandleFunc("POST /api/participants/{id}/withdraw", s.handleWithdraw)
	mux.Handle("/ws", s.hub)

	return mux
}

// startRequest is the JSON body for /api/run/start. Zero fields fall back
// to server defaults.
type startRequest struct {
	PopulationSize  int     `json:"population_size"`
	MaxActiveWindow int     `json:"max_active_window"`
	BatchSize       int     `json:"batch_size"`
	PhaseDurationMs int64   `json:"phase_duration_ms"`
	SpeedMultiplier float64 `json:"speed_multiplier"`

	InitialSolBalance   float64 `json:"initial_sol_balance"`
	InitialTokenBalance float64 `json:"initial_token_balance"`
	SeedSolReserve      float64 `json:"seed_sol_reserve"`
	SeedTokenReserve    float64 `json:"seed_token_reserve"`

	Distribution map[string]float64 `json:"distribution"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	cfg := s.defaults
	if r.Body != nil && r.ContentLength != 0 {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		applyOverrides(&cfg, &req)
	}

	runID, err := s.scheduler.Start(r.Context(), cfg)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	s.logger.Printf("Run %s started (population=%d window=%d batch=%d)",
		runID, cfg.PopulationSize, cfg.MaxActiveWindow, cfg.BatchSize)
	s.hub.Publish(feed.EventRunStatus, map[string]interface{}{"run_id": runID, "status": domain.RunStatusRunning})
	writeJSON(w, http.StatusOK, map[string]string{"run_id": runID})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Stop(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.hub.Publish(feed.EventRunStatus, map[string]interface{}{"status": domain.RunStatusStopped})
	writeJSON(w, http.StatusOK, map[string]string{"status": domain.RunStatusStopped})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Pause(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.hub.Publish(feed.EventRunStatus, map[string]interface{}{"status": domain.RunStatusPaused})
	writeJSON(w, http.StatusOK, map[string]string{"status": domain.RunStatusPaused})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Resume(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.hub.Publish(feed.EventRunStatus, map[string]interface{}{"status": domain.RunStatusRunning})
	writeJSON(w, http.StatusOK, map[string]string{"status": domain.RunStatusRunning})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Multiplier float64 `json:"multiplier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.scheduler.SetSpeed(req.Multiplier); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"multiplier": req.Multiplier})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// registerRequest is the JSON body for /api/participants.
type registerRequest struct {
	Personality  string  `json:"personality"`
	SolBalance   float64 `json:"sol_balance"`
	TokenBalance float64 `json:"token_balance"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if !validPersonality(req.Personality) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown personality %q", req.Personality))
		return
	}
	if req.SolBalance < 0 || req.TokenBalance < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("balances must be non-negative"))
		return
	}

	wallet, err := solana.NewWalletAddress()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("generate wallet: %w", err))
		return
	}

	count, err := s.stores.participants.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("count participants: %w", err))
		return
	}

	nowMs := time.Now().UnixMilli()
	p := &domain.Participant{
		ParticipantID: idhash.ComputeParticipantID(fmt.Sprintf("%d", s.seed), wallet, req.Personality, count),
		WalletAddress: wallet,
		Personality:   req.Personality,
		SolBalance:    req.SolBalance,
		TokenBalance:  req.TokenBalance,
		Active:        true,
		CreatedAt:     nowMs,
		UpdatedAt:     nowMs,
	}
	if err := s.stores.participants.Insert(r.Context(), p); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	s.logger.Printf("Registered participant %s (%s)", p.ParticipantID, p.Personality)
	writeJSON(w, http.StatusCreated, map[string]string{
		"participant_id": p.ParticipantID,
		"wallet_address": p.WalletAddress,
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	sol, token, err := s.engine.Balances(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"sol_balance": sol, "token_balance": token})
}

// adjustRequest is the JSON body for deposit/withdraw.
type adjustRequest struct {
	Sol   float64 `json:"sol"`
	Token float64 `json:"token"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.engine.Deposit(r.Context(), r.PathValue("id"), req.Sol, req.Token); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.engine.Withdraw(r.Context(), r.PathValue("id"), req.Sol, req.Token); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validPersonality(p string) bool {
	for _, known := range domain.Personalities {
		if p == known {
			return true
		}
	}
	return false
}

// watchStatus publishes phase and state transitions to feed subscribers.
func (s *Server) watchStatus(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last scheduler.Status
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.scheduler.Status()
			if status.Phase != last.Phase && status.Phase != "" {
				s.hub.Publish(feed.EventPhaseChange, map[string]interface{}{
					"run_id": status.RunID,
					"phase":  status.Phase,
				})
			}
			if status.State != last.State {
				s.hub.Publish(feed.EventRunStatus, map[string]interface{}{
					"run_id": status.RunID,
					"status": status.State,
				})
			}
			last = status
		}
	}
}

func applyOverrides(cfg *scheduler.Config, req *startRequest) {
	if req.PopulationSize > 0 {
		cfg.PopulationSize = req.PopulationSize
	}
	if req.MaxActiveWindow > 0 {
		cfg.MaxActiveWindow = req.MaxActiveWindow
	}
	if req.BatchSize > 0 {
		cfg.BatchSize = req.BatchSize
	}
	if req.PhaseDurationMs > 0 {
		cfg.PhaseDuration = time.Duration(req.PhaseDurationMs) * time.Millisecond
	}
	if req.SpeedMultiplier > 0 {
		cfg.SpeedMultiplier = req.SpeedMultiplier
	}
	if req.InitialSolBalance > 0 {
		cfg.InitialSolBalance = req.InitialSolBalance
	}
	if req.InitialTokenBalance > 0 {
		cfg.InitialTokenBalance = req.InitialTokenBalance
	}
	if req.SeedSolReserve > 0 {
		cfg.SeedSolReserve = req.SeedSolReserve
	}
	if req.SeedTokenReserve > 0 {
		cfg.SeedTokenReserve = req.SeedTokenReserve
	}
	if len(req.Distribution) > 0 {
		cfg.Distribution = domain.PersonalityDistribution(req.Distribution)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
