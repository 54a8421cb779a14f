// Package main provides a one-shot local simulation run on in-memory
// stores: seed a population, rotate phases for a fixed duration, then
// stop and render the final report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-agent-sim/internal/agent"
	"solana-agent-sim/internal/amm"
	"solana-agent-sim/internal/dispatch"
	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/reporting"
	"solana-agent-sim/internal/scheduler"
	"solana-agent-sim/internal/storage/memory"
)

func main() {
	// Parse flags
	population := flag.Int("population", 100, "Number of simulated participants")
	window := flag.Int("window", 50, "Max active window size")
	batch := flag.Int("batch", 10, "Participants dispatched per phase")
	phaseDuration := flag.Duration("phase-duration", 2*time.Second, "Base phase duration")
	speed := flag.Float64("speed", 1.0, "Speed multiplier (0, 10]")
	duration := flag.Duration("duration", 2*time.Minute, "Total simulation duration")
	seed := flag.Int64("seed", 42, "Seed for population generation and fallback decisions")
	outputDir := flag.String("output-dir", "output", "Output directory for the final report")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, stopping simulation...\n", sig)
		cancel()
	}()

	participants := memory.NewParticipantStore()
	pools := memory.NewPoolStore()
	transactions := memory.NewTransactionStore()
	runs := memory.NewRunStore()
	messages := memory.NewMessageStore()
	stats := memory.NewMarketStatsStore()

	engine := amm.New(amm.Options{
		PoolStore:        pools,
		ParticipantStore: participants,
		TransactionStore: transactions,
		StatsStore:       stats,
		Verbose:          *verbose,
	})

	cache := agent.NewCache(agent.CacheOptions{
		Participants: participants,
		Factory:      agent.NewFallbackFactory(*seed),
		Verbose:      *verbose,
	})

	dispatcher := dispatch.New(dispatch.Options{
		Cache: cache,
		Window: dispatch.NewWindow(dispatch.WindowOptions{
			Participants: participants,
			MaxSize:      *window,
			Seed:         *seed,
		}),
		Backoff:      dispatch.NewBackoff(dispatch.BackoffOptions{}),
		Engine:       engine,
		Participants: participants,
		Messages:     messages,
		FallbackSeed: *seed,
		Verbose:      *verbose,
	})

	reporter := reporting.NewGenerator(reporting.Options{
		Runs:         runs,
		Participants: participants,
		Pools:        pools,
		Transactions: transactions,
		Messages:     messages,
		Stats:        stats,
		OutputDir:    *outputDir,
	})

	sched := scheduler.New(scheduler.Options{
		Dispatcher:   dispatcher,
		Cache:        cache,
		Engine:       engine,
		Runs:         runs,
		Participants: participants,
		Pools:        pools,
		Messages:     messages,
		Reporter:     reporter,
		Verbose:      *verbose,
	})

	cfg := scheduler.Config{
		PopulationSize:  *population,
		MaxActiveWindow: *window,
		BatchSize:       *batch,
		PhaseDuration:   *phaseDuration,
		SpeedMultiplier: *speed,
		Distribution:    domain.DefaultDistribution(),
		Seed:            *seed,
	}

	fmt.Println("=== Market Simulation ===")
	runID, err := sched.Start(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Start error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Run %s: population=%d window=%d batch=%d phase=%v speed=%.1fx\n",
		runID, *population, *window, *batch, *phaseDuration, *speed)

	select {
	case <-time.After(*duration):
	case <-ctx.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Stop error: %v\n", err)
		os.Exit(1)
	}

	printSummary(stopCtx, runID, pools, transactions, messages)
	fmt.Printf("Report written to %s/\n", *outputDir)
}

func printSummary(ctx context.Context, runID string, pools *memory.PoolStore, transactions *memory.TransactionStore, messages *memory.MessageStore) {
	fmt.Printf("\nRun %s finished.\n", runID)

	if pool, err := pools.Get(ctx); err == nil {
		fmt.Printf("  Price: %.9f SOL (reserves %.2f SOL / %.2f tokens)\n",
			pool.Price, pool.SolReserve, pool.TokenReserve)
		fmt.Printf("  Volume: %.2f SOL lifetime, %.2f SOL last 24h\n",
			pool.CumulativeVolume, pool.Volume24h)
	}

	if txs, err := transactions.GetByTimeRange(ctx, 0, time.Now().UnixMilli()); err == nil {
		var confirmed, failed int
		for _, tx := range txs {
			if tx.Status == domain.TxStatusConfirmed {
				confirmed++
			} else {
				failed++
			}
		}
		fmt.Printf("  Transactions: %d confirmed, %d failed\n", confirmed, failed)
	}

	if msgs, err := messages.GetRecent(ctx, 5); err == nil && len(msgs) > 0 {
		fmt.Println("  Recent chatter:")
		for _, m := range msgs {
			fmt.Printf("    [%.2f] %s\n", m.Sentiment, m.Text)
		}
	}
}
