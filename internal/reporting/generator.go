// Package reporting aggregates a run's market, trading and social activity
// into periodic and final reports.
package reporting

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// maxTopTraders caps the most-active-traders table.
const maxTopTraders = 10

// messageSampleLimit bounds how many messages feed the sentiment average.
const messageSampleLimit = 1000

// Generator produces reports from stored run data.
type Generator struct {
	runs         storage.RunStore
	participants storage.ParticipantStore
	pools        storage.PoolStore
	transactions storage.TransactionStore
	messages     storage.MessageStore
	stats        storage.MarketStatsStore // optional

	outputDir string
	logger    *log.Logger
	now       func() time.Time
}

// Options for creating a Generator.
type Options struct {
	Runs         storage.RunStore
	Participants storage.ParticipantStore
	Pools        storage.PoolStore
	Transactions storage.TransactionStore
	Messages     storage.MessageStore

	// Optional collaborators
	Stats storage.MarketStatsStore

	// OutputDir receives rendered markdown and CSV files; empty means the
	// rendered report is only logged.
	OutputDir string
}

// NewGenerator creates a report generator.
func NewGenerator(opts Options) *Generator {
	return &Generator{
		runs:         opts.Runs,
		participants: opts.Participants,
		pools:        opts.Pools,
		transactions: opts.Transactions,
		messages:     opts.Messages,
		stats:        opts.Stats,
		outputDir:    opts.OutputDir,
		logger:       log.New(os.Stdout, "[reporting] ", log.LstdFlags),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for a run and emits it: markdown and CSV files
// when an output directory is configured, a log line otherwise.
func (g *Generator) Generate(ctx context.Context, runID string) error {
	report, err := g.Build(ctx, runID)
	if err != nil {
		return err
	}

	if g.outputDir == "" {
		g.logger.Printf("run %s: price=%.6f volume=%.2f txs=%d messages=%d",
			report.RunID, report.Market.Price, report.Activity.VolumeSol,
			report.Activity.TotalTransactions, report.Activity.MessagesPosted)
		return nil
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	stamp := g.now().Format("20060102T150405")
	mdPath := filepath.Join(g.outputDir, fmt.Sprintf("report_%s_%s.md", runID, stamp))
	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}

	csvPath := filepath.Join(g.outputDir, fmt.Sprintf("traders_%s_%s.csv", runID, stamp))
	if err := os.WriteFile(csvPath, []byte(RenderCSV(report.TopTraders)), 0o644); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}

	g.logger.Printf("report for run %s written to %s", runID, mdPath)
	return nil
}

// Build assembles the aggregate report for a run.
func (g *Generator) Build(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		RunID:       run.RunID,
		RunStatus:   run.Status,
		RunPhase:    run.Phase,
		StartedAt:   run.StartedAt,
		EndedAt:     run.EndedAt,
	}

	if err := g.buildMarket(ctx, report); err != nil {
		return nil, err
	}

	end := run.EndedAt
	if end == 0 {
		end = g.now().UnixMilli()
	}
	txs, err := g.transactions.GetByTimeRange(ctx, run.StartedAt, end)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	if err := g.buildActivity(ctx, report, txs); err != nil {
		return nil, err
	}
	if err := g.buildPopulation(ctx, report, txs); err != nil {
		return nil, err
	}
	return report, nil
}

func (g *Generator) buildMarket(ctx context.Context, report *Report) error {
	pool, err := g.pools.Get(ctx)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}

	report.Market = MarketSummary{
		Price:            pool.Price,
		SolReserve:       pool.SolReserve,
		TokenReserve:     pool.TokenReserve,
		CumulativeVolume: pool.CumulativeVolume,
		Volume24h:        pool.Volume24h,
		LastTradeAt:      pool.LastTradeAt,
	}

	if g.stats != nil {
		end := g.now().UnixMilli()
		points, err := g.stats.GetByTimeRange(ctx, end-24*time.Hour.Milliseconds(), end)
		if err == nil && len(points) > 0 {
			report.Market.PriceChangePct = points[len(points)-1].PriceChangePct
		}
	}
	return nil
}

func (g *Generator) buildActivity(ctx context.Context, report *Report, txs []*domain.TransactionRecord) error {
	activity := ActivitySummary{TotalTransactions: len(txs)}
	for _, tx := range txs {
		switch tx.Status {
		case domain.TxStatusConfirmed:
			activity.Confirmed++
			activity.VolumeSol += solVolume(tx)
		case domain.TxStatusFailed:
			activity.Failed++
		}
		switch tx.Direction {
		case domain.DirectionBuy:
			activity.Buys++
		case domain.DirectionSell:
			activity.Sells++
		}
	}

	messages, err := g.messages.GetRecent(ctx, messageSampleLimit)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	activity.MessagesPosted = len(messages)
	if len(messages) > 0 {
		var sum float64
		for _, m := range messages {
			sum += m.Sentiment
		}
		activity.AverageSentiment = sum / float64(len(messages))
	}

	report.Activity = activity
	return nil
}

func (g *Generator) buildPopulation(ctx context.Context, report *Report, txs []*domain.TransactionRecord) error {
	ids, err := g.participants.GetActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("load population: %w", err)
	}

	type traderAgg struct {
		trades int
		volume float64
	}
	byTrader := make(map[string]*traderAgg)
	for _, tx := range txs {
		if tx.Status != domain.TxStatusConfirmed {
			continue
		}
		agg := byTrader[tx.ParticipantID]
		if agg == nil {
			agg = &traderAgg{}
			byTrader[tx.ParticipantID] = agg
		}
		agg.trades++
		agg.volume += solVolume(tx)
	}

	byPersonality := make(map[string]*PersonalityRow)
	var traders []TraderRow

	for _, id := range ids {
		p, err := g.participants.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load participant %s: %w", id, err)
		}

		row := byPersonality[p.Personality]
		if row == nil {
			row = &PersonalityRow{Personality: p.Personality}
			byPersonality[p.Personality] = row
		}
		row.Participants++

		agg := byTrader[id]
		if agg == nil {
			continue
		}
		row.Trades += agg.trades
		row.VolumeSol += agg.volume
		traders = append(traders, TraderRow{
			ParticipantID: p.ParticipantID,
			Personality:   p.Personality,
			Trades:        agg.trades,
			VolumeSol:     agg.volume,
			SolBalance:    p.SolBalance,
			TokenBalance:  p.TokenBalance,
		})
	}

	for _, personality := range domain.Personalities {
		if row := byPersonality[personality]; row != nil {
			report.Personalities = append(report.Personalities, *row)
		}
	}

	sort.Slice(traders, func(i, j int) bool {
		if traders[i].Trades != traders[j].Trades {
			return traders[i].Trades > traders[j].Trades
		}
		return traders[i].ParticipantID < traders[j].ParticipantID
	})
	if len(traders) > maxTopTraders {
		traders = traders[:maxTopTraders]
	}
	report.TopTraders = traders
	return nil
}

// solVolume is a confirmed trade's size in SOL terms: the input side for
// buys, the output side for sells.
func solVolume(tx *domain.TransactionRecord) float64 {
	if tx.Direction == domain.DirectionBuy {
		return tx.AmountIn
	}
	return tx.AmountOut
}
