package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Simulation Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Status: %s", r.RunID, r.RunStatus))
	if r.RunPhase != "" {
		sb.WriteString(fmt.Sprintf(" | Phase: %s", r.RunPhase))
	}
	sb.WriteString("\n\n")

	// Market
	sb.WriteString("## Market\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Price (SOL/token) | %.9f |\n", r.Market.Price))
	sb.WriteString(fmt.Sprintf("| SOL Reserve | %.4f |\n", r.Market.SolReserve))
	sb.WriteString(fmt.Sprintf("| Token Reserve | %.4f |\n", r.Market.TokenReserve))
	sb.WriteString(fmt.Sprintf("| Cumulative Volume (SOL) | %.4f |\n", r.Market.CumulativeVolume))
	sb.WriteString(fmt.Sprintf("| 24h Volume (SOL) | %.4f |\n", r.Market.Volume24h))
	sb.WriteString(fmt.Sprintf("| 24h Price Change | %.2f%% |\n", r.Market.PriceChangePct))
	sb.WriteString(fmt.Sprintf("| Last Trade (ms) | %d |\n", r.Market.LastTradeAt))
	sb.WriteString("\n")

	// Activity
	sb.WriteString("## Activity\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Transactions | %d |\n", r.Activity.TotalTransactions))
	sb.WriteString(fmt.Sprintf("| Confirmed | %d |\n", r.Activity.Confirmed))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", r.Activity.Failed))
	sb.WriteString(fmt.Sprintf("| Buys / Sells | %d / %d |\n", r.Activity.Buys, r.Activity.Sells))
	sb.WriteString(fmt.Sprintf("| Volume (SOL) | %.4f |\n", r.Activity.VolumeSol))
	sb.WriteString(fmt.Sprintf("| Messages | %d |\n", r.Activity.MessagesPosted))
	sb.WriteString(fmt.Sprintf("| Avg Sentiment | %.3f |\n", r.Activity.AverageSentiment))
	sb.WriteString("\n")

	// Personality breakdown
	sb.WriteString("## Population by Personality\n\n")
	if len(r.Personalities) > 0 {
		sb.WriteString("| Personality | Participants | Trades | Volume (SOL) |\n")
		sb.WriteString("|-------------|--------------|--------|--------------|\n")
		for _, row := range r.Personalities {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f |\n",
				row.Personality, row.Participants, row.Trades, row.VolumeSol))
		}
	} else {
		sb.WriteString("No population data available.\n")
	}
	sb.WriteString("\n")

	// Top traders
	sb.WriteString("## Top Traders\n\n")
	if len(r.TopTraders) > 0 {
		sb.WriteString("| Participant | Personality | Trades | Volume (SOL) | SOL Balance | Token Balance |\n")
		sb.WriteString("|-------------|-------------|--------|--------------|-------------|---------------|\n")
		for _, row := range r.TopTraders {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.4f | %.4f | %.4f |\n",
				shortID(row.ParticipantID), row.Personality, row.Trades,
				row.VolumeSol, row.SolBalance, row.TokenBalance))
		}
	} else {
		sb.WriteString("No trading activity recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// shortID truncates a 64-char participant hash for table display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
