package domain

import "time"

// Run status constants.
const (
	RunStatusStopped = "STOPPED"
	RunStatusRunning = "RUNNING"
	RunStatusPaused  = "PAUSED"
	RunStatusError   = "ERROR"
)

// Phase constants. Valid only while a run is RUNNING.
const (
	PhaseMarketAnalysis = "MARKET_ANALYSIS"
	PhaseSocial         = "SOCIAL"
	PhaseTrading        = "TRADING"
	PhaseReporting      = "REPORTING"
)

// phaseOrder is the fixed rotation cycle.
var phaseOrder = []string{PhaseMarketAnalysis, PhaseSocial, PhaseTrading, PhaseReporting}

// NextPhase returns the phase following the given one in the rotation cycle.
// An unknown phase restarts the cycle at MARKET_ANALYSIS.
func NextPhase(phase string) string {
	for i, p := range phaseOrder {
		if p == phase {
			return phaseOrder[(i+1)%len(phaseOrder)]
		}
	}
	return PhaseMarketAnalysis
}

// SimulationRun is the lifecycle object for one execution.
// Corresponds to simulation_runs table in PostgreSQL.
type SimulationRun struct {
	RunID           string        // uuid
	Status          string        // STOPPED | RUNNING | PAUSED | ERROR
	Phase           string        // current phase while RUNNING
	PopulationSize  int           // configured population
	MaxActiveWindow int           // configured active window cap
	BatchSize       int           // configured per-phase batch size
	PhaseDuration   time.Duration // configured base phase duration
	SpeedMultiplier float64       // (0, 10]
	StartedAt       int64         // Unix timestamp in milliseconds
	EndedAt         int64         // Unix timestamp in milliseconds, 0 while open
}
