package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders trader summaries as a CSV string.
func RenderCSV(traders []TraderRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("participant_id,personality,trades,volume_sol,sol_balance,token_balance\n")

	// Rows
	for _, row := range traders {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%.6f,%.6f,%.6f\n",
			row.ParticipantID,
			row.Personality,
			row.Trades,
			row.VolumeSol,
			row.SolBalance,
			row.TokenBalance,
		))
	}

	return sb.String()
}
