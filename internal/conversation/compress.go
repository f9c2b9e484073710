package conversation

import "github.com/artifactflow/server/pkg/models"

// CompressionThresholdChars and CompressionKeepTurns implement the history
// compression described in spec.md §9 and SPEC_FULL.md §12: older history
// entries are replaced by a single truncation marker once the concatenated
// transcript exceeds ~40k characters, keeping only the most recent N turns
// verbatim. Applied at history-build time, never touching stored Messages.
const (
	CompressionThresholdChars = 40_000
	CompressionKeepTurns      = 5
)

// Compress returns turns unchanged if under threshold, else a marker turn
// followed by the most recent CompressionKeepTurns turns.
func Compress(turns []models.HistoryTurn) []models.HistoryTurn {
	total := 0
	for _, t := range turns {
		total += len(t.Content)
	}
	if total <= CompressionThresholdChars || len(turns) <= CompressionKeepTurns {
		return turns
	}

	kept := turns[len(turns)-CompressionKeepTurns:]
	marker := models.HistoryTurn{
		Role:    "system",
		Content: "[earlier conversation history truncated]",
	}
	out := make([]models.HistoryTurn, 0, len(kept)+1)
	out = append(out, marker)
	out = append(out, kept...)
	return out
}
