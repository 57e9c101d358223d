package notifier

import (
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
)

// Notifier defines a high-level interface for sending notifications about business events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For completed import runs
	SendImportSummary(batch kvk.ImportBatch, warnings []string, dryRun bool) error
	// For the leaderboard slash command and scheduled posts
	SendLeaderboard(kingdoms []kvk.Kingdom, dryRun bool) error

	// For formatting responses for slash commands
	FormatLeaderboardResponse(kingdoms []kvk.Kingdom) (any, error)
}
