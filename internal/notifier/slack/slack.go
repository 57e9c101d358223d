package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/kingdom-atlas/kvk-tracker/internal/metrics"
	"github.com/kingdom-atlas/kvk-tracker/internal/notifier"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	api := slack.New(token)
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)

	if err != nil {
		s.metrics.IncSlackNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncSlackNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

// SendImportSummary posts the outcome of one import run to the channel.
func (s *Notifier) SendImportSummary(batch kvk.ImportBatch, warnings []string, dryRun bool) error {
	msg := s.formatImportSummary(batch, warnings)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

// SendLeaderboard posts the kingdom leaderboard to the channel.
func (s *Notifier) SendLeaderboard(kingdoms []kvk.Kingdom, dryRun bool) error {
	msg := s.formatLeaderboard(kingdoms)
	_, _, err := s.sendMessage(msg, dryRun)
	return err
}

// FormatLeaderboardResponse formats a leaderboard message for a slash command response.
func (s *Notifier) FormatLeaderboardResponse(kingdoms []kvk.Kingdom) (any, error) {
	return s.formatLeaderboard(kingdoms), nil
}

// formatImportSummary creates the Slack message for a finished import run using Block Kit.
func (s *Notifier) formatImportSummary(batch kvk.ImportBatch, warnings []string) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", "📥 Match history import finished", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	countsText := fmt.Sprintf("Rows: %d\nInserted: %d\nReplaced: %d\nSkipped: %d\nValidation errors: %d",
		batch.TotalRows,
		batch.InsertedRows,
		batch.ReplacedRows,
		batch.SkippedRows,
		batch.ValidationErrors,
	)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", countsText, true, false), nil, nil))

	if batch.KingdomsCreated > 0 {
		createdText := fmt.Sprintf("🏰 %d new kingdoms provisioned", batch.KingdomsCreated)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", createdText, true, false), nil, nil))
	}

	if len(batch.KvKIDs) > 0 {
		ids := make([]string, len(batch.KvKIDs))
		for i, id := range batch.KvKIDs {
			ids[i] = fmt.Sprintf("%d", id)
		}
		cyclesText := "KvK cycles touched: " + strings.Join(ids, ", ")
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", cyclesText, true, false), nil, nil))
	}

	if len(warnings) > 0 {
		warnText := "⚠️ Warnings:\n• " + strings.Join(warnings, "\n• ")
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", warnText, true, false), nil, nil))
	}

	// Context - For simpler, single-line info.
	contextText := fmt.Sprintf("Batch %s • imported by %s", batch.ID, batch.Operator)
	blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", contextText, true, false)))

	return slack.NewBlockMessage(blocks...)
}

// formatLeaderboard creates a Slack message to display the kingdom leaderboard.
func (s *Notifier) formatLeaderboard(kingdoms []kvk.Kingdom) slack.Message {
	blocks := make([]slack.Block, 0)

	// Header
	headerText := slack.NewTextBlockObject("plain_text", "🏆 Kingdom Leaderboard 🏆", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if len(kingdoms) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "No results recorded yet. Import some match history!", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	for i, k := range kingdoms {
		rank := i + 1
		var medal string
		switch rank {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}

		name := k.Name
		if name == "" {
			name = fmt.Sprintf("Kingdom %d", k.ID)
		}
		kingdomText := fmt.Sprintf("%d. %s %s\n> Score: %.0f | Prep: %d-%d | Battle: %d-%d | Streak: %d (best %d)",
			rank,
			medal,
			name,
			k.Score,
			k.PrepWins,
			k.PrepLosses,
			k.BattleWins,
			k.BattleLosses,
			k.CurrentStreak,
			k.BestStreak,
		)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", kingdomText, true, false), nil, nil))
	}

	return slack.NewBlockMessage(blocks...)
}
