package slack

import (
	"context"
	"errors"
	"testing"

	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/kingdom-atlas/kvk-tracker/internal/metrics"
	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSlackAPI is a mock implementation of the parts of the slack.Client that we use.
type mockSlackAPI struct {
	postMessageContextFunc func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

func (m *mockSlackAPI) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	if m.postMessageContextFunc != nil {
		return m.postMessageContextFunc(ctx, channelID, options...)
	}
	return "C12345", "123456789.12345", nil
}

func TestSendMessage_DryRun(t *testing.T) {
	metrics := metrics.NewMock()
	// Pass nil for the api, as it shouldn't be called in dry-run mode.
	notifier := NewNotifierWithAPI(nil, "C123", metrics)

	message := slackapi.NewBlockMessage()
	_, _, err := notifier.sendMessage(message, true)
	require.NoError(t, err)
}

func TestSendMessage_Success(t *testing.T) {
	postMessageCalled := false
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			postMessageCalled = true
			assert.Equal(t, "C123", channelID)
			return "C123", "ts123", nil
		},
	}

	metrics := metrics.NewMock()
	notifier := NewNotifierWithAPI(api, "C123", metrics)

	message := slackapi.NewBlockMessage(slackapi.NewSectionBlock(slackapi.NewTextBlockObject("plain_text", "hello", false, false), nil, nil))
	_, _, err := notifier.sendMessage(message, false)

	require.NoError(t, err)
	assert.True(t, postMessageCalled, "PostMessageContext should have been called")
	assert.Equal(t, 1, metrics.SlackNotifSent())
	assert.Equal(t, 0, metrics.SlackNotifFailed())
}

func TestSendMessage_Failure(t *testing.T) {
	postMessageCalled := false
	expectedErr := errors.New("slack API is down")
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			postMessageCalled = true
			return "", "", expectedErr
		},
	}

	metrics := metrics.NewMock()
	notifier := NewNotifierWithAPI(api, "C123", metrics)

	message := slackapi.NewBlockMessage()
	_, _, err := notifier.sendMessage(message, false)

	require.Error(t, err)
	assert.ErrorIs(t, err, expectedErr)
	assert.True(t, postMessageCalled, "PostMessageContext should have been called")
	assert.Equal(t, 0, metrics.SlackNotifSent())
	assert.Equal(t, 1, metrics.SlackNotifFailed())
}

// Test one of the public methods to ensure it calls the private sender.
func TestSendImportSummary_CallsSender(t *testing.T) {
	postMessageCalled := false
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			postMessageCalled = true
			return "C123", "ts123", nil
		},
	}

	metrics := metrics.NewMock()
	notifier := NewNotifierWithAPI(api, "C123", metrics)

	batch := kvk.ImportBatch{
		ID:       "batch-1",
		Operator: "alice",
	}

	err := notifier.SendImportSummary(batch, nil, false)
	require.NoError(t, err)
	assert.True(t, postMessageCalled, "PostMessageContext should have been called via SendImportSummary")
}

func TestFormatImportSummary(t *testing.T) {
	batch := kvk.ImportBatch{
		ID:               "batch-1",
		Operator:         "alice",
		TotalRows:        120,
		InsertedRows:     100,
		ReplacedRows:     10,
		SkippedRows:      5,
		KingdomsCreated:  3,
		ValidationErrors: 5,
		KvKIDs:           []int64{4, 5},
	}
	client := &Notifier{channelID: "C123"}

	msg := client.formatImportSummary(batch, []string{"provisioning batch at offset 0 failed: boom"})
	require.Len(t, msg.Blocks.BlockSet, 6, "Expected 6 blocks")

	// 1. Header Block
	header, ok := msg.Blocks.BlockSet[0].(*slackapi.HeaderBlock)
	require.True(t, ok, "First block should be a HeaderBlock")
	assert.Equal(t, "📥 Match history import finished", header.Text.Text)

	// 2. Counts Section
	counts, ok := msg.Blocks.BlockSet[1].(*slackapi.SectionBlock)
	require.True(t, ok, "Second block should be a SectionBlock")
	assert.Contains(t, counts.Text.Text, "Rows: 120")
	assert.Contains(t, counts.Text.Text, "Inserted: 100")
	assert.Contains(t, counts.Text.Text, "Replaced: 10")
	assert.Contains(t, counts.Text.Text, "Skipped: 5")

	// 3. Provisioned kingdoms
	created, ok := msg.Blocks.BlockSet[2].(*slackapi.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, created.Text.Text, "3 new kingdoms provisioned")

	// 4. Cycles
	cycles, ok := msg.Blocks.BlockSet[3].(*slackapi.SectionBlock)
	require.True(t, ok)
	assert.Equal(t, "KvK cycles touched: 4, 5", cycles.Text.Text)

	// 5. Warnings
	warnings, ok := msg.Blocks.BlockSet[4].(*slackapi.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, warnings.Text.Text, "provisioning batch at offset 0 failed")

	// 6. Context footer
	contextBlock, ok := msg.Blocks.BlockSet[5].(*slackapi.ContextBlock)
	require.True(t, ok, "Last block should be a ContextBlock")
	require.Len(t, contextBlock.ContextElements.Elements, 1)

	footer, ok := contextBlock.ContextElements.Elements[0].(*slackapi.TextBlockObject)
	require.True(t, ok)
	assert.Contains(t, footer.Text, "batch-1")
	assert.Contains(t, footer.Text, "alice")
}

func TestFormatLeaderboard(t *testing.T) {
	t.Run("displays leaderboard with kingdoms", func(t *testing.T) {
		kingdoms := []kvk.Kingdom{
			{ID: 172, Name: "Avalon", Score: 25, PrepWins: 4, PrepLosses: 1, BattleWins: 5, BattleLosses: 0, CurrentStreak: 5, BestStreak: 5},
			{ID: 189, Score: 18, PrepWins: 3, PrepLosses: 2, BattleWins: 4, BattleLosses: 1, CurrentStreak: 1, BestStreak: 3},
			{ID: 204, Score: 12, PrepWins: 2, PrepLosses: 3, BattleWins: 3, BattleLosses: 2, CurrentStreak: 0, BestStreak: 2},
		}

		client := &Notifier{channelID: "C123"}
		msg := client.formatLeaderboard(kingdoms)

		require.Len(t, msg.Blocks.BlockSet, 4, "Expected 4 blocks (header + 3 kingdoms)")

		// Check header
		header, ok := msg.Blocks.BlockSet[0].(*slackapi.HeaderBlock)
		require.True(t, ok)
		assert.Equal(t, "🏆 Kingdom Leaderboard 🏆", header.Text.Text)

		// Check first kingdom
		first, ok := msg.Blocks.BlockSet[1].(*slackapi.SectionBlock)
		require.True(t, ok)
		assert.Contains(t, first.Text.Text, "1. 🥇 Avalon")
		assert.Contains(t, first.Text.Text, "> Score: 25 | Prep: 4-1 | Battle: 5-0 | Streak: 5 (best 5)")

		// Second kingdom has no name, so the id is used.
		second, ok := msg.Blocks.BlockSet[2].(*slackapi.SectionBlock)
		require.True(t, ok)
		assert.Contains(t, second.Text.Text, "2. 🥈 Kingdom 189")

		third, ok := msg.Blocks.BlockSet[3].(*slackapi.SectionBlock)
		require.True(t, ok)
		assert.Contains(t, third.Text.Text, "3. 🥉 Kingdom 204")
	})

	t.Run("displays message when no kingdoms are available", func(t *testing.T) {
		client := &Notifier{channelID: "C123"}
		msg := client.formatLeaderboard([]kvk.Kingdom{})

		require.Len(t, msg.Blocks.BlockSet, 2, "Expected 2 blocks (header + message)")

		// Check message
		message, ok := msg.Blocks.BlockSet[1].(*slackapi.SectionBlock)
		require.True(t, ok)
		assert.Equal(t, "No results recorded yet. Import some match history!", message.Text.Text)
	})
}
