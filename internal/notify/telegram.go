package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/datapulse/insight-engine/internal/engine"
	"github.com/datapulse/insight-engine/internal/models"
)

// maxDigestInsights caps the number of insights per Telegram message so
// the digest stays readable and under the message size limit.
const maxDigestInsights = 5

// TelegramNotifier pushes a digest of the highest-ranked insights from a
// run to a configured chat. A notifier without a token is a no-op.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID string
	logger *logrus.Logger
}

func NewTelegramNotifier(botToken, chatID string, logger *logrus.Logger) (*TelegramNotifier, error) {
	tn := &TelegramNotifier{chatID: chatID, logger: logger}
	if botToken == "" {
		logger.Info("Telegram notifications disabled, no bot token configured")
		return tn, nil
	}

	b, err := bot.New(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	tn.bot = b
	return tn, nil
}

// Enabled reports whether the notifier will actually deliver messages.
func (tn *TelegramNotifier) Enabled() bool {
	return tn.bot != nil && tn.chatID != ""
}

// SendRunDigest delivers a summary of the top insights from a synthesis
// run. Runs that produced nothing are not announced.
func (tn *TelegramNotifier) SendRunDigest(ctx context.Context, run *engine.RunResult) error {
	if !tn.Enabled() {
		return nil
	}
	if len(run.Insights) == 0 {
		return nil
	}

	_, err := tn.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    tn.chatID,
		Text:      formatRunDigest(run),
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram digest: %w", err)
	}

	tn.logger.WithFields(logrus.Fields{
		"run_id":   run.RunID,
		"insights": len(run.Insights),
	}).Info("Sent insight digest to Telegram")
	return nil
}

func formatRunDigest(run *engine.RunResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Insight Digest* (last %d days)\n\n", run.PeriodDays))

	count := len(run.Insights)
	if count > maxDigestInsights {
		count = maxDigestInsights
	}
	for i := 0; i < count; i++ {
		ins := run.Insights[i]
		sb.WriteString(fmt.Sprintf("%d. %s %s\n", i+1, typeEmoji(ins.Type), ins.Title))
		sb.WriteString(fmt.Sprintf("   confidence %.0f%%\n", ins.Confidence*100))
	}

	if remaining := len(run.Insights) - count; remaining > 0 {
		sb.WriteString(fmt.Sprintf("\n_...and %d more insights_\n", remaining))
	}
	if len(run.Failures) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️ %d metrics could not be analyzed\n", len(run.Failures)))
	}
	return sb.String()
}

func typeEmoji(t models.InsightType) string {
	switch t {
	case models.InsightTypeAnomaly:
		return "🚨"
	case models.InsightTypeTrend:
		return "📈"
	case models.InsightTypeCorrelation:
		return "🔗"
	case models.InsightTypeForecast:
		return "🔮"
	default:
		return "•"
	}
}
