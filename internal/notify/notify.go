// Package notify posts Investigator/Lint dispatch summaries to an outbound
// Slack webhook (spec.md §2 row 12's "optionally... Slack notification"),
// off by default. This is the only outbound third-party surface the
// ingestion core has; everything else is graph writes and the stats/metrics
// endpoints.
package notify

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/fourthplaces/rootsignal/internal/config"
	"github.com/fourthplaces/rootsignal/internal/investigator"
)

// SlackNotifier posts a message to a configured incoming webhook. It
// satisfies investigator.Notifier.
type SlackNotifier struct {
	webhookURL string
	timeout    time.Duration
}

// New returns a SlackNotifier for the given webhook URL and per-call
// timeout.
func New(webhookURL string, timeout time.Duration) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, timeout: timeout}
}

// FromConfig builds a Notifier from NotifyConfig: a NoopNotifier if no
// webhook is configured, a SlackNotifier otherwise. Callers should always
// go through this constructor rather than New directly, so "no webhook
// configured" stays a single decision point.
func FromConfig(cfg config.NotifyConfig) investigator.Notifier {
	if cfg.WebhookURL == "" {
		return investigator.NoopNotifier{}
	}
	return New(cfg.WebhookURL, cfg.Timeout)
}

// Notify posts summary as a single Slack message block.
func (n *SlackNotifier) Notify(ctx context.Context, summary string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	msg := goslack.WebhookMessage{
		Text: fmt.Sprintf(":rotating_light: %s", summary),
	}
	if err := goslack.PostWebhookContext(ctx, n.webhookURL, &msg); err != nil {
		return fmt.Errorf("slack webhook post failed: %w", err)
	}
	return nil
}
