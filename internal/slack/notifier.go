// Package slack posts incident lifecycle updates to a Slack channel.
package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/incidents"
	"github.com/debugops/debugops/internal/utils"
)

const (
	queueSize          = 64
	stepAnalysisFailed = "Analysis Failed"
	patchPreviewLines  = 12
)

type message struct {
	incidentID string
	text       string
}

// Notifier turns store changes into Slack messages. Messages about the same
// incident are threaded under the first one posted for it.
type Notifier struct {
	client   *slack.Client
	channel  string
	resolver *ChannelResolver
	queue    chan message
	dropped  atomic.Int64

	mu      sync.Mutex
	threads map[string]string // incident id -> thread ts
}

// NewNotifier creates a new Slack notifier posting to channel (name or ID)
func NewNotifier(botToken, channel string, opts ...slack.Option) *Notifier {
	client := slack.New(botToken, opts...)
	return &Notifier{
		client:   client,
		channel:  channel,
		resolver: NewChannelResolver(client),
		queue:    make(chan message, queueSize),
		threads:  make(map[string]string),
	}
}

// Handle queues a message for the change if it is one worth posting.
// It never blocks; messages are dropped when the queue is full.
func (n *Notifier) Handle(c incidents.Change) {
	text, ok := formatChange(c)
	if !ok {
		return
	}
	select {
	case n.queue <- message{incidentID: c.IncidentID, text: text}:
	default:
		n.dropped.Add(1)
		zap.S().Warnf("Slack queue full, dropping notification for incident %s", c.IncidentID)
	}
}

// Dropped returns how many notifications were discarded because the queue was full
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Run resolves the channel and posts queued messages until ctx ends
func (n *Notifier) Run(ctx context.Context) error {
	channelID, err := n.resolver.ResolveChannel(ctx, n.channel)
	if err != nil {
		return fmt.Errorf("failed to resolve Slack channel %q: %w", n.channel, err)
	}
	zap.S().Infof("Slack notifications enabled for channel %s", channelID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-n.queue:
			n.post(ctx, channelID, msg)
		}
	}
}

func (n *Notifier) post(ctx context.Context, channelID string, msg message) {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.text, false)}

	n.mu.Lock()
	thread, threaded := n.threads[msg.incidentID]
	n.mu.Unlock()
	if threaded {
		opts = append(opts, slack.MsgOptionTS(thread))
	}

	_, ts, err := n.client.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		zap.S().Warnf("Failed to post Slack notification for incident %s: %v", msg.incidentID, err)
		return
	}
	if !threaded {
		n.mu.Lock()
		n.threads[msg.incidentID] = ts
		n.mu.Unlock()
	}
}

// formatChange renders the Slack text for a change, or false if it is not posted
func formatChange(c incidents.Change) (string, bool) {
	switch c.Kind {
	case incidents.ChangePatchSaved:
		if c.Patch == nil {
			return "", false
		}
		return formatPatch(c.IncidentID, c.Patch), true

	case incidents.ChangeEventAppended:
		if c.Event == nil || c.Event.Step != stepAnalysisFailed {
			return "", false
		}
		return fmt.Sprintf(":x: *Analysis failed* for incident `%s`\n%s", c.IncidentID, c.Event.Description), true

	case incidents.ChangeIncidentUpdated:
		if c.Incident == nil || c.Incident.Status != incidents.StatusResolved {
			return "", false
		}
		return fmt.Sprintf(":white_check_mark: *Incident resolved* `%s`\n>%s", c.IncidentID, utils.TruncateText(c.Incident.Message, 200)), true
	}
	return "", false
}

func formatPatch(id string, p *incidents.Patch) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":hammer_and_wrench: *Patch proposed* for incident `%s`\n", id)
	fmt.Fprintf(&b, "*Severity:* %s", p.Severity)
	if p.Engine != "" {
		fmt.Fprintf(&b, "  *Engine:* %s", p.Engine)
	}
	fmt.Fprintf(&b, "\n*Root cause:* %s\n", utils.TruncateText(p.RootCause, 500))
	if len(p.FilesToModify) > 0 {
		files := make([]string, len(p.FilesToModify))
		for i, f := range p.FilesToModify {
			files[i] = "`" + f + "`"
		}
		fmt.Fprintf(&b, "*Files:* %s\n", strings.Join(files, ", "))
	}
	if p.PatchText != "" {
		fmt.Fprintf(&b, "```\n%s\n```", utils.FirstNLines(p.PatchText, patchPreviewLines))
	}
	return b.String()
}
