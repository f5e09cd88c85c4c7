package relay

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/aobridge/pkg/ledger"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

const (
	DefaultSubmitAction   = "Beam to Getting-Started"
	DefaultAnnounceAction = "ToDiscord"
)

// LedgerSender submits one message to an AO process.
type LedgerSender interface {
	Send(ctx context.Context, processID string, tags ledger.Tags, data string) (string, error)
}

// Submitter turns chat messages into ledger submissions addressed to the
// bridge's own process. Every message it produces carries FromAOS=true so
// the poller can recognise the echo.
type Submitter struct {
	ledger         LedgerSender
	processID      string
	action         string
	announceAction string
}

func NewSubmitter(l LedgerSender, processID, action, announceAction string) *Submitter {
	if action == "" {
		action = DefaultSubmitAction
	}
	if announceAction == "" {
		announceAction = DefaultAnnounceAction
	}
	return &Submitter{
		ledger:         l,
		processID:      processID,
		action:         action,
		announceAction: announceAction,
	}
}

// Submit sends content typed by sender in lang. It makes exactly one
// attempt; failures are logged and returned. The Content tag is clipped to
// the tag size limit; the message data keeps the full text.
func (s *Submitter) Submit(ctx context.Context, content, sender, lang string) (string, error) {
	tags := ledger.Tags{
		{Name: "Action", Value: s.action},
		{Name: "Content", Value: ledger.ClipTagValue(content)},
		{Name: "Sender", Value: sender},
		{Name: "Language", Value: lang},
		{Name: "FromAOS", Value: "true"},
	}
	return s.send(ctx, "submit", tags, content, sender)
}

// Announce re-posts a message relayed from the ledger so the bridge
// process can fan it out.
func (s *Submitter) Announce(ctx context.Context, content, sender string) (string, error) {
	tags := ledger.Tags{
		{Name: "Action", Value: s.announceAction},
		{Name: "Data", Value: ledger.ClipTagValue(content)},
		{Name: "Event", Value: sender},
		{Name: "FromAOS", Value: "true"},
	}
	return s.send(ctx, "announce", tags, content, sender)
}

func (s *Submitter) send(ctx context.Context, kind string, tags ledger.Tags, content, sender string) (string, error) {
	id, err := s.ledger.Send(ctx, s.processID, tags, content)
	if err != nil {
		logger.ErrorCF("relay", "Ledger submission failed", map[string]any{
			"kind":    kind,
			"process": s.processID,
			"sender":  sender,
			"error":   err.Error(),
		})
		return "", fmt.Errorf("%s to %s: %w", kind, s.processID, err)
	}

	logger.InfoCF("relay", "Submitted to ledger", map[string]any{
		"kind":    kind,
		"process": s.processID,
		"sender":  sender,
		"id":      id,
	})
	return id, nil
}
