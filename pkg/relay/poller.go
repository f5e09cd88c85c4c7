package relay

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/commands"
	"github.com/tinyland-inc/aobridge/pkg/dedup"
	"github.com/tinyland-inc/aobridge/pkg/ledger"
	"github.com/tinyland-inc/aobridge/pkg/logger"
	"github.com/tinyland-inc/aobridge/pkg/schedule"
	"github.com/tinyland-inc/aobridge/pkg/transport"
)

const (
	DefaultBroadcastAction = "Broadcasted"
	DefaultPollInterval    = 10 * time.Second
	DefaultPollLimit       = 50
)

// ResultSource reads evaluated messages of an AO process.
type ResultSource interface {
	Results(ctx context.Context, processID string, q ledger.ResultsQuery) (*ledger.Results, error)
}

// Announcer re-posts relayed messages to the bridge process.
type Announcer interface {
	Announce(ctx context.Context, content, sender string) (string, error)
}

type PollerConfig struct {
	// ProcessID is the process whose results are polled.
	ProcessID string
	// BridgeProcessID is the bridge's own process; records whose nickname
	// equals it are echoes.
	BridgeProcessID string
	// SelfNickname is the bridge's nickname in the polled process.
	SelfNickname    string
	BroadcastAction string
	Interval        time.Duration
	Limit           int
}

// Poller is the ledger half: it pulls new broadcast records from the polled
// process and forwards them over the transport.
type Poller struct {
	src       ResultSource
	fwd       transport.Sender
	window    *dedup.Window
	announcer Announcer
	cfg       PollerConfig

	mu     sync.Mutex
	cursor string
}

// NewPoller returns a poller. announcer may be nil to disable
// re-announcement.
func NewPoller(src ResultSource, fwd transport.Sender, window *dedup.Window, announcer Announcer, cfg PollerConfig) *Poller {
	if cfg.BroadcastAction == "" {
		cfg.BroadcastAction = DefaultBroadcastAction
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultPollLimit
	}
	return &Poller{src: src, fwd: fwd, window: window, announcer: announcer, cfg: cfg}
}

// Cursor returns the cursor of the last consumed record.
func (p *Poller) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *Poller) setCursor(c string) {
	p.mu.Lock()
	p.cursor = c
	p.mu.Unlock()
}

// Run polls until ctx is cancelled, waiting the configured interval after
// each cycle completes.
func (p *Poller) Run(ctx context.Context) {
	logger.InfoCF("relay", "Ledger poller started", map[string]any{
		"process":  p.cfg.ProcessID,
		"interval": p.cfg.Interval.String(),
	})
	schedule.FixedDelay(ctx, "ledger-poll", p.cfg.Interval, p.RunCycle)
}

// RunCycle performs one fetch and forwards every new broadcast record. A
// forwarding failure stops the batch with the cursor left on the last
// record fully handled.
func (p *Poller) RunCycle(ctx context.Context) error {
	if p.Cursor() == "" {
		baseline, err := p.src.Results(ctx, p.cfg.ProcessID, ledger.ResultsQuery{
			Sort:  ledger.SortDescending,
			Limit: 1,
		})
		if err != nil {
			return fmt.Errorf("fetching baseline: %w", err)
		}
		if len(baseline.Edges) == 0 {
			return nil
		}
		p.setCursor(baseline.Edges[0].Cursor)
		logger.DebugCF("relay", "Poll baseline set", map[string]any{"cursor": p.Cursor()})
	}

	edges, err := p.fetchSince(ctx, p.Cursor())
	if err != nil {
		return err
	}

	for _, edge := range edges {
		if edge.Cursor == "" || edge.Cursor == p.Cursor() {
			continue
		}
		for _, msg := range edge.Node.Messages {
			if err := p.handle(ctx, msg); err != nil {
				return fmt.Errorf("forwarding record %s: %w", edge.Cursor, err)
			}
		}
		p.setCursor(edge.Cursor)
	}
	return nil
}

// fetchSince returns every record after cursor, oldest first. Pages come
// back newest first, so a full page is followed by another ending at its
// oldest record until the gap to cursor is closed.
func (p *Poller) fetchSince(ctx context.Context, cursor string) ([]ledger.Edge, error) {
	var (
		edges []ledger.Edge
		seen  = make(map[string]struct{})
		to    string
	)
	for {
		page, err := p.src.Results(ctx, p.cfg.ProcessID, ledger.ResultsQuery{
			From:  cursor,
			To:    to,
			Sort:  ledger.SortDescending,
			Limit: p.cfg.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching results after %s: %w", cursor, err)
		}

		oldest := ""
		for _, edge := range page.Edges {
			if edge.Cursor == "" {
				continue
			}
			oldest = edge.Cursor
			if _, dup := seen[edge.Cursor]; dup || edge.Cursor == cursor {
				continue
			}
			seen[edge.Cursor] = struct{}{}
			edges = append(edges, edge)
		}

		if len(page.Edges) < p.cfg.Limit || oldest == "" || oldest == cursor || oldest == to {
			break
		}
		logger.DebugCF("relay", "Poll page full, fetching older records", map[string]any{
			"before": oldest,
			"after":  cursor,
		})
		to = oldest
	}

	slices.Reverse(edges)
	return edges, nil
}

// handle applies the filters to one message and forwards survivors.
func (p *Poller) handle(ctx context.Context, msg ledger.Message) error {
	if !msg.Tags.Has("Action", p.cfg.BroadcastAction) {
		return nil
	}
	if prov := p.provenance(msg); !bus.Relayable(prov) {
		logger.DebugCF("relay", "Skipping echoed ledger message", map[string]any{"provenance": prov.String()})
		return nil
	}

	payload := string(msg.Data)
	if payload == "" {
		payload = "No content"
	}
	if !p.window.ShouldForward(dedup.ToChat, payload) {
		return nil
	}

	nickname, ok := msg.Tags.Get("Nickname")
	if !ok || nickname == "" {
		nickname = "Unknown"
	}
	event, ok := msg.Tags.Get("Event")
	if !ok || event == "" {
		event = nickname
	}
	lang, ok := msg.Tags.Get("Language")
	if !ok || lang == "" {
		lang = "en"
	}
	sender, _ := msg.Tags.Get("Sender")

	env := DevChatEnvelope(event, payload, lang, sender)
	if err := p.fwd.Send(ctx, env); err != nil {
		return err
	}
	p.window.MarkForwarded(dedup.ToChat, payload)

	logger.InfoCF("relay", "Relayed ledger message", map[string]any{
		"event": event,
		"lang":  lang,
	})

	if p.announcer != nil && env.FromDevChat {
		p.announcer.Announce(ctx, env.Content, sender)
	}
	return nil
}

// DevChatEnvelope builds the transport envelope for a message typed on the
// ledger side. A !setlang payload becomes a language change for sender;
// anything else is shown as "event: **payload**" and may still be answered
// as a command by the chat half.
func DevChatEnvelope(event, payload, lang, sender string) bus.RelayMessage {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, commands.SetLang) {
		chosen := ""
		if fields := strings.Fields(trimmed); len(fields) > 1 {
			chosen = fields[1]
		}
		return bus.RelayMessage{Command: commands.SetLang, Lang: chosen, Content: trimmed, UserID: sender}
	}
	return bus.RelayMessage{
		Content:     fmt.Sprintf("%s: **%s**", event, payload),
		Command:     trimmed,
		Lang:        lang,
		UserID:      sender,
		FromDevChat: true,
	}
}

// provenance classifies a broadcast record. Records the bridge produced
// come back either under its own nickname or with the FromAOS marker.
func (p *Poller) provenance(msg ledger.Message) bus.Provenance {
	if nickname, ok := msg.Tags.Get("Nickname"); ok {
		if (p.cfg.SelfNickname != "" && nickname == p.cfg.SelfNickname) ||
			(p.cfg.BridgeProcessID != "" && nickname == p.cfg.BridgeProcessID) {
			return bus.EchoOriginated
		}
	}
	if msg.Tags.Has("FromAOS", "true") {
		return bus.EchoOriginated
	}
	return bus.UserOriginated
}
