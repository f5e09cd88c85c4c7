package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

// Manager starts the chat channels and delivers outbound messages from the
// bus to them.
type Manager struct {
	bus      *bus.MessageBus
	mu       sync.RWMutex
	channels map[string]Channel
	wg       sync.WaitGroup
}

func NewManager(mb *bus.MessageBus, chs ...Channel) *Manager {
	m := &Manager{bus: mb, channels: make(map[string]Channel)}
	for _, ch := range chs {
		m.channels[ch.Name()] = ch
	}
	return m
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartAll starts every channel and the outbound dispatcher. A channel that
// fails to start is reported but does not stop the others.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var firstErr error
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("starting %s: %w", name, err)
			}
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.dispatchOutbound(ctx)
	}()
	return firstErr
}

// StopAll stops every channel and waits for the dispatcher. The caller
// must have cancelled the context passed to StartAll or closed the bus.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to stop channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
	m.wg.Wait()
	return nil
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		m.mu.RLock()
		for name, ch := range m.channels {
			if !ch.IsRunning() {
				continue
			}
			for _, chunk := range chunksFor(ch, msg.Content) {
				out := bus.OutboundMessage{ChatID: msg.ChatID, Content: chunk}
				if err := ch.Send(ctx, out); err != nil {
					logger.ErrorCF("channels", "Failed to deliver message", map[string]any{
						"channel": name,
						"error":   err.Error(),
					})
					break
				}
			}
		}
		m.mu.RUnlock()
	}
}

func chunksFor(ch Channel, content string) []string {
	if p, ok := ch.(MessageLengthProvider); ok && p.MaxMessageLength() > 0 {
		return SplitMessage(content, p.MaxMessageLength())
	}
	return []string{content}
}

// SplitMessage breaks content into chunks of at most limit runes,
// preferring to cut at the last newline, then the last space.
func SplitMessage(content string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return []string{content}
	}

	var chunks []string
	runes := []rune(content)
	for len(runes) > limit {
		cut := lastIndex(runes[:limit], '\n')
		if cut <= 0 {
			cut = lastIndex(runes[:limit], ' ')
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
		if len(runes) > 0 && (runes[0] == '\n' || runes[0] == ' ') {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func lastIndex(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
