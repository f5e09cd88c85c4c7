package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal"
	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/relay"
	"github.com/tinyland-inc/aobridge/pkg/transport"
)

const connectTimeout = 5 * time.Second

type options struct {
	Nick  string
	Lang  string
	URL   string
	Debug bool
}

func consoleCmd(opts options) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	internal.SetupLogging(cfg.Log.Level, opts.Debug)

	url := opts.URL
	if url == "" {
		url = cfg.Transport.URL()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := transport.NewClient(url, func(_ context.Context, env bus.RelayMessage) {
		fmt.Printf("\n%s %s\n", internal.Logo, env.Content)
	}, transport.WithReconnectDelay(time.Second))
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if !waitConnected(ctx, client, connectTimeout) {
		return fmt.Errorf("could not connect to gateway transport at %s", url)
	}

	fmt.Printf("%s Connected to %s (Ctrl+C to exit)\n\n", internal.Logo, url)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s %s: ", internal.Logo, opts.Nick),
		HistoryFile:     filepath.Join(os.TempDir(), ".aobridge_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("error initializing readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		env, ok := envelopeFor(line, opts)
		if !ok {
			if isExit(line) {
				fmt.Println("Goodbye!")
				return nil
			}
			continue
		}
		if err := client.Send(ctx, env); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// envelopeFor turns one console line into the envelope a ledger broadcast of
// the same text would produce.
func envelopeFor(line string, opts options) (bus.RelayMessage, bool) {
	input := strings.TrimSpace(line)
	if input == "" || isExit(input) {
		return bus.RelayMessage{}, false
	}
	return relay.DevChatEnvelope(opts.Nick, input, opts.Lang, opts.Nick), true
}

func isExit(line string) bool {
	s := strings.TrimSpace(line)
	return s == "exit" || s == "quit"
}

func waitConnected(ctx context.Context, c *transport.Client, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for !c.Connected() {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
	return true
}
