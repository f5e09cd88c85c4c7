package internal

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/aobridge/pkg/bus"
	"github.com/tinyland-inc/aobridge/pkg/channels"
	"github.com/tinyland-inc/aobridge/pkg/commands"
	"github.com/tinyland-inc/aobridge/pkg/config"
	"github.com/tinyland-inc/aobridge/pkg/dedup"
	"github.com/tinyland-inc/aobridge/pkg/langpref"
	"github.com/tinyland-inc/aobridge/pkg/ledger"
	"github.com/tinyland-inc/aobridge/pkg/logger"
	"github.com/tinyland-inc/aobridge/pkg/lookup"
	"github.com/tinyland-inc/aobridge/pkg/relay"
	"github.com/tinyland-inc/aobridge/pkg/transport"
)

const shutdownTimeout = 5 * time.Second

// NewLedgerClient loads the wallet when a path is configured; without one
// the client can only read results.
func NewLedgerClient(cfg *config.Config) (*ledger.Client, error) {
	var signer *ledger.Signer
	if cfg.Ledger.WalletPath != "" {
		s, err := ledger.LoadWallet(cfg.Ledger.WalletPath)
		if err != nil {
			return nil, fmt.Errorf("error loading wallet: %w", err)
		}
		signer = s
		logger.InfoCF("ledger", "Wallet loaded", map[string]any{"address": s.Address()})
	}
	return ledger.NewClient(ledger.Config{
		MessengerURL: cfg.Ledger.MessengerURL,
		ComputeURL:   cfg.Ledger.ComputeURL,
	}, signer), nil
}

// Gateway is the chat half: Discord, the command interpreter, the
// submitter and the transport server.
type Gateway struct {
	Bus       *bus.MessageBus
	Bridge    *relay.Bridge
	Channels  *channels.Manager
	Transport *transport.Server
	window    *dedup.Window
}

func NewGateway(cfg *config.Config, client relay.LedgerSender) (*Gateway, error) {
	mb := bus.NewMessageBus()

	store := langpref.Load(cfg.Relay.LanguageFile)
	interp := commands.NewInterpreter(store,
		lookup.NewWeather(cfg.Lookups.WeatherAPIKey, cfg.Lookups.WeatherCity),
		lookup.NewPrices(cfg.Lookups.CoinAPIKey),
	)
	window := dedup.New(cfg.Relay.DedupTTL.Std())

	server := transport.NewServer(cfg.Transport.Addr, func(ctx context.Context, env bus.RelayMessage) {
		if err := mb.PublishEnvelope(ctx, env); err != nil {
			logger.WarnCF("gateway", "Dropping envelope", map[string]any{"error": err.Error()})
		}
	})

	discord, err := channels.NewDiscordChannel(channels.DiscordConfig{
		Token:     cfg.Discord.Token,
		ChannelID: cfg.Discord.ChannelID,
		AllowFrom: cfg.Discord.AllowFrom,
	}, mb)
	if err != nil {
		return nil, err
	}

	bridge := relay.NewBridge(relay.BridgeConfig{
		Bus:         mb,
		Languages:   store,
		Window:      window,
		Interpreter: interp,
		Submitter:   relay.NewSubmitter(client, cfg.Ledger.ProcessID, cfg.Relay.SubmitAction, cfg.Relay.AnnounceAction),
		Transport:   server,
		ChatID:      cfg.Discord.ChannelID,
	})

	return &Gateway{
		Bus:       mb,
		Bridge:    bridge,
		Channels:  channels.NewManager(mb, discord),
		Transport: server,
		window:    window,
	}, nil
}

// Run serves until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.Transport.Start(ctx); err != nil {
		return err
	}
	if err := g.Channels.StartAll(ctx); err != nil {
		g.shutdown()
		return err
	}

	err := g.Bridge.Run(ctx)
	g.shutdown()
	return err
}

func (g *Gateway) shutdown() {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	g.Bus.Close()
	g.Channels.StopAll(stopCtx)
	g.Transport.Stop(stopCtx)
	g.window.Stop()
}

// Relay is the ledger half: the poller and the transport client it
// forwards through.
type Relay struct {
	Client *transport.Client
	Poller *relay.Poller
	window *dedup.Window
}

func NewRelay(cfg *config.Config, client *ledger.Client) *Relay {
	tc := transport.NewClient(cfg.Transport.URL(), func(_ context.Context, env bus.RelayMessage) {
		logger.DebugCF("relay", "Received envelope", map[string]any{
			"id":      env.ID,
			"content": env.Content,
		})
	}, transport.WithReconnectDelay(cfg.Transport.ReconnectDelay.Std()))

	var announcer relay.Announcer
	if cfg.Relay.Announce {
		announcer = relay.NewSubmitter(client, cfg.Ledger.ProcessID, cfg.Relay.SubmitAction, cfg.Relay.AnnounceAction)
	}

	window := dedup.New(cfg.Relay.DedupTTL.Std())
	poller := relay.NewPoller(client, tc, window, announcer, relay.PollerConfig{
		ProcessID:       cfg.Ledger.PolledProcessID,
		BridgeProcessID: cfg.Ledger.ProcessID,
		SelfNickname:    cfg.Relay.SelfNickname,
		BroadcastAction: cfg.Relay.BroadcastAction,
		Interval:        cfg.Relay.PollInterval.Std(),
		Limit:           cfg.Relay.PollLimit,
	})
	return &Relay{Client: tc, Poller: poller, window: window}
}

// Run polls and keeps the transport connected until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	defer r.window.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Client.Run(ctx) })
	g.Go(func() error {
		r.Poller.Run(ctx)
		return nil
	})
	return g.Wait()
}
