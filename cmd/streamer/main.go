package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ArslanKamchybekov/trademaxxer/internal/agent"
	"github.com/ArslanKamchybekov/trademaxxer/internal/config"
	"github.com/ArslanKamchybekov/trademaxxer/internal/ingest"
	"github.com/ArslanKamchybekov/trademaxxer/internal/metrics"
	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
	"github.com/ArslanKamchybekov/trademaxxer/internal/pubsub"
	"github.com/ArslanKamchybekov/trademaxxer/internal/tagger"
	"github.com/ArslanKamchybekov/trademaxxer/internal/util"
	"github.com/ArslanKamchybekov/trademaxxer/internal/wsserver"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	// Best effort; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		lg := util.NewLogger("info")
		lg.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus := pubsub.NewBus(log)
	tg := tagger.New(tagger.Config{UseHints: cfg.Tagger.UseHints}, nil, log)

	// Optional cross-process bridge: every tagged item also goes out over
	// the broker, on the same channel names.
	var natsPub *pubsub.Publisher
	if cfg.Nats.Enabled {
		natsPub = pubsub.NewPublisher(cfg.Nats.URL, log)
		if err := natsPub.Connect(); err != nil {
			log.Fatal().Err(err).Str("url", cfg.Nats.URL).Msg("connect nats")
		}
		defer natsPub.Close()
	}

	var srv *wsserver.Server
	if cfg.Broadcast.Enabled {
		srv = wsserver.New(cfg.Broadcast.Addr, bus, log)
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Broadcast.Addr).Msg("start broadcast server")
		}
	}

	listeners := startAgents(cfg, bus, log)

	client := ingest.NewClient(cfg.FeedURL(), log, keepalive(cfg))
	client.OnMessage(func(ctx context.Context, raw *news.RawItem) {
		item, err := tg.Tag(raw)
		if err != nil {
			log.Error().Err(err).Str("news_id", raw.ID).Msg("tagging failed, dropping item")
			return
		}
		channels := pubsub.ChannelsFor(item)
		bus.Publish(ctx, channels, item)
		if natsPub != nil {
			if _, err := natsPub.PublishItem(item); err != nil {
				log.Error().Err(err).Str("news_id", item.ID).Msg("nats publish failed")
			}
		}
	})
	client.OnError(func(err error) {
		log.Warn().Err(err).Msg("feed connection error")
	})
	client.OnReconnect(func() {
		log.Info().Msg("feed reconnected")
	})

	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("connect feed")
	}
	log.Info().Msg("streamer started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	client.Disconnect()
	for _, l := range listeners {
		l.Stop()
	}
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Stop(shutdownCtx)
		shutdownCancel()
	}

	feedStats := client.Stats()
	tagStats := tg.Stats()
	log.Info().
		Int64("frames_received", feedStats.MessagesReceived).
		Int64("items_tagged", tagStats.ItemsTagged).
		Int64("tagging_failures", tagStats.ItemsFailed).
		Int("reconnect_attempts", feedStats.ReconnectAttempts).
		Msg("streamer stopped")
}

// startAgents builds one listener per configured market. A bad market entry
// is logged and skipped rather than taking the pipeline down.
func startAgents(cfg *config.Config, bus *pubsub.Bus, log zerolog.Logger) []*agent.Listener {
	if len(cfg.Markets) == 0 {
		return nil
	}

	scorer := agent.NewOpenAIScorer(agent.ScorerConfig{
		APIKey:   cfg.Scorer.APIKey,
		Endpoint: cfg.Scorer.Endpoint,
		Model:    cfg.Scorer.Model,
		Timeout:  time.Duration(cfg.Scorer.TimeoutMs) * time.Millisecond,
	}, log)

	listeners := make([]*agent.Listener, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		l, err := agent.NewListener(agent.Market{
			Address:            m.Address,
			Question:           m.Question,
			CurrentProbability: m.CurrentProbability,
			Tags:               m.Tags,
		}, scorer, bus, log)
		if err != nil {
			log.Error().Err(err).Str("question", m.Question).Msg("skipping invalid market")
			continue
		}
		l.Start()
		listeners = append(listeners, l)
	}
	return listeners
}

func keepalive(cfg *config.Config) ingest.Option {
	return ingest.WithKeepalive(
		time.Duration(cfg.Feed.PingIntervalSecs)*time.Second,
		time.Duration(cfg.Feed.PongTimeoutSecs)*time.Second,
	)
}
