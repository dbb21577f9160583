// mockfeed serves a synthetic news websocket for local development: connect
// the streamer to ws://localhost:9001/ws and it receives a steady trickle of
// realistic frames without burning real feed credentials.
package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ArslanKamchybekov/trademaxxer/internal/ingest"
	"github.com/ArslanKamchybekov/trademaxxer/internal/util"
)

var samples = []struct {
	text     string
	newsType string
	handle   string
	coins    []string
	tags     []string
	priority bool
}{
	{
		text:     "BREAKING: Federal Reserve holds rates steady, signals one cut this year",
		newsType: "news",
		coins:    nil,
		tags:     []string{"HOT"},
		priority: true,
	},
	{
		text:     "Bitcoin breaks above $100k as ETF inflows hit record highs",
		newsType: "news",
		coins:    []string{"BTC"},
		tags:     []string{"WARM"},
		priority: false,
	},
	{
		text:     "Ethereum devs confirm next upgrade ships in Q3",
		newsType: "twitter",
		handle:   "evan_van_ness",
		coins:    []string{"ETH"},
		priority: false,
	},
	{
		text:     "Solana network activity surges on memecoin launch wave",
		newsType: "telegram",
		coins:    []string{"SOL"},
		priority: false,
	},
	{
		text:     "Tesla misses delivery estimates, shares slide in premarket trading",
		newsType: "news",
		priority: false,
	},
}

func main() {
	addr := flag.String("addr", ":9001", "listen address")
	interval := flag.Duration("interval", 2*time.Second, "delay between frames")
	malformedRate := flag.Float64("malformed", 0, "fraction of frames emitted as garbage (0-1)")
	flag.Parse()

	log := util.NewLogger("info")
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("upgrade failed")
			return
		}
		defer conn.Close()
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for range ticker.C {
			frame, err := nextFrame(*malformedRate)
			if err != nil {
				log.Error().Err(err).Msg("build frame")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Info().Err(err).Msg("client disconnected")
				return
			}
		}
	})

	log.Info().Str("addr", *addr).Msg("mock feed up")
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal().Err(err).Msg("mock feed stopped")
	}
}

// nextFrame produces one wire frame, occasionally garbage when a malformed
// rate is set so downstream drop handling can be exercised.
func nextFrame(malformedRate float64) ([]byte, error) {
	if malformedRate > 0 && rand.Float64() < malformedRate {
		return []byte("{not json"), nil
	}

	s := samples[rand.Intn(len(samples))]
	rec := ingest.Record{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
		Text:             s.text,
		NewsType:         s.newsType,
		TwitterHandle:    s.handle,
		Coins:            s.coins,
		HighlightedWords: s.coins,
		Tags:             s.tags,
		IsHighlight:      s.priority,
	}
	return json.Marshal(rec)
}
