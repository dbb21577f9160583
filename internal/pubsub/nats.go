package pubsub

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ArslanKamchybekov/trademaxxer/internal/news"
)

// The NATS binding reuses bus channel names verbatim as subjects (none of
// them contain NATS-reserved characters), so in-process and cross-process
// consumers agree on naming bit for bit.

// Publisher fans tagged items out over NATS so other OS processes can
// subscribe with the same channel semantics as the in-memory bus.
type Publisher struct {
	url string
	log zerolog.Logger

	mu  sync.Mutex
	nc  *nats.Conn
	pub func(subject string, data []byte) error
}

// NewPublisher builds a publisher for the given NATS URL.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Connect opens the NATS connection with unlimited reconnects.
func (p *Publisher) Connect() error {
	nc, err := nats.Connect(p.url,
		nats.Name("trademaxxer-publisher"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", p.url, err)
	}
	p.mu.Lock()
	p.nc = nc
	p.pub = nc.Publish
	p.mu.Unlock()
	p.log.Info().Str("url", p.url).Msg("feed publisher connected to nats")
	return nil
}

// Close drains and closes the connection. Safe when never connected.
func (p *Publisher) Close() {
	p.mu.Lock()
	nc := p.nc
	p.nc = nil
	p.pub = nil
	p.mu.Unlock()
	if nc != nil {
		_ = nc.Drain()
	}
}

// PublishItem serializes the item once and publishes the envelope to every
// channel the item belongs to, best-effort: one failing subject never
// starves the remaining channels. Returns the number of channels written
// and the joined errors, if any.
func (p *Publisher) PublishItem(item *news.TaggedItem) (int, error) {
	p.mu.Lock()
	pub := p.pub
	p.mu.Unlock()
	if pub == nil {
		return 0, fmt.Errorf("publisher is not connected")
	}

	data, err := item.MarshalWire()
	if err != nil {
		return 0, fmt.Errorf("serialize item %s: %w", item.ID, err)
	}

	published := 0
	var errs []error
	for _, ch := range ChannelsFor(item) {
		msg, err := EncodeEnvelope(ch, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := pub(ch, msg); err != nil {
			errs = append(errs, fmt.Errorf("nats publish on %q: %w", ch, err))
			continue
		}
		published++
	}
	if len(errs) > 0 {
		return published, errors.Join(errs...)
	}
	p.log.Debug().Str("news_id", item.ID).Int("channels", published).Msg("item published to nats")
	return published, nil
}

// ItemHandler receives one deduplicated item together with the channel it
// first arrived on.
type ItemHandler func(channel string, item *news.TaggedItem)

// seenLimit bounds the subscriber's dedup set; the set resets once it
// overflows, trading a sliver of dedup accuracy for flat memory.
const seenLimit = 500

// Subscriber delivers items from a set of NATS channels with the same
// at-most-once-per-item guarantee the in-memory bus gives per publish.
// Because the broker delivers one message per matching subject, dedup
// happens client-side by item id.
type Subscriber struct {
	url      string
	channels []string
	log      zerolog.Logger

	mu   sync.Mutex
	nc   *nats.Conn
	subs []*nats.Subscription
	seen map[string]struct{}
}

// NewSubscriber builds a subscriber for the given channel set.
func NewSubscriber(url string, channels []string, log zerolog.Logger) (*Subscriber, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("subscriber needs at least one channel")
	}
	return &Subscriber{
		url:      url,
		channels: channels,
		log:      log,
		seen:     make(map[string]struct{}),
	}, nil
}

// Subscribe connects and registers the handler on every configured channel.
// Malformed messages are logged and dropped.
func (s *Subscriber) Subscribe(handler ItemHandler) error {
	nc, err := nats.Connect(s.url,
		nats.Name("trademaxxer-subscriber"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", s.url, err)
	}

	s.mu.Lock()
	s.nc = nc
	s.mu.Unlock()

	for _, ch := range s.channels {
		sub, err := nc.Subscribe(ch, func(msg *nats.Msg) {
			s.handleMessage(msg, handler)
		})
		if err != nil {
			s.Close()
			return fmt.Errorf("nats subscribe on %q: %w", ch, err)
		}
		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}

	s.log.Info().Strs("channels", s.channels).Msg("feed subscriber listening on nats")
	return nil
}

func (s *Subscriber) handleMessage(msg *nats.Msg, handler ItemHandler) {
	channel, data, err := DecodeEnvelope(msg.Data)
	if err != nil {
		s.log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed feed message")
		return
	}
	item, err := news.UnmarshalWire(data)
	if err != nil {
		s.log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping undecodable feed item")
		return
	}

	s.mu.Lock()
	if _, dup := s.seen[item.ID]; dup {
		s.mu.Unlock()
		return
	}
	if len(s.seen) >= seenLimit {
		s.seen = make(map[string]struct{})
	}
	s.seen[item.ID] = struct{}{}
	s.mu.Unlock()

	handler(channel, item)
}

// Close unsubscribes and closes the connection. Safe to call repeatedly.
func (s *Subscriber) Close() {
	s.mu.Lock()
	subs := s.subs
	nc := s.nc
	s.subs = nil
	s.nc = nil
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	if nc != nil {
		_ = nc.Drain()
	}
}
