package circles

import (
	"log/slog"
	"time"

	"circles/internal/audit"
	"circles/internal/kv"
	"circles/internal/platform/token"
)

// settings collects the collaborators New assembles a Core from. Every field
// has a default; options override.
type settings struct {
	store     kv.Store
	clock     func() time.Time
	logger    *slog.Logger
	publisher audit.Publisher
	tokens    token.Generator
	masterKey []byte
}

// Option configures New.
type Option func(*settings)

// WithStore selects the key/value backend. The default is the in-memory
// adapter; hosts pass the bbolt, redis, or postgres adapter here.
func WithStore(store kv.Store) Option {
	return func(s *settings) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock overrides the time source for every component: record stamps,
// TTL expiry, invite windows, audit events. Tests pin it to move time
// manually.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditPublisher attaches an audit sink. Without one no events are
// emitted.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *settings) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithTokenGenerator overrides the invite token source. The default reads
// crypto/rand; only tests should need anything else.
func WithTokenGenerator(g token.Generator) Option {
	return func(s *settings) {
		if g != nil {
			s.tokens = g
		}
	}
}

// WithMasterKey seeds purpose-key derivation for invite envelopes. Without
// one an ephemeral random key is generated, which works for a single process
// but makes envelopes from earlier runs undecodable.
func WithMasterKey(key []byte) Option {
	return func(s *settings) {
		if len(key) > 0 {
			s.masterKey = key
		}
	}
}
