package viewer

import (
	"context"
	"log/slog"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/amp-labs/nestfsm/statemachine"
)

const (
	// DefaultInterval publishes four snapshots per second.
	DefaultInterval = 250 * time.Millisecond
	// DefaultKeepAlive bounds how long an unchanged snapshot is withheld.
	// It stays below the store's default expiry.
	DefaultKeepAlive = time.Second

	finalPublishTimeout = time.Second
)

// Publisher periodically publishes the snapshot of one machine.
type Publisher struct {
	name      string
	sm        *statemachine.StateMachine
	sink      Sink
	interval  time.Duration
	keepAlive time.Duration
	logger    *slog.Logger

	lastHash uint64
	lastSent time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithInterval sets the publishing period.
func WithInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithKeepAlive skips unchanged snapshots until d has passed since the last
// publish. Zero publishes every tick.
func WithKeepAlive(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.keepAlive = d
	}
}

// WithPublisherLogger sets the logger for publish failures.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher creates a publisher for sm under name.
func NewPublisher(name string, sm *statemachine.StateMachine, sink Sink, opts ...PublisherOption) *Publisher {
	if name == "" {
		name = sm.Name()
	}

	p := &Publisher{
		name:      name,
		sm:        sm,
		sink:      sink,
		interval:  DefaultInterval,
		keepAlive: DefaultKeepAlive,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PublishOnce publishes the current snapshot unless it is unchanged and the
// keep-alive has not elapsed. It reports whether a snapshot was sent.
func (p *Publisher) PublishOnce(ctx context.Context) (bool, error) {
	payload, err := Encode(Snapshot(p.name, p.sm))
	if err != nil {
		return false, err
	}

	hash := xxhash.Checksum64(payload)
	now := time.Now()

	if p.keepAlive > 0 && hash == p.lastHash && now.Sub(p.lastSent) < p.keepAlive {
		publishTotal.WithLabelValues(p.name, "skipped").Inc()

		return false, nil
	}

	err = p.sink.Publish(ctx, payload)
	if err != nil {
		publishTotal.WithLabelValues(p.name, "error").Inc()

		return false, err
	}

	p.lastHash = hash
	p.lastSent = now

	publishTotal.WithLabelValues(p.name, "sent").Inc()

	return true, nil
}

// Run publishes until ctx is done, then publishes one final snapshot so that
// viewers see the machine settle. Publish failures are logged, not returned.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.publish(ctx)

		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalPublishTimeout)
			p.lastHash = 0
			p.publish(finalCtx)
			cancel()

			return nil
		case <-ticker.C:
		}
	}
}

func (p *Publisher) publish(ctx context.Context) {
	_, err := p.PublishOnce(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to publish state machine snapshot",
			"machine", p.name,
			"error", err,
		)
	}
}
