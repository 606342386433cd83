// Package retry runs fallible operations with bounded exponential backoff.
//
// It knows nothing about what is being retried: a Classifier decides which
// failures are transient and how to label them, and observers are notified
// before every sleep.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts is the default number of attempts, including the first.
	DefaultMaxAttempts = 3
	// DefaultInitialDelay is the default delay before the first retry.
	DefaultInitialDelay = 1 * time.Second
	// DefaultMaxDelay is the default cap on a single delay.
	DefaultMaxDelay = 30 * time.Second
	// DefaultFactor is the default backoff multiplier.
	DefaultFactor = 2.0
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts  int           `yaml:"max_attempts,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	Factor       float64       `yaml:"factor,omitempty"`
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Factor:       DefaultFactor,
	}
}

// withDefaults fills zero fields. MaxAttempts below one means a single attempt.
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Factor < 1 {
		p.Factor = DefaultFactor
	}
	return p
}

// Delay returns the wait before retry n (n >= 1):
// min(MaxDelay, InitialDelay * Factor^(n-1)).
func (p Policy) Delay(n int) time.Duration {
	b := p.backOff()
	var d time.Duration
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// backOff builds a jitter-free exponential backoff for the policy.
func (p Policy) backOff() *backoff.ExponentialBackOff {
	p = p.withDefaults()
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.Multiplier = p.Factor
	eb.MaxInterval = p.MaxDelay
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0 // attempts bound the loop, not wall time
	eb.Reset()
	return eb
}

// Decision is a Classifier's verdict on a failure.
type Decision struct {
	Err       error  // error to record and eventually return
	Label     string // classification reported to observers
	Retryable bool
}

// Classifier inspects a failure. It runs exactly once per failed attempt.
type Classifier func(err error) Decision

// Event describes a scheduled retry.
type Event struct {
	Attempt int // zero-indexed retry number; 0 is the first retry
	Delay   time.Duration
	Label   string
	Err     error
}

// Option configures a single Do call.
type Option func(*options)

type options struct {
	classify Classifier
	notify   []func(Event)
	timer    backoff.Timer
	logger   zerolog.Logger
}

// WithClassifier sets the failure classifier. By default every error is retried.
func WithClassifier(c Classifier) Option {
	return func(o *options) { o.classify = c }
}

// WithNotify registers an observer called before each backoff sleep.
func WithNotify(fn func(Event)) Option {
	return func(o *options) { o.notify = append(o.notify, fn) }
}

// WithTimer replaces the timer used for backoff sleeps.
func WithTimer(t backoff.Timer) Option {
	return func(o *options) { o.timer = t }
}

// WithLogger sets the logger used for retry events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy's attempts are exhausted. The last classified error is returned.
// Context cancellation stops the loop at the next attempt boundary or
// during a sleep.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), opts ...Option) (T, error) {
	o := options{
		classify: func(err error) Decision {
			return Decision{Err: err, Retryable: true}
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	p = p.withDefaults()
	b := backoff.WithContext(
		backoff.WithMaxRetries(p.backOff(), uint64(p.MaxAttempts-1)), //nolint:gosec // MaxAttempts >= 1
		ctx,
	)

	var (
		result  T
		last    Decision
		retries int
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		last = o.classify(err)
		if last.Err == nil {
			last.Err = err
		}
		if !last.Retryable {
			return backoff.Permanent(last.Err)
		}
		return last.Err
	}

	notify := func(err error, delay time.Duration) {
		ev := Event{Attempt: retries, Delay: delay, Label: last.Label, Err: err}
		retries++
		o.logger.Warn().
			Int("attempt", ev.Attempt).
			Dur("delay", ev.Delay).
			Str("kind", ev.Label).
			Err(err).
			Msg("Retryable failure, backing off")
		for _, fn := range o.notify {
			fn(ev)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, b, notify, o.timer)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
