package throttle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Admission describes one granted admission.
type Admission struct {
	// Class is the name of the limiter that admitted the request.
	Class string

	// Time is the timestamp recorded in the history.
	Time time.Time

	// Waited is the time spent blocked before admission.
	Waited time.Duration

	// Retries is the number of retry sleeps taken.
	Retries int

	// HistorySize is the window occupancy right after admission.
	HistorySize int
}

// Observer is notified after every granted admission. Observers are called
// outside the limiter's lock and must not block for long.
type Observer interface {
	ObserveAdmission(a Admission)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(a Admission)

// ObserveAdmission calls f(a).
func (f ObserverFunc) ObserveAdmission(a Admission) {
	f(a)
}

// settings holds the collaborators shared by a registry and its limiters.
type settings struct {
	clock     Clock
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	observers []Observer
}

func defaultSettings() settings {
	return settings{
		clock:  RealClock(),
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("throttle"),
	}
}

// Option configures a Limiter or a Registry.
type Option func(s *settings)

// WithClock sets the time source.
func WithClock(clock Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithTracer sets the OpenTelemetry tracer used for admission spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = tracer
	}
}

// WithObserver adds an admission observer.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		s.observers = append(s.observers, o)
	}
}

// Limiter is a sliding-window admission gate. It records one timestamp per
// admitted request and blocks callers while the window is full.
type Limiter struct {
	name   string
	config Config
	settings

	mu      sync.Mutex
	history []time.Time
}

// NewLimiter creates a limiter with an empty history.
func NewLimiter(name string, config Config, opts ...Option) *Limiter {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return newLimiter(name, config, s)
}

func newLimiter(name string, config Config, s settings) *Limiter {
	capacity := 0
	if config.Engaged() {
		capacity = config.RequestLimit
	}
	return &Limiter{
		name:     name,
		config:   config,
		settings: s,
		history:  make([]time.Time, 0, capacity),
	}
}

// Name returns the name of the class that created the limiter.
func (l *Limiter) Name() string {
	return l.name
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// WindowDuration returns the rolling window length.
func (l *Limiter) WindowDuration() time.Duration {
	return l.config.WindowDuration
}

// RequestLimit returns the maximum admissions per window.
func (l *Limiter) RequestLimit() int {
	return l.config.RequestLimit
}

// RetryDelay returns the sleep length used while blocked.
func (l *Limiter) RetryDelay() time.Duration {
	return l.config.RetryDelay
}

// HistorySize returns the number of admissions currently inside the window.
// It trims expired entries and refreshes the history size gauge.
func (l *Limiter) HistorySize() int {
	if !l.config.Engaged() {
		return 0
	}

	l.mu.Lock()
	l.trimLocked(l.clock.Now())
	size := len(l.history)
	l.mu.Unlock()

	l.metrics.UpdateHistorySize(l.name, size)
	return size
}

// History returns a copy of the recorded timestamps in chronological order.
func (l *Limiter) History() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]time.Time, len(l.history))
	copy(out, l.history)
	return out
}

// Admit blocks until the request can be admitted within the window, then
// records it. It polls every RetryDelay while the window is full and only
// returns an error if ctx ends first. A disengaged limiter admits at once
// without recording anything.
func (l *Limiter) Admit(ctx context.Context) error {
	if !l.config.Engaged() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := l.tracer.Start(ctx, "throttle.admit",
		trace.WithAttributes(
			attribute.String("throttle.class", l.name),
			attribute.Int("throttle.request_limit", l.config.RequestLimit),
			attribute.Int64("throttle.window_ms", l.config.WindowDuration.Milliseconds()),
		),
	)
	defer span.End()

	start := l.clock.Now()
	retries := 0

	for {
		admittedAt, size, ok := l.tryAdmit()
		if ok {
			waited := admittedAt.Sub(start)
			span.SetAttributes(
				attribute.Int("throttle.retries", retries),
				attribute.Int64("throttle.waited_ms", waited.Milliseconds()),
			)
			span.SetStatus(codes.Ok, "")

			l.metrics.RecordAdmission(l.name, waited.Seconds(), size)
			l.notify(Admission{
				Class:       l.name,
				Time:        admittedAt,
				Waited:      waited,
				Retries:     retries,
				HistorySize: size,
			})
			return nil
		}

		retries++
		l.metrics.RecordBlocked(l.name)
		l.logger.Debug("request limit reached, sleeping",
			"class", l.name,
			"history_size", size,
			"request_limit", l.config.RequestLimit,
			"retry_delay", l.config.RetryDelay,
			"retries", retries,
		)

		if err := l.clock.Sleep(ctx, l.config.RetryDelay); err != nil {
			l.metrics.RecordCanceled(l.name)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
}

// tryAdmit performs trim, size check and append as one critical section.
func (l *Limiter) tryAdmit() (time.Time, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.trimLocked(now)

	if len(l.history) >= l.config.RequestLimit {
		return now, len(l.history), false
	}

	l.history = append(l.history, now)
	return now, len(l.history), true
}

// trimLocked drops timestamps strictly older than now-window.
// Caller must hold l.mu.
func (l *Limiter) trimLocked(now time.Time) {
	cutoff := now.Add(-l.config.WindowDuration)

	i := 0
	for i < len(l.history) && l.history[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	l.history = append(l.history[:0], l.history[i:]...)
}

func (l *Limiter) notify(a Admission) {
	for _, o := range l.observers {
		o.ObserveAdmission(a)
	}
}
