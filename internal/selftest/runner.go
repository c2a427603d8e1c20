package selftest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"livegrid/internal/core/domain"

	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateCompleted
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var ErrNoTrack = errors.New("no remote track within warm-up")

type Config struct {
	URL               string
	WarmUp            time.Duration // max wait for the consumer's first track
	ObservationWindow time.Duration
	SampleInterval    time.Duration
}

func DefaultConfig() Config {
	return Config{
		WarmUp:            15 * time.Second,
		ObservationWindow: 20 * time.Second,
		SampleInterval:    time.Second,
	}
}

// Analytics accumulates what the consumer received.
type Analytics struct {
	DataConsumed float64 `json:"dataConsumed"` // bits
	TimeElapsed  float64 `json:"timeElapsed"`  // seconds
}

// AvgBitrate is the mean received bitrate in kbit/s, rounded.
func (a Analytics) AvgBitrate() int64 {
	if a.TimeElapsed <= 0 {
		return 0
	}
	return int64(math.Round(a.DataConsumed / (a.TimeElapsed * 1000)))
}

type Result struct {
	State     State     `json:"-"`
	Analytics Analytics `json:"analytics"`
	Samples   []int64   `json:"samples"`
	Err       error     `json:"-"`
}

// Success reports whether the run completed and media actually flowed.
func (r *Result) Success() bool {
	return r.State == StateCompleted && r.Analytics.DataConsumed > 0
}

// Record converts the result into the record submitted to the result sink.
func (r *Result) Record() domain.TestResultRecord {
	return domain.TestResultRecord{
		Success:    r.Success(),
		AvgBitrate: r.Analytics.AvgBitrate(),
	}
}

// Runner executes one self-test at a time. Cancelling the context passed to
// Run stops sampling and disconnects both participants.
type Runner struct {
	transport Transport
	cfg       Config
	logger    *zap.SugaredLogger

	mu            sync.Mutex
	state         State
	onStateChange func(State)
}

func NewRunner(transport Transport, cfg Config, logger *zap.SugaredLogger) *Runner {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = time.Second
	}
	return &Runner{
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		state:     StateIdle,
	}
}

// OnStateChange registers fn, called synchronously on every transition.
func (r *Runner) OnStateChange(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChange = fn
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	fn := r.onStateChange
	r.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// Run performs producer connect, producer publish, consumer connect, warm-up
// and observation in that order, then disconnects both. The returned Result
// is never nil; on failure it carries the partial analytics.
func (r *Runner) Run(ctx context.Context, creds domain.SelfTestCredentials) (*Result, error) {
	result := &Result{}
	fail := func(err error) (*Result, error) {
		result.State = StateError
		result.Err = err
		r.setState(StateError)
		r.logger.Warnw("self-test failed", "error", err)
		return result, err
	}

	r.setState(StateConnecting)

	producer, err := r.transport.Connect(ctx, r.cfg.URL, creds.Producer)
	if err != nil {
		return fail(fmt.Errorf("producer connect: %w", err))
	}
	defer r.disconnect("producer", producer)

	if err := producer.PublishVideo(ctx); err != nil {
		return fail(fmt.Errorf("producer publish: %w", err))
	}

	consumer, err := r.transport.Connect(ctx, r.cfg.URL, creds.Consumer)
	if err != nil {
		return fail(fmt.Errorf("consumer connect: %w", err))
	}
	defer r.disconnect("consumer", consumer)

	r.setState(StateConnected)

	if err := r.waitForTrack(ctx, consumer); err != nil {
		return fail(err)
	}

	if err := r.observe(ctx, consumer, result); err != nil {
		return fail(err)
	}

	result.State = StateCompleted
	r.setState(StateCompleted)
	r.logger.Infow("self-test completed",
		"avg_bitrate_kbps", result.Analytics.AvgBitrate(),
		"samples", len(result.Samples),
	)
	return result, nil
}

func (r *Runner) waitForTrack(ctx context.Context, consumer Room) error {
	waitCtx := ctx
	if r.cfg.WarmUp > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.cfg.WarmUp)
		defer cancel()
	}

	err := consumer.WaitForTrack(waitCtx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return ErrNoTrack
	default:
		return fmt.Errorf("consumer subscribe: %w", err)
	}
}

// observe samples the consumer once per interval until the window is covered.
func (r *Runner) observe(ctx context.Context, consumer Room, result *Result) error {
	samplesWanted := int(r.cfg.ObservationWindow / r.cfg.SampleInterval)
	if samplesWanted < 1 {
		samplesWanted = 1
	}
	step := r.cfg.SampleInterval.Seconds()

	ticker := time.NewTicker(r.cfg.SampleInterval)
	defer ticker.Stop()

	for len(result.Samples) < samplesWanted {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			bps := consumer.BitrateSample()
			result.Samples = append(result.Samples, bps)
			result.Analytics.DataConsumed += float64(bps) * step
			result.Analytics.TimeElapsed += step
		}
	}
	return nil
}

func (r *Runner) disconnect(role string, room Room) {
	if err := room.Disconnect(); err != nil {
		r.logger.Warnw("disconnect failed", "role", role, "error", err)
	}
}
