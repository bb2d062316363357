package media

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/kbukum/gokit/process"
	"github.com/kbukum/gokit/resilience"
)

// defaultGracePeriod is how long a cancelled process gets between SIGTERM and SIGKILL.
const defaultGracePeriod = 5 * time.Second

// Observer is notified after every external process invocation.
type Observer func(tool string, elapsed time.Duration, err error)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// MaxConcurrent bounds the number of external processes running at once
	// across all requests. Zero disables the limit.
	MaxConcurrent int
	// QueueWait is how long a call waits for a free slot before failing.
	QueueWait time.Duration
	// Timeout bounds a single invocation. Zero means no per-invocation limit.
	Timeout time.Duration
	// GracePeriod is the delay between SIGTERM and SIGKILL on cancellation.
	GracePeriod time.Duration
	// Observer receives timing and outcome of every invocation. May be nil.
	Observer Observer
}

// Runner executes external binaries with a concurrency limit and a timeout.
type Runner struct {
	bulkhead *resilience.Bulkhead
	adapter  *process.Adapter
	observer Observer
}

// NewRunner creates a Runner from cfg.
func NewRunner(cfg RunnerConfig) *Runner {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	r := &Runner{
		// The adapter applies the per-invocation timeout and the grace period.
		adapter: process.NewAdapter(process.Config{
			Name:        "transcoder",
			GracePeriod: grace,
			Timeout:     cfg.Timeout,
		}),
		observer: cfg.Observer,
	}
	if cfg.MaxConcurrent > 0 {
		r.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "transcoder",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.QueueWait,
		})
	}
	return r
}

// Run executes binary with args and returns its stdout.
// A non-zero exit is reported as *FFmpegError carrying stderr. When the
// concurrency limit is saturated it returns an error wrapping
// resilience.ErrBulkheadFull or resilience.ErrBulkheadTimeout.
func (r *Runner) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	if r.bulkhead == nil {
		return r.exec(ctx, binary, args)
	}
	return resilience.ExecuteWithResult(ctx, r.bulkhead, func() ([]byte, error) {
		return r.exec(ctx, binary, args)
	})
}

func (r *Runner) exec(ctx context.Context, binary string, args []string) ([]byte, error) {
	start := time.Now()
	res, err := r.adapter.Run(ctx, process.Command{Binary: binary, Args: args})

	elapsed := time.Since(start)
	if res != nil {
		elapsed = res.Duration
	}

	// Cancellation and timeouts keep their context error so callers can tell them apart
	if err != nil && !isContextError(err) {
		ffErr := &FFmpegError{Args: args, Err: err}
		if res != nil {
			ffErr.Stderr = string(res.Stderr)
		}
		err = ffErr
	}

	if r.observer != nil {
		r.observer(filepath.Base(binary), elapsed, err)
	}

	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// InUse reports how many invocations currently hold a slot.
func (r *Runner) InUse() int {
	if r.bulkhead == nil {
		return 0
	}
	return r.bulkhead.InUse()
}
