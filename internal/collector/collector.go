// internal/collector/collector.go
package collector

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/site"
)

// Extractor returns the items currently visible on the page.
type Extractor func(ctx context.Context) ([]site.Item, error)

// Scroller advances the list by one step and reports whether a modal
// container (rather than the document) was scrolled.
type Scroller func(ctx context.Context) (bool, error)

// StopReason names the condition that ended a run.
type StopReason string

const (
	ReasonCeiling    StopReason = "ceiling"
	ReasonTimeout    StopReason = "timeout"
	ReasonStagnation StopReason = "stagnation"
	ReasonCanceled   StopReason = "canceled"
)

const (
	DefaultStagnationLimit = 4
	DefaultMinPause        = 350 * time.Millisecond
	DefaultMaxPause        = 750 * time.Millisecond
)

// Options bounds one collection run.
type Options struct {
	Max             int
	Timeout         time.Duration
	StagnationLimit int
	MinPause        time.Duration
	MaxPause        time.Duration

	// Test hooks.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func (o *Options) applyDefaults() {
	if o.Max <= 0 {
		o.Max = DefaultLimits.DefaultMax
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultLimits.DefaultTimeout
	}
	if o.StagnationLimit <= 0 {
		o.StagnationLimit = DefaultStagnationLimit
	}
	if o.MinPause <= 0 {
		o.MinPause = DefaultMinPause
	}
	if o.MaxPause <= 0 {
		o.MaxPause = DefaultMaxPause
	}
	if o.MaxPause < o.MinPause {
		o.MaxPause = o.MinPause
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.sleep == nil {
		o.sleep = sleepCtx
	}
}

// Limits holds the default and maximum size and time ceilings.
type Limits struct {
	DefaultMax     int
	MaxCap         int
	DefaultTimeout time.Duration
	TimeoutCap     time.Duration
}

// DefaultLimits are used when no configuration is supplied.
var DefaultLimits = Limits{
	DefaultMax:     300,
	MaxCap:         2000,
	DefaultTimeout: 30 * time.Second,
	TimeoutCap:     120 * time.Second,
}

// Resolve turns caller supplied ceilings (zero or negative meaning unset)
// into effective ones clamped to the caps.
func (l Limits) Resolve(size int, timeout time.Duration) (int, time.Duration) {
	if size <= 0 {
		size = l.DefaultMax
	}
	if size > l.MaxCap {
		size = l.MaxCap
	}
	if timeout <= 0 {
		timeout = l.DefaultTimeout
	}
	if timeout > l.TimeoutCap {
		timeout = l.TimeoutCap
	}
	return size, timeout
}

// Outcome is the result of a run. Items are in first-seen order.
type Outcome struct {
	Items      []site.Item
	Count      int
	HadModal   bool
	ReachedEnd bool
	Reason     StopReason
	Elapsed    time.Duration
}

// Run repeatedly extracts, merges by key and scrolls until the size ceiling,
// the time ceiling or the stagnation limit is hit. A failed extraction or
// scroll step counts as a batch with no new items. Extraction and scrolling
// run under a context bounded by the time ceiling, so a slow step cannot
// carry the run past it.
func Run(ctx context.Context, logger *zap.Logger, extract Extractor, scroll Scroller, opts Options) Outcome {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		items      = make(map[string]site.Item)
		order      []string
		stagnation int
		hadModal   bool
		reason     StopReason
		start      = opts.now()
	)

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	// interrupted separates a caller cancel from the run's own deadline.
	interrupted := func() (StopReason, bool) {
		switch {
		case ctx.Err() != nil:
			return ReasonCanceled, true
		case runCtx.Err() != nil:
			return ReasonTimeout, true
		}
		return "", false
	}

	for {
		if r, stop := interrupted(); stop {
			reason = r
			break
		}

		before := len(items)
		batch, err := extract(runCtx)
		if err != nil {
			logger.Debug("Extraction step failed.", zap.Error(err))
		}
		for _, it := range batch {
			if it.Key == "" {
				continue
			}
			if _, ok := items[it.Key]; !ok {
				order = append(order, it.Key)
			}
			items[it.Key] = it
		}

		if len(items) > before {
			stagnation = 0
		} else {
			stagnation++
		}

		elapsed := opts.now().Sub(start)
		if len(items) >= opts.Max {
			reason = ReasonCeiling
			break
		}
		if r, stop := interrupted(); stop {
			reason = r
			break
		}
		if elapsed >= opts.Timeout {
			reason = ReasonTimeout
			break
		}
		if stagnation >= opts.StagnationLimit {
			reason = ReasonStagnation
			break
		}

		modal, err := scroll(runCtx)
		if err != nil {
			logger.Debug("Scroll step failed.", zap.Error(err))
		}
		hadModal = hadModal || modal

		pause := jitter(opts.MinPause, opts.MaxPause)
		if remaining := opts.Timeout - opts.now().Sub(start); pause > remaining {
			pause = remaining
		}
		if pause > 0 {
			if err := opts.sleep(runCtx, pause); err != nil {
				reason = ReasonCanceled
				if r, stop := interrupted(); stop {
					reason = r
				}
				break
			}
		}
	}

	if len(order) > opts.Max {
		order = order[:opts.Max]
	}
	out := Outcome{
		Items:      make([]site.Item, 0, len(order)),
		HadModal:   hadModal,
		Reason:     reason,
		ReachedEnd: reason == ReasonCeiling || reason == ReasonStagnation,
		Elapsed:    opts.now().Sub(start),
	}
	for _, k := range order {
		out.Items = append(out.Items, items[k])
	}
	out.Count = len(out.Items)

	logger.Debug("Collection finished.",
		zap.Int("count", out.Count),
		zap.String("reason", string(reason)),
		zap.Duration("elapsed", out.Elapsed),
	)
	return out
}

func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
