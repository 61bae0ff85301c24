// internal/engine/engine.go
package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/browser"
	"github.com/xkilldash9x/igpilot/internal/collector"
	"github.com/xkilldash9x/igpilot/internal/composer"
	"github.com/xkilldash9x/igpilot/internal/config"
	"github.com/xkilldash9x/igpilot/internal/observability"
	"github.com/xkilldash9x/igpilot/internal/queue"
	"github.com/xkilldash9x/igpilot/internal/site"
)

// -- Interfaces for Dependency Inversion --

// Session owns the persistent browsing context. browser.Manager implements it.
type Session interface {
	EnsureContext(ctx context.Context) error
	WithPage(ctx context.Context, fn func(ctx context.Context, page browser.Page) error) error
	SeedCookies(ctx context.Context, cookies []browser.Cookie) ([]string, error)
}

// finalizeTimeout bounds reading url, title and screenshot after the job
// context has already ended.
const finalizeTimeout = 10 * time.Second

// Engine runs actions one at a time against the shared session.
type Engine struct {
	cfg      config.EngineConfig
	urls     site.URLs
	session  Session
	queue    *queue.Queue
	composer *composer.Flow
	limits   collector.Limits
	logger   *zap.Logger

	now func() time.Time
	// Scroll pause bounds handed to the collector; zero means its defaults.
	minPause, maxPause time.Duration
}

// New wires an Engine. The queue is shared with every other user of session
// and is not closed by the engine.
func New(cfg config.Interface, session Session, q *queue.Queue, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if session == nil {
		return nil, errors.New("session cannot be nil")
	}
	if q == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	ecfg := cfg.Engine()
	urls := site.NewURLs(cfg.Site().BaseURL)
	logger = logger.With(zap.String("component", "action_engine"))

	return &Engine{
		cfg:     ecfg,
		urls:    urls,
		session: session,
		queue:   q,
		composer: composer.NewFlow(urls, composer.Timing{
			ComposerWait:    ecfg.ComposerWait,
			MenuWait:        ecfg.MenuWait,
			ConfirmTimeout:  ecfg.ConfirmTimeout,
			ConfirmInterval: ecfg.ConfirmInterval,
		}, logger),
		limits: collector.Limits{
			DefaultMax:     ecfg.CollectMax,
			MaxCap:         ecfg.CollectMaxCap,
			DefaultTimeout: ecfg.CollectTimeout,
			TimeoutCap:     ecfg.CollectTimeoutCap,
		},
		logger: logger,
		now:    time.Now,
	}, nil
}

// Run executes req on a fresh page once every earlier job has finished.
//
// An unrecognized action is returned as an error before anything is queued.
// A request missing a required parameter yields a failed Result without
// touching the browser. Failures inside the action itself are folded into
// the Result. Only failures to obtain a page (browser launch, tab setup,
// queue shutdown, ctx expiry while waiting) are returned as errors.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		observability.JobsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, err
	}
	if err := req.Validate(action); err != nil {
		observability.JobsTotal.WithLabelValues(string(action), "rejected").Inc()
		return failed(string(action), err), nil
	}

	jobID := uuid.NewString()
	logger := e.logger.With(zap.String("job_id", jobID), zap.String("action", string(action)))
	logger.Info("Queueing action.", zap.Int("queue_depth", e.queue.Len()))

	var res *Result
	start := time.Now()
	err = e.queue.Do(ctx, func(ctx context.Context) error {
		return e.session.WithPage(ctx, func(ctx context.Context, page browser.Page) error {
			res = e.execute(ctx, logger, page, action, req)
			return nil
		})
	})
	elapsed := time.Since(start)
	observability.JobDuration.WithLabelValues(string(action)).Observe(elapsed.Seconds())

	if err != nil {
		observability.JobsTotal.WithLabelValues(string(action), "error").Inc()
		logger.Error("Action could not run.", zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}

	outcome := "failed"
	if res.OK {
		outcome = "ok"
	}
	observability.JobsTotal.WithLabelValues(string(action), outcome).Inc()
	logger.Info("Action finished.",
		zap.Bool("ok", res.OK),
		zap.Bool("need_login", res.NeedLogin),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

// SeedCookies installs cookies into the persistent session, serialized with actions.
func (e *Engine) SeedCookies(ctx context.Context, cookies []browser.Cookie) ([]string, error) {
	var names []string
	err := e.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		names, err = e.session.SeedCookies(ctx, cookies)
		return err
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Health reports whether the session can be established. It does not wait
// behind queued jobs.
func (e *Engine) Health(ctx context.Context) error {
	return e.session.EnsureContext(ctx)
}

// execute dispatches to the action's handler and normalizes the result.
func (e *Engine) execute(ctx context.Context, logger *zap.Logger, page browser.Page, action Action, req Request) *Result {
	res := &Result{Action: string(action)}

	h, err := e.handler(action)
	if err == nil {
		err = h(ctx, logger, page, req, res)
	}
	if err != nil {
		res.OK = false
		res.Error = err.Error()
		logger.Warn("Action failed.", zap.Error(err))
	}

	e.normalize(ctx, logger, page, req, res)
	return res
}

// normalize fills url and title from the page when the handler did not, and
// attaches a screenshot when asked. Each step is best effort.
func (e *Engine) normalize(ctx context.Context, logger *zap.Logger, page browser.Page, req Request, res *Result) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(browser.Detach(ctx), finalizeTimeout)
		defer cancel()
	}

	if res.URL == "" {
		if loc, err := page.Location(ctx); err == nil {
			res.URL = loc
		} else {
			logger.Debug("Could not read page URL.", zap.Error(err))
		}
	}
	if res.Title == "" {
		if title, err := page.Title(ctx); err == nil {
			res.Title = title
		} else {
			logger.Debug("Could not read page title.", zap.Error(err))
		}
	}

	if req.NeedScreenshot {
		buf, err := page.Screenshot(ctx)
		if err != nil {
			logger.Warn("Screenshot failed.", zap.Error(err))
			return
		}
		res.Screenshot = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf)
	}
}

type handlerFunc func(ctx context.Context, logger *zap.Logger, page browser.Page, req Request, res *Result) error

func (e *Engine) handler(action Action) (handlerFunc, error) {
	switch action {
	case ActionLoginCheck:
		return e.loginCheck, nil
	case ActionOpenSettings:
		return e.openSettings, nil
	case ActionFollowersLinks:
		return e.followersLinks, nil
	case ActionNotificationsSubscribers:
		return e.notificationsSubscribers, nil
	case ActionSendMessage:
		return e.sendMessage, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedAction, action)
	}
}
