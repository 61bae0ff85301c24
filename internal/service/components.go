// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/engine"
	"github.com/xkilldash9x/igpilot/internal/queue"
)

// shutdownTimeout bounds closing the browser so the profile is flushed.
const shutdownTimeout = 30 * time.Second

// BrowserSession is the session owner as seen by the composition root.
type BrowserSession interface {
	engine.Session
	Shutdown(ctx context.Context) error
}

// Components holds everything the serve and run commands need.
type Components struct {
	Browser BrowserSession
	Queue   *queue.Queue
	Engine  *engine.Engine

	logger *zap.Logger
}

// Shutdown releases components in dependency order: the queue is drained
// first so no job holds a page when the browser goes away.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	if c.Queue != nil {
		c.Queue.Close()
		logger.Debug("Job queue drained.")
	}

	if c.Browser != nil {
		// The caller's context is usually already canceled by a signal here.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.Browser.Shutdown(ctx); err != nil {
			logger.Warn("Error during browser shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser shut down.")
		}
	}

	logger.Info("All components shut down.")
}
