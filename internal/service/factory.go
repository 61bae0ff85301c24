// File: internal/service/factory.go
package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/browser"
	"github.com/xkilldash9x/igpilot/internal/config"
	"github.com/xkilldash9x/igpilot/internal/engine"
	"github.com/xkilldash9x/igpilot/internal/queue"
)

// ComponentFactory creates the component set. The abstraction lets the
// commands run against fakes in tests.
type ComponentFactory interface {
	Create(cfg config.Interface, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory returns the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires the browser manager, the job queue and the engine. The
// browser is launched lazily by the first job or health check.
func (f *concreteFactory) Create(cfg config.Interface, logger *zap.Logger) (*Components, error) {
	manager := browser.NewManager(cfg.Browser(), cfg.Site(), logger)
	return Assemble(cfg, manager, logger)
}

// Assemble builds Components around an existing session.
func Assemble(cfg config.Interface, session BrowserSession, logger *zap.Logger) (*Components, error) {
	components := &Components{
		Browser: session,
		logger:  logger,
	}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	components.Queue = queue.New(logger, cfg.Engine().QueueSize)

	eng, err := engine.New(cfg, session, components.Queue, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create action engine: %w", err)
		return nil, initializationErr
	}
	components.Engine = eng

	logger.Debug("Components initialized.",
		zap.Int("queue_size", cfg.Engine().QueueSize),
		zap.String("profile_dir", cfg.Browser().ProfileDir),
	)
	return components, nil
}
