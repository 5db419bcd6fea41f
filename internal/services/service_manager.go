package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/events"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/lock"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager.
type ServiceManagerConfig struct {
	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager.
type serviceManager struct {
	repo      repositories.Repository
	locker    lock.Service
	evaluator Evaluator
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	mockTestService MockTestService
	exportService   ExportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a service manager with all dependencies.
func NewServiceManager(repo repositories.Repository, locker lock.Service, evaluator Evaluator, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		repo:      repo,
		locker:    locker,
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration.
func NewDefaultServiceManager(repo repositories.Repository, locker lock.Service, evaluator Evaluator, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	return NewServiceManager(repo, locker, evaluator, publisher, logger, validator, ServiceManagerConfig{
		DefaultTimeout: 30 * time.Second,
	})
}

// Initialize sets up all services and verifies their dependencies.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.mockTestService = NewMockTestService(sm.repo, sm.locker, sm.evaluator, sm.publisher, sm.logger, sm.validator)
	sm.logger.Info("Mock test service initialized")

	sm.exportService = NewExportService(sm.repo, sm.logger)
	sm.logger.Info("Export service initialized")

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

func (sm *serviceManager) MockTest() MockTestService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mockTestService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.exportService
}

func (sm *serviceManager) Repository() repositories.Repository {
	return sm.repo
}

// HealthCheck verifies the manager and its backing stores are usable.
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	checkCtx, cancel := context.WithTimeout(ctx, sm.config.DefaultTimeout)
	defer cancel()
	return sm.repo.Ping(checkCtx)
}

// Shutdown releases the manager's resources.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down")
	return nil
}
