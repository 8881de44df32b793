package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SettingsService exposes the maintenance-mode flag, cached for a short TTL
// so the check stays cheap on every request.
//
// The check fails open: when Redis is unreachable the last cached value (or
// false) is returned, trading strict shutdown guarantees for availability.
type SettingsService struct {
	redisService *RedisService
	logger       *zap.Logger

	mu          sync.Mutex
	maintenance bool
	fetchedAt   time.Time
}

func NewSettingsService(redisService *RedisService, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		redisService: redisService,
		logger:       logger,
	}
}

func (s *SettingsService) IsMaintenanceMode(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.fetchedAt) < MaintenanceCacheTTL {
		return s.maintenance
	}

	enabled, err := s.redisService.GetMaintenanceFlag(ctx)
	if err != nil {
		s.logger.Warn("maintenance flag unavailable, failing open",
			zap.Error(err), zap.Bool("cached", s.maintenance))
		s.fetchedAt = time.Now()
		return s.maintenance
	}

	s.maintenance = enabled
	s.fetchedAt = time.Now()
	return s.maintenance
}

// SetMaintenanceMode writes through to the store and refreshes the cache so
// operator toggles take effect immediately on this instance.
func (s *SettingsService) SetMaintenanceMode(ctx context.Context, enabled bool) error {
	if err := s.redisService.SetMaintenanceFlag(ctx, enabled); err != nil {
		return err
	}

	s.mu.Lock()
	s.maintenance = enabled
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return nil
}
