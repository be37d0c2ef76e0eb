package registry

import (
	"context"
	"time"

	"github.com/veilchat/veilchat/internal/api/models"
)

// Service provides registration operations.
type Service struct {
	repo Repository
}

// NewService creates a new registration service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register stores or refreshes a device registration.
func (s *Service) Register(ctx context.Context, input *models.PushRegisterRequest) error {
	reg := &Registration{
		JID:          input.JID,
		DeviceID:     input.DeviceID,
		Platform:     Platform(input.Platform),
		PushToken:    input.PushToken,
		AppID:        input.AppID,
		RegisteredAt: time.Now(),
	}

	return s.repo.Upsert(ctx, reg)
}

// Deregister removes a device registration.
// Returns ErrNotFound when the pair was never registered.
func (s *Service) Deregister(ctx context.Context, jid, deviceID string) error {
	return s.repo.Delete(ctx, jid, deviceID)
}

// Devices lists an account's registrations in the API shape.
func (s *Service) Devices(ctx context.Context, jid string) ([]models.Device, error) {
	regs, err := s.repo.ListByJID(ctx, jid)
	if err != nil {
		return nil, err
	}

	devices := make([]models.Device, 0, len(regs))
	for _, reg := range regs {
		devices = append(devices, models.Device{
			DeviceID:     reg.DeviceID,
			Platform:     models.Platform(reg.Platform),
			AppID:        reg.AppID,
			TokenLast4:   reg.TokenLast4(),
			RegisteredAt: models.Timestamp(reg.RegisteredAt),
		})
	}
	return devices, nil
}

// RemoveAll deletes every registration for an account. Account deletion
// cascades through this so the cache drops the JID too.
func (s *Service) RemoveAll(ctx context.Context, jid string) (int64, error) {
	return s.repo.DeleteByJID(ctx, jid)
}

// Purge removes registrations last written before the cutoff and reports
// the count. The worker sweep calls this on its interval.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.PurgeOlderThan(ctx, cutoff)
}
