package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/registry"
	"github.com/veilchat/veilchat/pkg/jid"
)

// DefaultSendTimeout bounds a single provider exchange. APNs and FCM both
// answer within a couple of seconds when healthy; anything slower is treated
// as a failed attempt rather than holding the call-setup path open.
const DefaultSendTimeout = 6 * time.Second

// Registry is the slice of registration storage the dispatcher needs: the
// device list for a callee and quiet removal of tokens the providers have
// condemned.
type Registry interface {
	ListByJID(ctx context.Context, jid string) ([]*registry.Registration, error)
	DeleteQuietly(ctx context.Context, jid, deviceID string) error
}

// Summary reports one fan-out. Counters partition the registrations found:
// Sent + Rejected + SkippedCount + Failed == Registrations.
type Summary struct {
	Registrations int
	Sent          int
	Rejected      int
	SkippedCount  int
	Failed        int
	CleanedUp     int
}

// ProviderStatus describes one push provider for operational reporting.
// LastSuccessAt is the last accepted delivery, LastFailureAt the last
// attempt that did not complete.
type ProviderStatus struct {
	Configured    bool
	LastSuccessAt time.Time
	LastFailureAt time.Time
}

// ServiceConfig holds the dependencies for the push dispatcher.
type ServiceConfig struct {
	Registry Registry

	// Clients maps a device platform to the provider that serves it.
	Clients map[registry.Platform]Client

	// Domain is the XMPP domain used to resolve a callee username to the
	// JID their registrations are stored under.
	Domain string

	// SendTimeout bounds each provider exchange. Zero selects
	// DefaultSendTimeout.
	SendTimeout time.Duration

	Logger zerolog.Logger
}

// Service dispatches call notifications to all of a callee's devices at
// once and prunes registrations the providers report as permanently dead.
type Service struct {
	registry    Registry
	clients     map[registry.Platform]Client
	domain      string
	sendTimeout time.Duration
	logger      zerolog.Logger

	mu          sync.Mutex
	lastSuccess map[registry.Platform]time.Time
	lastFailure map[registry.Platform]time.Time
}

// NewService creates a push dispatcher.
func NewService(cfg ServiceConfig) *Service {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Service{
		registry:    cfg.Registry,
		clients:     cfg.Clients,
		domain:      cfg.Domain,
		sendTimeout: cfg.SendTimeout,
		logger:      cfg.Logger.With().Str("component", "push_dispatcher").Logger(),
		lastSuccess: make(map[registry.Platform]time.Time),
		lastFailure: make(map[registry.Platform]time.Time),
	}
}

// Dispatch resolves the callee's JID, sends the notification to every
// registered device concurrently, and removes registrations whose tokens the
// providers condemned. The returned error covers registry unavailability
// only; per-device delivery trouble is folded into the Summary, because a
// callee with three devices should still ring on two when the third fails.
func (s *Service) Dispatch(ctx context.Context, calleeUsername string, n Notification) (Summary, error) {
	calleeJID := jid.Compose(calleeUsername, s.domain)

	regs, err := s.registry.ListByJID(ctx, calleeJID)
	if err != nil {
		return Summary{}, fmt.Errorf("list push registrations for %s: %w", calleeJID, err)
	}

	summary := Summary{Registrations: len(regs)}
	if len(regs) == 0 {
		s.logger.Info().Str("jid", calleeJID).Str("call_id", n.CallID).Msg("no push registrations for callee")
		return summary, nil
	}

	outcomes := make([]DeliveryOutcome, len(regs))
	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, reg *registry.Registration) {
			defer wg.Done()
			outcomes[i] = s.send(ctx, reg, n)
		}(i, reg)
	}
	wg.Wait()

	now := time.Now()
	var dead []*registry.Registration
	for i, outcome := range outcomes {
		reg := regs[i]
		switch outcome {
		case Delivered:
			summary.Sent++
			s.recordSuccess(reg.Platform, now)
		case PermanentlyRejected:
			summary.Rejected++
			dead = append(dead, reg)
		case Skipped:
			summary.SkippedCount++
		case AttemptFailed:
			summary.Failed++
			s.recordFailure(reg.Platform, now)
		}
		s.logger.Info().
			Str("jid", calleeJID).
			Str("call_id", n.CallID).
			Str("device_id", reg.DeviceID).
			Str("platform", string(reg.Platform)).
			Str("outcome", string(outcome)).
			Msg("call notification dispatched")
	}

	// The caller hanging up mid-dispatch abandons the results: in-flight
	// sends ran to completion above, but nothing is pruned on their behalf.
	if err := ctx.Err(); err != nil {
		s.logger.Warn().Str("jid", calleeJID).Str("call_id", n.CallID).Msg("dispatch context canceled, skipping token cleanup")
		return summary, err
	}

	for _, reg := range dead {
		if err := s.registry.DeleteQuietly(ctx, reg.JID, reg.DeviceID); err != nil {
			s.logger.Warn().Err(err).
				Str("jid", reg.JID).
				Str("device_id", reg.DeviceID).
				Msg("failed to remove dead push registration")
			continue
		}
		summary.CleanedUp++
	}
	if summary.CleanedUp > 0 {
		s.logger.Info().Str("jid", calleeJID).Int("count", summary.CleanedUp).Msg("removed dead push registrations")
	}

	return summary, nil
}

// send runs one provider exchange under its own deadline. The deadline is
// detached from the caller's cancellation: a push already on the wire is
// side-effecting, so it runs to completion even when the call-setup request
// that triggered it goes away.
func (s *Service) send(ctx context.Context, reg *registry.Registration, n Notification) DeliveryOutcome {
	client, ok := s.clients[reg.Platform]
	if !ok {
		s.logger.Warn().
			Str("platform", string(reg.Platform)).
			Str("device_id", reg.DeviceID).
			Msg("no push client for platform")
		return Skipped
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sendTimeout)
	defer cancel()

	return client.Send(sendCtx, reg.PushToken, n)
}

// ProviderStatus reports the configuration and recent health of every wired
// provider, keyed by provider name.
func (s *Service) ProviderStatus() map[string]ProviderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]ProviderStatus, len(s.clients))
	for platform, client := range s.clients {
		statuses[client.Name()] = ProviderStatus{
			Configured:    client.Configured(),
			LastSuccessAt: s.lastSuccess[platform],
			LastFailureAt: s.lastFailure[platform],
		}
	}
	return statuses
}

func (s *Service) recordSuccess(platform registry.Platform, t time.Time) {
	s.mu.Lock()
	s.lastSuccess[platform] = t
	s.mu.Unlock()
}

func (s *Service) recordFailure(platform registry.Platform, t time.Time) {
	s.mu.Lock()
	s.lastFailure[platform] = t
	s.mu.Unlock()
}
