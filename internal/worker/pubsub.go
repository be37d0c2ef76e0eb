package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/internal/push"
)

// ErrDropEvent marks a call event that must be acked without dispatch: a
// body that cannot be parsed or fails validation will not get better on
// redelivery.
var ErrDropEvent = errors.New("dropping call event")

// Dispatcher is the slice of the push service the subscriber needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, calleeUsername string, n push.Notification) (push.Summary, error)
}

// CallEventProcessor turns one Pub/Sub call-event payload into a push
// dispatch. The payload is the same JSON body the call-notify webhook
// accepts; signaling hosts that cannot reach the facade directly publish
// it here instead.
type CallEventProcessor struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewCallEventProcessor creates a call-event processor.
func NewCallEventProcessor(dispatcher Dispatcher, logger zerolog.Logger) *CallEventProcessor {
	return &CallEventProcessor{
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "call_events").Logger(),
	}
}

// Process validates and dispatches one call event. Errors wrapping
// ErrDropEvent mean the message is poison and must not be redelivered;
// any other error means dispatch could not run (registry down) and the
// message should come back.
func (p *CallEventProcessor) Process(ctx context.Context, data []byte) error {
	var req models.CallNotifyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrDropEvent, err)
	}

	if errs := req.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: validation failed: %v", ErrDropEvent, errs)
	}

	callType := req.CallType
	if callType == "" {
		callType = models.CallTypeAudio
	}

	summary, err := p.dispatcher.Dispatch(ctx, req.CalleeUsername, push.Notification{
		CallerName: req.CallerName(),
		CallID:     req.CallID,
		CallType:   string(callType),
	})
	if err != nil {
		return fmt.Errorf("dispatch call event: %w", err)
	}

	p.logger.Info().
		Str("call_id", req.CallID).
		Str("callee", req.CalleeUsername).
		Int("registrations", summary.Registrations).
		Int("sent", summary.Sent).
		Msg("call event dispatched")

	return nil
}

// PubSubHandler receives call events from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *CallEventProcessor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Call events are latency-sensitive but cheap; a modest window keeps
	// one slow provider from piling up extensions.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 32
	subscriber.ReceiveSettings.MaxExtension = time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        NewCallEventProcessor(cfg.Dispatcher, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until the context is canceled. A failed receive
// restarts under exponential backoff rather than taking the worker down;
// transient Pub/Sub trouble should not require a redeploy.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting call-event subscriber")

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
			h.handleMessage(ctx, msg)
		})
		if err != nil {
			h.logger.Error().Err(err).Msg("pubsub receive failed, restarting")
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	err := h.processor.Process(ctx, msg.Data)
	switch {
	case err == nil:
		msg.Ack()
	case errors.Is(err, ErrDropEvent):
		// Poison messages ack so they are not retried forever.
		logger.Warn().Err(err).Msg("dropping malformed call event")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("call event dispatch failed, will retry")
		msg.Nack()
	}
}
