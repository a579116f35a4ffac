package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// PubSubConfig configures the job subscription.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	// MaxOutstanding bounds the messages processed at once. Default 10.
	MaxOutstanding int
	RefreshJob     *RefreshJob
	Health         HealthChecker
	Logger         zerolog.Logger
}

// PubSubHandler receives job messages from a Pub/Sub subscription and runs
// them through a Processor. Trace context published in the message
// attributes is continued.
type PubSubHandler struct {
	client       *pubsub.Client
	subscriber   *pubsub.Subscriber
	subscription string
	processor    *Processor
	logger       zerolog.Logger
}

func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	sub := client.Subscriber(cfg.SubscriptionName)
	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
	if sub.ReceiveSettings.MaxOutstandingMessages <= 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = 10
	}
	// A full refresh may take a while; keep the lease alive meanwhile.
	sub.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:       client,
		subscriber:   sub,
		subscription: cfg.SubscriptionName,
		processor:    NewProcessor(cfg.RefreshJob, cfg.Health, cfg.Logger),
		logger:       cfg.Logger,
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Str("subscription", h.subscription).Msg("receiving jobs")
	return h.subscriber.Receive(ctx, h.handle)
}

func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handle(ctx context.Context, msg *pubsub.Message) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Attributes))
	start := time.Now()

	log := h.logger.With().Str("message_id", msg.ID).Logger()
	if msg.DeliveryAttempt != nil {
		log = log.With().Int("delivery_attempt", *msg.DeliveryAttempt).Logger()
	}

	outcome, err := h.processor.Process(log.WithContext(ctx), msg.Data)
	switch {
	case outcome == Nack:
		log.Error().Err(err).Msg("job failed, requesting redelivery")
		msg.Nack()
		return
	case err != nil:
		log.Warn().Err(err).Msg("dropping message")
	default:
		log.Info().Dur("duration", time.Since(start)).Msg("job completed")
	}
	msg.Ack()
}

// JobPublisher enqueues job messages on a Pub/Sub topic.
type JobPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

func NewJobPublisher(ctx context.Context, projectID, topic string) (*JobPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &JobPublisher{client: client, publisher: client.Publisher(topic)}, nil
}

// Enqueue publishes msg and waits for the server ID. The caller's trace
// context travels in the attributes.
func (p *JobPublisher) Enqueue(ctx context.Context, msg RefreshMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	attrs := map[string]string{"job_type": msg.JobType}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attrs))

	id, err := p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publishing %s: %w", msg.JobType, err)
	}
	return id, nil
}

// Close flushes pending messages and closes the client.
func (p *JobPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}
