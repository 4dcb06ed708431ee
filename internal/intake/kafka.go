package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/bobarin/montage/internal/models"
	"github.com/rs/zerolog/log"
)

// RequestSubmitter is what the consumer hands decoded requests to.
type RequestSubmitter interface {
	Submit(ctx context.Context, req models.RenderRequest) (*models.RenderJob, error)
}

// consumeRetryWait is the pause before rejoining the group after Consume fails.
var consumeRetryWait = 2 * time.Second

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads JSON render requests from a Kafka topic.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler *MessageHandler
	topic   string
	groupID string
	ready   chan struct{}
}

func NewConsumer(cfg ConsumerConfig, submitter RequestSubmitter) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		handler: &MessageHandler{Submitter: submitter},
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		ready:   make(chan struct{}),
	}, nil
}

// Start joins the group and returns once the first session is set up.
// Consumption continues in the background until ctx is cancelled. A failed
// Consume is retried after consumeRetryWait, so Start keeps waiting through
// a missing topic or an unreachable broker.
func (c *Consumer) Start(ctx context.Context) error {
	logger := log.With().Str("component", "kafka").Str("group", c.groupID).Str("topic", c.topic).Logger()
	handler := &groupHandler{messages: c.handler, ready: c.ready, once: &sync.Once{}}
	wait := consumeRetryWait

	go func() {
		for {
			err := c.group.Consume(ctx, []string{c.topic}, handler)
			if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) || ctx.Err() != nil {
				return
			}
			if err != nil {
				logger.Error().Err(err).Dur("retry_in", wait).Msg("consume failed")
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			logger.Error().Err(err).Msg("consumer error")
		}
	}()

	select {
	case <-c.ready:
		logger.Info().Msg("kafka consumer started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

// MessageHandler decodes one message and submits it. It reports whether
// the offset should be committed: malformed or invalid requests are
// committed and dropped, submit failures are left for redelivery.
type MessageHandler struct {
	Submitter RequestSubmitter
}

func (h *MessageHandler) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	req, err := models.ParseRequest(message, ".json")
	if err != nil {
		log.Warn().Str("component", "kafka").Err(err).Msg("dropping invalid render request")
		return true, nil
	}

	job, err := h.Submitter.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			return true, nil
		}
		return false, err
	}

	log.Info().Str("component", "kafka").Str("job_id", job.ID.String()).Msg("render request accepted")
	return true, nil
}

// groupHandler is shared by every session. ready is closed by the first
// Setup only.
type groupHandler struct {
	messages *MessageHandler
	ready    chan struct{}
	once     *sync.Once
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			mark, err := h.messages.HandleMessage(session.Context(), message.Value)
			if err != nil {
				log.Error().Str("component", "kafka").Err(err).
					Int32("partition", message.Partition).Int64("offset", message.Offset).
					Msg("failed to handle message")
			}
			if mark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}
