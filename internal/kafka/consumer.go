package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l1detections"
)

// FrameSubmitter accepts decoded frames. pipeline.Dispatcher satisfies it.
type FrameSubmitter interface {
	SubmitAsync(ctx context.Context, frame l1detections.Frame) error
}

// Ingest consumes detection frames from a topic and hands them to a
// FrameSubmitter. Offsets are marked once a frame is queued, so a frame
// that cannot be decoded is logged and skipped rather than retried.
type Ingest struct {
	group      sarama.ConsumerGroup
	topic      string
	submit     FrameSubmitter
	retryDelay time.Duration
}

// NewConsumerConfig returns the sarama settings used for frame ingest.
func NewConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	return config
}

// NewIngest joins the consumer group.
func NewIngest(brokers []string, groupID, topic string, submit FrameSubmitter) (*Ingest, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, NewConsumerConfig())
	if err != nil {
		return nil, err
	}
	return NewIngestFromGroup(group, topic, submit), nil
}

// NewIngestFromGroup wraps an existing consumer group.
func NewIngestFromGroup(group sarama.ConsumerGroup, topic string, submit FrameSubmitter) *Ingest {
	return &Ingest{
		group:      group,
		topic:      topic,
		submit:     submit,
		retryDelay: 5 * time.Second,
	}
}

// Run consumes until ctx is cancelled, rejoining the group after each
// rebalance and retrying after errors.
func (in *Ingest) Run(ctx context.Context) {
	handler := &frameHandler{submit: in.submit}

	go func() {
		for err := range in.group.Errors() {
			monitoring.Logf("[kafka] consumer error: %v", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			monitoring.Logf("[kafka] ingest stopping: %v", ctx.Err())
			return
		}
		err := in.group.Consume(ctx, []string{in.topic}, handler)
		switch {
		case err == nil:
			continue
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return
		}
		monitoring.Logf("[kafka] consume error: %v, retrying in %v", err, in.retryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(in.retryDelay):
		}
	}
}

// Close leaves the consumer group.
func (in *Ingest) Close() error {
	return in.group.Close()
}

// frameHandler implements sarama.ConsumerGroupHandler.
type frameHandler struct {
	submit FrameSubmitter
}

func (h *frameHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *frameHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *frameHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handle(sess.Context(), msg); err != nil {
				if sess.Context().Err() != nil {
					// not marked: redelivered after the rebalance
					return nil
				}
				monitoring.Logf("[kafka] %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

func (h *frameHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	frame, err := l1detections.DecodeFrame(msg.Value)
	if err != nil {
		return err
	}
	if frame.Timestamp.IsZero() && !msg.Timestamp.IsZero() {
		frame.Timestamp = msg.Timestamp
	}
	return h.submit.SubmitAsync(ctx, frame)
}
