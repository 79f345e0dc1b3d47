package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	kafka "github.com/vogiaan1904/pelotond/internal/delivery/kafka"
	"github.com/vogiaan1904/pelotond/pkg/logger"
)

type Producer interface {
	PublishRiderOnline(ctx context.Context, event kafka.RiderPresenceEvent) error
	PublishRiderOffline(ctx context.Context, event kafka.RiderPresenceEvent) error
	PublishSegmentResult(ctx context.Context, event kafka.SegmentResultEvent) error
	PublishEventInvite(ctx context.Context, event kafka.EventInviteEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishRiderOnline(ctx context.Context, event kafka.RiderPresenceEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicRiderOnline, strconv.FormatInt(event.ParticipantID, 10), event)
}

func (p *implProducer) PublishRiderOffline(ctx context.Context, event kafka.RiderPresenceEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicRiderOffline, strconv.FormatInt(event.ParticipantID, 10), event)
}

// Segment results are partitioned by segment so a leaderboard consumer sees
// them in order.
func (p *implProducer) PublishSegmentResult(ctx context.Context, event kafka.SegmentResultEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicSegmentResult, strconv.FormatInt(event.SegmentID, 10), event)
}

func (p *implProducer) PublishEventInvite(ctx context.Context, event kafka.EventInviteEvent) error {
	event.Timestamp = time.Now()
	return p.send(ctx, kafka.TopicEventInvite, strconv.FormatInt(event.EventID, 10), event)
}

func (p *implProducer) send(ctx context.Context, topic, key string, event any) error {
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.send: %s: %v", topic, err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderTimestamp),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
			{
				Key:   []byte(kafka.HeaderRequestID),
				Value: []byte(uuid.NewString()),
			},
		},
	}

	if _, _, err = p.prod.SendMessage(msg); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.send: %s: %v", topic, err)
		return err
	}
	return nil
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}

// nopProducer is used when Kafka is disabled.
type nopProducer struct{}

func NewNopProducer() Producer {
	return nopProducer{}
}

func (nopProducer) PublishRiderOnline(context.Context, kafka.RiderPresenceEvent) error  { return nil }
func (nopProducer) PublishRiderOffline(context.Context, kafka.RiderPresenceEvent) error { return nil }
func (nopProducer) PublishSegmentResult(context.Context, kafka.SegmentResultEvent) error {
	return nil
}
func (nopProducer) PublishEventInvite(context.Context, kafka.EventInviteEvent) error { return nil }
func (nopProducer) Close() error                                                     { return nil }
