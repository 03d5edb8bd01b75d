package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const headerMessageID = "message_id"

// ensureTopic creates topic if it does not exist yet.
func ensureTopic(cfg KafkaConfig, topic string) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	replication := cfg.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	}})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}
	return nil
}

// KafkaPublisher produces records keyed by room so one room stays on one
// partition. Publish waits for the delivery report, and acks=all with the
// idempotent producer makes an acknowledged record durable.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

// NewKafkaPublisher creates a producer for cfg.Name.
func NewKafkaPublisher(cfg Config) (*KafkaPublisher, error) {
	return newKafkaPublisher(cfg.Kafka, cfg.Name)
}

func newKafkaPublisher(cfg KafkaConfig, topic string) (*KafkaPublisher, error) {
	if err := ensureTopic(cfg, topic); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldQueue, topic).Msg("failed to ensure kafka topic (may already exist)")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          5,
		"compression.type":   "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}
	go kp.eventLoop()

	return kp, nil
}

// eventLoop drains producer events that are not routed to a per-call
// delivery channel, mostly client-level errors.
func (kp *KafkaPublisher) eventLoop() {
	l := log.L()
	for e := range kp.producer.Events() {
		switch ev := e.(type) {
		case kafka.Error:
			l.Warn().Err(ev).Str(log.FieldQueue, kp.topic).Bool("fatal", ev.IsFatal()).Msg("kafka producer error")
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Warn().Err(ev.TopicPartition.Error).Str(log.FieldQueue, kp.topic).Msg("kafka delivery failed")
			}
		}
	}
	close(kp.doneCh)
}

// Publish implements Publisher.
func (kp *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	delivery := make(chan kafka.Event, 1)

	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(msg.Key),
		Value: msg.Body,
	}
	if msg.ID != "" {
		km.Headers = []kafka.Header{{Key: headerMessageID, Value: []byte(msg.ID)}}
	}

	if err := kp.producer.Produce(km, delivery); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("kafka delivery: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes outstanding records and closes the producer.
func (kp *KafkaPublisher) Close() error {
	kp.producer.Flush(5000)
	kp.producer.Close()
	<-kp.doneCh
	return nil
}

// KafkaConsumer commits offsets by hand, one record at a time. A requeued
// record is re-fetched by seeking its partition back to the record's offset.
type KafkaConsumer struct {
	consumer *kafka.Consumer
	topic    string
	dlq      *KafkaPublisher
}

// NewKafkaConsumer creates a consumer and subscribes to cfg.Name.
func NewKafkaConsumer(cfg Config) (*KafkaConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":    cfg.Kafka.Brokers,
		"group.id":             cfg.Kafka.GroupID,
		"auto.offset.reset":    cfg.Kafka.AutoOffsetReset,
		"enable.auto.commit":   false,
		"session.timeout.ms":   cfg.Kafka.SessionTimeoutMs,
		"max.poll.interval.ms": cfg.Kafka.MaxPollIntervalMs,
	})
	if err != nil {
		return nil, chaterr.New(chaterr.KindBrokerConnection, "kafka consumer", err)
	}

	if err := c.Subscribe(cfg.Name, nil); err != nil {
		c.Close()
		return nil, chaterr.New(chaterr.KindBrokerConnection, "kafka subscribe", err)
	}

	kc := &KafkaConsumer{consumer: c, topic: cfg.Name}

	if cfg.DeadLetter != "" {
		dlq, err := newKafkaPublisher(cfg.Kafka, cfg.DeadLetter)
		if err != nil {
			c.Close()
			return nil, chaterr.New(chaterr.KindBrokerConnection, "kafka dead-letter producer", err)
		}
		kc.dlq = dlq
	}

	return kc, nil
}

// Consume implements Consumer.
func (kc *KafkaConsumer) Consume(ctx context.Context, h Handler) error {
	l := log.Ctx(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev := kc.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := kc.settle(ctx, e, h(ctx, e.Value)); err != nil {
				return chaterr.New(chaterr.KindBrokerConnection, "kafka settle", err)
			}
		case kafka.Error:
			if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
				return chaterr.New(chaterr.KindBrokerConnection, "kafka consume", e)
			}
			l.Warn().Err(e).Str(log.FieldQueue, kc.topic).Int("code", int(e.Code())).Msg("kafka consumer error")
		default:
			// rebalances and stats need no action
		}
	}
}

func (kc *KafkaConsumer) settle(ctx context.Context, m *kafka.Message, outcome Outcome) error {
	switch outcome {
	case Requeue:
		return kc.consumer.Seek(m.TopicPartition, 0)
	case Reject:
		if kc.dlq != nil {
			if err := kc.dlq.Publish(ctx, Message{Key: string(m.Key), Body: m.Value}); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("dead-letter publish: %w", err)
			}
		}
	}

	_, err := kc.consumer.CommitMessage(m)
	return err
}

// Close closes the consumer and the dead-letter producer.
func (kc *KafkaConsumer) Close() error {
	if kc.dlq != nil {
		kc.dlq.Close()
	}
	return kc.consumer.Close()
}
