package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Shopify/sarama"
)

// KafkaConfig selects the brokers and partition to follow.
type KafkaConfig struct {
	Brokers   []string
	Partition int32
	ClientID  string
	Buffer    int
}

// KafkaSubscriber follows one partition from the newest offset, matching
// the live-only semantics of the MQTT transport.
type KafkaSubscriber struct {
	cfg KafkaConfig
}

func NewKafkaSubscriber(cfg KafkaConfig) *KafkaSubscriber {
	return &KafkaSubscriber{cfg: cfg}
}

type kafkaSubscription struct {
	*pipe
	consumer  sarama.Consumer
	partition sarama.PartitionConsumer
	closeOnce sync.Once
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}

	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.MaxWaitTime = 250 * time.Millisecond
	if s.cfg.ClientID != "" {
		config.ClientID = s.cfg.ClientID
	}

	consumer, err := sarama.NewConsumer(s.cfg.Brokers, config)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}

	pc, err := consumer.ConsumePartition(topic, s.cfg.Partition, sarama.OffsetNewest)
	if err != nil {
		consumer.Close()
		return nil, &TransportError{Op: "subscribe", Err: err}
	}

	sub := &kafkaSubscription{
		pipe:      newPipe(s.cfg.Buffer),
		consumer:  consumer,
		partition: pc,
	}
	go sub.forward()
	return sub, nil
}

func (s *kafkaSubscription) forward() {
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.partition.Messages():
			if !ok {
				s.fail(&TransportError{Op: "connection lost", Err: errors.New("partition consumer stopped")})
				return
			}
			s.deliver(Message{
				Topic:    msg.Topic,
				Payload:  msg.Value,
				Received: time.Now(),
			})
		case cerr, ok := <-s.partition.Errors():
			if !ok {
				s.fail(&TransportError{Op: "connection lost", Err: errors.New("partition consumer stopped")})
				return
			}
			s.fail(&TransportError{Op: "consume", Err: cerr})
			return
		}
	}
}

func (s *kafkaSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.fail(ErrClosed)
		if perr := s.partition.Close(); perr != nil {
			err = &TransportError{Op: "unsubscribe", Err: perr}
		}
		if cerr := s.consumer.Close(); cerr != nil && err == nil {
			err = &TransportError{Op: "disconnect", Err: cerr}
		}
	})
	return err
}
