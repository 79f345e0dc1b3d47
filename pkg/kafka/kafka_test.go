package kafka

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(ConsumerConfig{GroupID: "pelotond"}); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestProducerConfig(t *testing.T) {
	c := newProducerConfig(ProducerConfig{ClientID: "relay-1", RetryMax: 5, RequiredAcks: -1})
	if c.ClientID != "relay-1" {
		t.Fatalf("client id: %q", c.ClientID)
	}
	if c.Producer.RequiredAcks != sarama.WaitForAll || c.Producer.Retry.Max != 5 {
		t.Fatalf("unexpected producer settings: %+v", c.Producer)
	}
	if !c.Producer.Return.Successes {
		t.Fatal("sync producer requires Return.Successes")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("config should validate: %v", err)
	}
}
