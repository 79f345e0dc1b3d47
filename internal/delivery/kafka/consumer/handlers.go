package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/pelotond/internal/delivery/kafka"
	"github.com/vogiaan1904/pelotond/internal/models"
	"github.com/vogiaan1904/pelotond/internal/service"
)

type poisonError struct{ err error }

func (e poisonError) Error() string { return "poison message: " + e.err.Error() }
func (e poisonError) Unwrap() error { return e.err }

// isPoison reports errors that retrying the same message cannot fix. Those
// messages are committed and skipped.
func isPoison(err error) bool {
	var p poisonError
	return errors.As(err, &p) || errors.Is(err, service.ErrInvalidInput)
}

func (c *Consumer) HandleChatInbound(ctx context.Context, message *sarama.ConsumerMessage) error {
	c.l.Debug(ctx, "HandleChatInbound consumed")

	var e kafka.ChatInboundEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleChatInbound: %v", err)
		return poisonError{err}
	}

	if err := c.chat.InjectChat(ctx, service.ChatInput{
		FromID:    models.ParticipantID(e.FromID),
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Message:   e.Message,
		CourseID:  e.CourseID,
	}); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.handlers.HandleChatInbound: %v", err)
		return err
	}

	return nil
}
