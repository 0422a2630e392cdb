package channel

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/absmach/fedtree/job"
	"github.com/absmach/fedtree/pkg/mqtt"
)

const variableTopicTemplate = "fedtree/%s/vars/%s/%s/%s"

var errMalformedPayload = errors.New("malformed variable payload")

type mqttChannel struct {
	pubsub mqtt.PubSub
	jobID  string
	self   string
	logger *slog.Logger
}

// NewMQTT exchanges variables as retained MQTT messages, one topic per
// (variable, sender, recipient). The receiver clears the retained message once
// consumed so it is never redelivered.
func NewMQTT(pubsub mqtt.PubSub, jobID, self string, logger *slog.Logger) Channel {
	return &mqttChannel{
		pubsub: pubsub,
		jobID:  jobID,
		self:   self,
		logger: logger,
	}
}

func (c *mqttChannel) topic(name, from, to string) string {
	return fmt.Sprintf(variableTopicTemplate, segment(c.jobID), name, segment(from), segment(to))
}

func (c *mqttChannel) Publish(ctx context.Context, name string, value []byte, to []job.Participant) error {
	payload := variablePayload{Sender: c.self, Name: name, Value: value}
	for _, p := range to {
		if err := c.pubsub.Retain(ctx, c.topic(name, c.self, p.UserID), payload); err != nil {
			return wrap("publish", name, err)
		}
	}

	return nil
}

func (c *mqttChannel) Receive(ctx context.Context, name string, from job.Participant) ([]byte, error) {
	topic := c.topic(name, from.UserID, c.self)

	received := make(chan []byte, 1)
	var once sync.Once
	handler := func(_ string, msg map[string]interface{}) error {
		raw, ok := msg["value"].(string)
		if !ok {
			return errMalformedPayload
		}
		value, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", errMalformedPayload, err)
		}
		once.Do(func() { received <- value })

		return nil
	}

	if err := c.pubsub.Subscribe(ctx, topic, handler); err != nil {
		return nil, wrap("receive", name, err)
	}
	defer func() {
		if err := c.pubsub.Unsubscribe(context.Background(), topic); err != nil {
			c.logger.Warn("failed to unsubscribe from variable topic", slog.String("topic", topic), slog.Any("error", err))
		}
	}()

	select {
	case value := <-received:
		if err := c.pubsub.ClearRetained(ctx, topic); err != nil {
			c.logger.Warn("failed to clear retained variable", slog.String("topic", topic), slog.Any("error", err))
		}

		return value, nil
	case <-ctx.Done():
		return nil, wrap("receive", name, ctx.Err())
	}
}
