package report

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/fetch"
)

// topicPublisher is the slice of *pubsub.Topic the sink needs.
type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubSink publishes one JSON event per outcome to a Pub/Sub topic.
// Publishes are asynchronous: the crawl never waits for broker acks, publish
// failures are logged and dropped.
type PubSubSink struct {
	topic  topicPublisher
	logger *zap.Logger
}

// NewPubSubSink wires a Pub/Sub topic to the listener interface.
func NewPubSubSink(topic *pubsub.Topic, logger *zap.Logger) *PubSubSink {
	return newPubSubSink(topic, logger)
}

func newPubSubSink(topic topicPublisher, logger *zap.Logger) *PubSubSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubSink{topic: topic, logger: logger}
}

// Notify implements fetch.Listener.
func (s *PubSubSink) Notify(ctx context.Context, outcome *fetch.Outcome) {
	evt := NewEvent(outcome)
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("marshal outcome event", zap.Error(err))
		return
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"platform":  evt.Platform,
			"crawl_run": evt.CrawlRun,
		},
	}
	result := s.topic.Publish(ctx, msg)
	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			s.logger.Warn("publish outcome event",
				zap.String("id", evt.ID), zap.Error(err))
		}
	}()
}
