package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultStream = "stream:catalog_scrape"

// EventType represents the type of event
type EventType string

const (
	EventTypeSectionScraped EventType = "SECTION_SCRAPED"
	EventTypeRunCompleted   EventType = "RUN_COMPLETED"
	EventTypeRunFailed      EventType = "RUN_FAILED"
)

// RedisClient is the subset of the redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// SectionScrapedPayload is published once per exported section.
type SectionScrapedPayload struct {
	RunID   string `json:"run_id"`
	Section string `json:"section"`
	Mode    string `json:"mode"`
	Records int    `json:"records"`
	File    string `json:"file"`
}

// RunFinishedPayload closes a run, successfully or not.
type RunFinishedPayload struct {
	RunID    string         `json:"run_id"`
	Mode     string         `json:"mode"`
	Sections []string       `json:"sections"`
	Records  map[string]int `json:"records"`
	Duration string         `json:"duration"`
	Error    string         `json:"error,omitempty"`
}

type envelope struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Payload   any       `json:"payload"`
}

// Publisher appends run events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
		now:    time.Now,
	}
}

func (p *Publisher) PublishSectionScraped(ctx context.Context, payload *SectionScrapedPayload) error {
	return p.publish(ctx, EventTypeSectionScraped, payload.RunID, payload)
}

func (p *Publisher) PublishRunCompleted(ctx context.Context, payload *RunFinishedPayload) error {
	return p.publish(ctx, EventTypeRunCompleted, payload.RunID, payload)
}

func (p *Publisher) PublishRunFailed(ctx context.Context, payload *RunFinishedPayload) error {
	return p.publish(ctx, EventTypeRunFailed, payload.RunID, payload)
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, runID string, payload any) error {
	event := envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: p.now().UTC(),
		Source:    "catalog-scraper",
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(data),
			"event_id":   event.EventID,
			"event_type": string(eventType),
			"run_id":     runID,
			"timestamp":  fmt.Sprintf("%d", event.Timestamp.UnixNano()),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	p.logger.Debug("event published",
		"type", eventType,
		"event_id", event.EventID,
		"run_id", runID,
		"stream_id", id,
	)

	return nil
}
