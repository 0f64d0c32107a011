package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/mister-10k/laps-routes-generator/internal/generator"
	"github.com/mister-10k/laps-routes-generator/internal/geo"
	"github.com/mister-10k/laps-routes-generator/internal/poi"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	job              *GenerationJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Job              *GenerationJob
	Logger           zerolog.Logger
}

// GenerateMessage triggers a catalog generation run for one city.
type GenerateMessage struct {
	JobType   string  `json:"job_type"`
	City      string  `json:"city"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	StartName string  `json:"start_name,omitempty"`
	Direction string  `json:"direction,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A full generation run can take a long time per city.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 30 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		job:              cfg.Job,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var genMsg GenerateMessage
	if err := json.Unmarshal(msg.Data, &genMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	if genMsg.JobType != "route_generation" {
		logger.Warn().Str("job_type", genMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	req, err := buildRequest(genMsg)
	if err != nil {
		logger.Error().Err(err).Msg("invalid generation message")
		msg.Ack() // Malformed payloads will not improve on redelivery
		return
	}

	started := time.Now()
	if _, err := h.job.Run(ctx, req); err != nil {
		logger.Error().Err(err).Msg("generation run failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("city", genMsg.City).
		Dur("duration", time.Since(started)).
		Msg("generation run completed")

	msg.Ack()
}

// buildRequest validates a message into a scheduler request.
func buildRequest(msg GenerateMessage) (generator.Request, error) {
	if msg.City == "" {
		return generator.Request{}, fmt.Errorf("message missing city")
	}

	coord := geo.Coordinate{Lat: msg.Lat, Lon: msg.Lon}
	if !coord.Valid() {
		return generator.Request{}, fmt.Errorf("invalid start coordinate %.4f,%.4f", msg.Lat, msg.Lon)
	}

	direction, err := poi.ParseDirection(msg.Direction)
	if err != nil {
		return generator.Request{}, err
	}

	startName := msg.StartName
	if startName == "" {
		startName = msg.City + " start"
	}

	return generator.Request{
		City:      msg.City,
		Start:     poi.NewStartPoint("start:"+msg.City, startName, coord),
		Direction: direction,
	}, nil
}
