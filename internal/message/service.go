package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopdesk/shopdesk-core/internal/activity"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/mqtt"
)

// MQTTClient is the interface the service needs from the MQTT wrapper.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// ActivityLog records feed entries for inbound messages.
type ActivityLog interface {
	Log(ctx context.Context, a *activity.Activity) error
}

// Logger is the minimal logging interface the service requires.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// wirePayload is the JSON body exchanged with the SMS gateway.
type wirePayload struct {
	Body     string `json:"body"`
	ThreadID string `json:"thread_id,omitempty"`
}

// messageQoS: at-least-once for conversation traffic.
const messageQoS byte = 1

// Service persists conversations and bridges them to the SMS gateway over
// MQTT. mqtt, hub and activities may be nil; the corresponding behaviour
// is skipped.
type Service struct {
	repo       Repository
	mqtt       MQTTClient
	hub        WSHub
	activities ActivityLog
	topics     mqtt.Topics
	logger     Logger
}

// NewService creates a new message service.
func NewService(repo Repository, mqttClient MQTTClient, hub WSHub, activities ActivityLog, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		repo:       repo,
		mqtt:       mqttClient,
		hub:        hub,
		activities: activities,
		logger:     logger,
	}
}

// Start subscribes to inbound message topics. No-op when MQTT is not wired.
func (s *Service) Start(ctx context.Context) error {
	if s.mqtt == nil {
		s.logger.Warn("mqtt not configured, inbound messages disabled")
		return nil
	}
	if err := s.mqtt.Subscribe(s.topics.AllInboundMessages(), messageQoS, s.handleInbound); err != nil {
		return fmt.Errorf("subscribing to inbound messages: %w", err)
	}
	s.logger.Info("subscribed to inbound messages", "topic", s.topics.AllInboundMessages())
	return nil
}

// handleInbound persists a gateway message and broadcasts it. The phone
// number is the last topic segment.
func (s *Service) handleInbound(topic string, payload []byte) error {
	phone := phoneFromTopic(topic)
	if phone == "" {
		return fmt.Errorf("no phone in topic %q", topic)
	}

	var wire wirePayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		// Gateways sometimes send bare text; accept it as the body.
		wire = wirePayload{Body: string(payload)}
	}
	if wire.Body == "" {
		return ErrEmptyBody
	}

	m := &Message{
		Phone:     phone,
		Direction: DirectionInbound,
		Body:      wire.Body,
		ThreadID:  wire.ThreadID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.Add(ctx, m); err != nil {
		return fmt.Errorf("persisting inbound message: %w", err)
	}

	if s.activities != nil {
		a := &activity.Activity{
			Type:    activity.TypeMessageReceived,
			Message: fmt.Sprintf("Message from %s", phone),
		}
		if err := s.activities.Log(ctx, a); err != nil {
			s.logger.Warn("logging message activity failed", "error", err)
		}
	}

	if s.hub != nil {
		s.hub.Broadcast("message.received", m)
	}

	s.logger.Debug("inbound message stored", "phone", phone, "message_id", m.ID)
	return nil
}

// Send persists an outbound reply and publishes it for the gateway.
func (s *Service) Send(ctx context.Context, phone, body, threadID string) (*Message, error) {
	m := &Message{
		Phone:     phone,
		Direction: DirectionOutbound,
		Body:      body,
		ThreadID:  threadID,
	}
	if err := s.repo.Add(ctx, m); err != nil {
		return nil, err
	}

	if s.mqtt != nil {
		payload, err := json.Marshal(wirePayload{Body: body, ThreadID: threadID})
		if err != nil {
			return nil, fmt.Errorf("encoding outbound message: %w", err)
		}
		if err := s.mqtt.Publish(s.topics.MessageOut(phone), payload, messageQoS, false); err != nil {
			return nil, fmt.Errorf("publishing outbound message: %w", err)
		}
	}

	s.logger.Info("outbound message sent", "phone", phone, "message_id", m.ID)
	return m, nil
}

// ByPhone returns a phone number's messages, newest first.
func (s *Service) ByPhone(ctx context.Context, phone string, limit, offset int) ([]Message, error) {
	return s.repo.ByPhone(ctx, phone, limit, offset)
}

// ByThread returns a thread's messages in chronological order.
func (s *Service) ByThread(ctx context.Context, threadID string) ([]Message, error) {
	return s.repo.ByThread(ctx, threadID)
}

// Recent returns the latest messages across all conversations.
func (s *Service) Recent(ctx context.Context, limit int) ([]Message, error) {
	return s.repo.Recent(ctx, limit)
}

// Conversations returns per-phone conversation summaries.
func (s *Service) Conversations(ctx context.Context, limit int) ([]Conversation, error) {
	return s.repo.Conversations(ctx, limit)
}

// phoneFromTopic extracts the phone number from an inbound topic such as
// shopdesk/messages/in/15551234567.
func phoneFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}
