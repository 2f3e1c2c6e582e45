package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogSink writes each event to the structured log
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, e Event) error {
	s.logger.Info("Event",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("shift_id", e.ShiftID),
		zap.String("facility_id", e.FacilityID),
		zap.String("claim_id", e.ClaimID),
		zap.String("person_id", e.PersonID),
		zap.String("reason", e.Reason),
		zap.Time("occurred_at", e.OccurredAt))
	return nil
}

// RedisStreamSink appends events to a Redis stream
type RedisStreamSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a sink writing to stream. maxLen <= 0 leaves the stream uncapped.
func NewRedisStreamSink(client redis.Cmdable, stream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisStreamSink) Emit(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", e.ID, err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"type":      string(e.Type),
			"data":      string(data),
			"timestamp": e.OccurredAt.Unix(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add event %s to stream %s: %w", e.ID, s.stream, err)
	}
	return nil
}

// Publisher is the part of an MQTT client used by MQTTSink
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes each event to <prefix>/<facility>/<type>
type MQTTSink struct {
	client      Publisher
	topicPrefix string
	qos         byte
	timeout     time.Duration
}

func NewMQTTSink(client Publisher, topicPrefix string, qos byte, timeout time.Duration) *MQTTSink {
	return &MQTTSink{
		client:      client,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		qos:         qos,
		timeout:     timeout,
	}
}

// Topic returns the topic an event is published to
func (s *MQTTSink) Topic(e Event) string {
	return fmt.Sprintf("%s/%s/%s", s.topicPrefix, e.FacilityID, e.Type)
}

func (s *MQTTSink) Emit(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", e.ID, err)
	}

	topic := s.Topic(e)
	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("timed out publishing event %s to %s", e.ID, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish event %s to %s: %w", e.ID, topic, err)
	}
	return nil
}

// MQTTOptions configures ConnectMQTT
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

// ConnectMQTT connects to the broker with auto-reconnect enabled
func ConnectMQTT(opts MQTTOptions) (mqtt.Client, error) {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetCleanSession(true)

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return client, nil
}

// WebhookSink POSTs each event as JSON to a URL
type WebhookSink struct {
	client *resty.Client
	url    string
}

func NewWebhookSink(url string, timeout time.Duration, retries int) *WebhookSink {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &WebhookSink{client: client, url: url}
}

func (s *WebhookSink) Emit(ctx context.Context, e Event) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Id", e.ID).
		SetHeader("X-Event-Type", string(e.Type)).
		SetBody(e).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to post event %s: %w", e.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook rejected event %s: status %d", e.ID, resp.StatusCode())
	}
	return nil
}

// Recorder keeps emitted events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything emitted so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the type of each emitted event in order
func (r *Recorder) Types() []Type {
	evts := r.Events()
	types := make([]Type, len(evts))
	for i, e := range evts {
		types[i] = e.Type
	}
	return types
}
