package commands

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/internal/config"
	"github.com/jakechorley/shift-bridge/pkg/events"
)

// Closer releases a connection opened during setup
type Closer func()

// BuildEmitter fans events out to every configured sink.
// rdb may be nil when no redis sink is configured.
func BuildEmitter(cfg *config.Config, rdb redis.Cmdable, logger *zap.Logger) (events.Emitter, []Closer, error) {
	var sinks events.Multi
	var closers []Closer

	for _, name := range cfg.Events.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, events.NewLogSink(logger))

		case config.SinkRedis:
			if rdb == nil {
				return nil, closers, fmt.Errorf("redis sink configured without a redis connection")
			}
			sinks = append(sinks, events.NewRedisStreamSink(rdb, cfg.Events.RedisStream, cfg.Events.RedisMaxLen))

		case config.SinkMQTT:
			mq := cfg.Events.MQTT
			client, err := events.ConnectMQTT(events.MQTTOptions{
				Broker:   mq.Broker,
				ClientID: mq.ClientID,
				Username: mq.Username,
				Password: mq.Password,
				Timeout:  10 * time.Second,
			})
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, func() { client.Disconnect(250) })
			sinks = append(sinks, events.NewMQTTSink(client, mq.TopicPrefix, mq.QoS, 5*time.Second))

		case config.SinkWebhook:
			wh := cfg.Events.Webhook
			sinks = append(sinks, events.NewWebhookSink(wh.URL, wh.Timeout, wh.Retries))

		default:
			return nil, closers, fmt.Errorf("unknown event sink %q", name)
		}

		logger.Debug("Event sink enabled", zap.String("sink", name))
	}

	if len(sinks) == 0 {
		return events.Nop{}, closers, nil
	}
	return sinks, closers, nil
}
