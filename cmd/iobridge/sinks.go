package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/nerrad567/iobridge/internal/bridge"
	"github.com/nerrad567/iobridge/internal/infrastructure/mqtt"
)

// readingPublisher is the part of the MQTT client the mirror uses.
type readingPublisher interface {
	PublishReading(r mqtt.Reading) error
}

// readingWriter is the part of the InfluxDB client the mirror uses.
type readingWriter interface {
	WriteReading(name string, values []float64, ts time.Time)
}

// commandRouter is the part of the bridge router MQTT commands go through.
type commandRouter interface {
	RouteJSON(ctx context.Context, address string, payload []byte)
}

// mqttMirror publishes every batch entry as one reading message.
func mqttMirror(client readingPublisher) bridge.Publisher {
	return bridge.PublisherFunc(func(_ context.Context, batch bridge.Batch) error {
		var errs error
		for _, e := range batch.Entries {
			errs = multierr.Append(errs, client.PublishReading(mqtt.Reading{
				Name:   e.Name,
				Values: e.Values,
				Time:   batch.Time,
			}))
		}
		return errs
	})
}

// influxMirror queues every batch entry as one point. Writes are
// asynchronous; failures surface through the client's error callback.
func influxMirror(client readingWriter) bridge.Publisher {
	return bridge.PublisherFunc(func(_ context.Context, batch bridge.Batch) error {
		for _, e := range batch.Entries {
			client.WriteReading(e.Name, e.Values, batch.Time)
		}
		return nil
	})
}

// commandHandler routes MQTT command messages. The topic suffix after
// <prefix>/command/ is the address; the payload is a JSON argument array.
func commandHandler(ctx context.Context, router commandRouter, topics mqtt.Topics) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		address, ok := topics.CommandAddress(topic)
		if !ok {
			return fmt.Errorf("%w: %s", mqtt.ErrInvalidTopic, topic)
		}
		router.RouteJSON(ctx, address, payload)
		return nil
	}
}
