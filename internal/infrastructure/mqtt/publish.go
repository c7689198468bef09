package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// maxPayloadSize caps a single message at 1MB.
const maxPayloadSize = 1 << 20

// Reading is the JSON body mirrored for one peripheral per poll tick.
type Reading struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Time   time.Time `json:"ts"`
}

// Publish sends payload to topic and waits for the broker's acknowledgement
// up to the publish timeout.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.failures.Add(1)
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.failures.Add(1)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	c.published.Add(1)
	return nil
}

// PublishReading mirrors one peripheral reading, not retained, at the
// configured QoS. It does not wait for the broker so a slow connection
// cannot stall the poll loop; delivery failures are counted and logged when
// the token completes.
func (c *Client) PublishReading(r Reading) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrPublishFailed, r.Name, err)
	}

	topic := c.topics.Reading(r.Name)
	//nolint:gosec // G115: QoS validated to 0-2 in config
	token := c.client.Publish(topic, byte(c.cfg.QoS), false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.failures.Add(1)
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT reading publish failed", "topic", topic, "error", err)
			}
			return
		}
		c.published.Add(1)
	}()
	return nil
}
