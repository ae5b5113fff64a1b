package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (64KB).
// Controller payloads are tiny; anything larger is a misdirected message.
const maxPayloadSize = 64 << 10

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "latchkey/core/event/access")
//   - payload: The message payload (typically JSON)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Retained Messages:
//   - When true, broker stores the last message for each topic
//   - New subscribers immediately receive the retained message
//   - Use for state topics (mode, channel state, system status)
//   - Don't use for events or scans
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
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
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishString is a convenience method that publishes a string payload.
//
// This is equivalent to calling Publish with []byte(payload).
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message with the configured default QoS.
//
// Use for state updates where new subscribers should receive the current state.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

// PublishAsync sends a message without waiting for broker acknowledgement.
//
// Validation failures and a disconnected client still return an error
// immediately; delivery is confirmed in the background and failures are
// logged through the client's logger. Use on latency-sensitive paths where
// a slow broker must not stall the caller; use Publish where the caller
// needs the delivery result.
func (c *Client) PublishAsync(topic string, payload []byte, qos byte, retained bool) error {
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
	go func() {
		if !token.WaitTimeout(defaultPublishTimeout) {
			c.logPublishFailure(topic, fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout))
			return
		}
		if err := token.Error(); err != nil {
			c.logPublishFailure(topic, fmt.Errorf("%w: %w", ErrPublishFailed, err))
		}
	}()

	return nil
}

// PublishStringAsync is a convenience method that publishes a string payload
// without waiting for acknowledgement.
func (c *Client) PublishStringAsync(topic string, payload string, qos byte, retained bool) error {
	return c.PublishAsync(topic, []byte(payload), qos, retained)
}

func (c *Client) logPublishFailure(topic string, err error) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT publish not delivered", "topic", topic, "error", err)
	}
}
