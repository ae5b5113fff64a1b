package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAccessEvent records one access or administrative event.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - siteID: Site identifier for multi-site dashboards
//   - kind: Event kind ("granted", "denied", "enrolled", ...)
//   - subject: Card identifier, may be empty for timeout events
//   - mask: Authorization mask snapshot, 0 where not applicable
//   - at: Event timestamp
func (c *Client) WriteAccessEvent(siteID, kind, subject string, mask uint8, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"access_events",
		map[string]string{
			"site": siteID,
			"kind": kind,
		},
		map[string]interface{}{
			"subject": subject,
			"mask":    int64(mask),
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteChannelActuation records a channel state change.
//
// Used for duty-cycle dashboards and relay wear tracking.
//
// Parameters:
//   - siteID: Site identifier
//   - channel: Channel index
//   - on: New output state
//   - timed: Whether an auto-off deadline is armed
func (c *Client) WriteChannelActuation(siteID string, channel int, on, timed bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"channel_actuations",
		map[string]string{
			"site": siteID,
		},
		map[string]interface{}{
			"channel": int64(channel),
			"on":      on,
			"timed":   timed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
