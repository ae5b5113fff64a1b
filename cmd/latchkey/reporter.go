package main

import (
	"encoding/json"
	"strconv"

	"github.com/latchkeyhq/latchkey-core/internal/actuator"
	"github.com/latchkeyhq/latchkey-core/internal/api"
	"github.com/latchkeyhq/latchkey-core/internal/auditlog"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/influxdb"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/logging"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/mqtt"
	"github.com/latchkeyhq/latchkey-core/internal/mode"
)

// busReporter fans engine outcomes out to the MQTT bus, WebSocket clients
// and InfluxDB. It implements both engine.Reporter and engine.Feedback.
//
// All methods run on the control loop, so every publish goes through the
// client's async variants: delivery is confirmed off-loop and failures are
// logged and dropped. State topics (mode, channel, mark) are retained so
// late subscribers see the current picture; events and feedback signals
// are not.
type busReporter struct {
	mqtt   *mqtt.Client
	hub    *api.Hub
	influx *influxdb.Client // nil when disabled
	topics mqtt.Topics
	qos    byte
	siteID string
	log    *logging.Logger
}

func newBusReporter(mc *mqtt.Client, hub *api.Hub, influx *influxdb.Client, siteID string, qos byte, log *logging.Logger) *busReporter {
	return &busReporter{
		mqtt:   mc,
		hub:    hub,
		influx: influx,
		qos:    qos,
		siteID: siteID,
		log:    log,
	}
}

// AccessEvent implements engine.Reporter.
func (r *busReporter) AccessEvent(e auditlog.Entry) {
	payload, err := json.Marshal(e)
	if err != nil {
		r.log.Error("marshalling access event", "error", err)
		return
	}
	if err := r.mqtt.PublishAsync(r.topics.CoreAccessEvent(), payload, r.qos, false); err != nil {
		r.log.Warn("publishing access event", "error", err)
	}

	r.hub.Broadcast(api.WSChannelAccessEvent, e)

	if r.influx != nil {
		r.influx.WriteAccessEvent(r.siteID, string(e.Kind), e.Subject, e.Mask, e.At)
	}
}

// ModeChanged implements engine.Reporter.
func (r *busReporter) ModeChanged(m mode.Mode) {
	if err := r.mqtt.PublishStringAsync(r.topics.CoreMode(), m.String(), r.qos, true); err != nil {
		r.log.Warn("publishing mode", "error", err)
	}

	r.hub.Broadcast(api.WSChannelModeChanged, map[string]string{"mode": m.String()})
}

// MarkChanged implements engine.Reporter.
func (r *busReporter) MarkChanged(channel int, selected bool) {
	if err := r.mqtt.PublishStringAsync(r.topics.CoreMark(channel), boolPayload(selected), r.qos, true); err != nil {
		r.log.Warn("publishing mark", "channel", channel, "error", err)
	}

	r.hub.Broadcast(api.WSChannelMarkChanged, map[string]any{
		"channel":  channel,
		"selected": selected,
	})
}

// ChannelChanged implements engine.Reporter.
func (r *busReporter) ChannelChanged(st actuator.State) {
	payload, err := json.Marshal(st)
	if err != nil {
		r.log.Error("marshalling channel state", "error", err)
		return
	}
	if err := r.mqtt.PublishAsync(r.topics.CoreChannelState(st.Channel), payload, r.qos, true); err != nil {
		r.log.Warn("publishing channel state", "channel", st.Channel, "error", err)
	}

	r.hub.Broadcast(api.WSChannelChannelState, st)

	if r.influx != nil {
		r.influx.WriteChannelActuation(r.siteID, st.Channel, st.On, st.Timed)
	}
}

// Feedback signals map to LED and sounder patterns in reader firmware.

// Granted implements engine.Feedback.
func (r *busReporter) Granted() { r.signal("granted") }

// Denied implements engine.Feedback.
func (r *busReporter) Denied() { r.signal("denied") }

// Enrolled implements engine.Feedback.
func (r *busReporter) Enrolled() { r.signal("enrolled") }

// Unenrolled implements engine.Feedback.
func (r *busReporter) Unenrolled() { r.signal("unenrolled") }

// TimeoutAlert implements engine.Feedback.
func (r *busReporter) TimeoutAlert() { r.signal("timeout_alert") }

func (r *busReporter) signal(name string) {
	if err := r.mqtt.PublishStringAsync(r.topics.CoreFeedback(), name, r.qos, false); err != nil {
		r.log.Warn("publishing feedback signal", "signal", name, "error", err)
	}
}

func boolPayload(b bool) string {
	return strconv.FormatBool(b)
}
