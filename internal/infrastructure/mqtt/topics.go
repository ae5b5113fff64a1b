package mqtt

import "fmt"

// Topic prefixes for the Latchkey MQTT surface.
//
// Scheme: latchkey/{category}/... with reader traffic inbound, command
// topics inbound, and core/system topics outbound.
const (
	// TopicPrefix is the base for all Latchkey topics.
	TopicPrefix = "latchkey"

	// TopicPrefixCore is the base for controller-published state.
	TopicPrefixCore = "latchkey/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "latchkey/system"
)

// Topics provides builders for Latchkey MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	scanTopic := topics.ReaderScan()
//	// Returns: "latchkey/reader/scan"
type Topics struct{}

// ReaderScan returns the topic reader firmware publishes scans on.
// Payload is the raw identifier as uppercase hex text.
//
// Example: latchkey/reader/scan
func (Topics) ReaderScan() string {
	return fmt.Sprintf("%s/reader/scan", TopicPrefix)
}

// CommandMode returns the topic for mode-set requests.
// Payload is one of "normal", "enroll", "unenroll".
//
// Example: latchkey/command/mode
func (Topics) CommandMode() string {
	return fmt.Sprintf("%s/command/mode", TopicPrefix)
}

// CommandMark returns the topic for enrollment mark staging.
//
// Example: latchkey/command/mark
func (Topics) CommandMark() string {
	return fmt.Sprintf("%s/command/mark", TopicPrefix)
}

// CommandChannel returns the topic for manual channel overrides.
//
// Example: latchkey/command/channel/0
func (Topics) CommandChannel(channel int) string {
	return fmt.Sprintf("%s/command/channel/%d", TopicPrefix, channel)
}

// AllCommandChannels returns a pattern matching every channel override topic.
//
// Pattern: latchkey/command/channel/+
func (Topics) AllCommandChannels() string {
	return fmt.Sprintf("%s/command/channel/+", TopicPrefix)
}

// CoreAccessEvent returns the topic access and administrative events are
// published on, one message per audit entry.
//
// Example: latchkey/core/event/access
func (Topics) CoreAccessEvent() string {
	return fmt.Sprintf("%s/event/access", TopicPrefixCore)
}

// CoreMode returns the retained topic carrying the current mode.
//
// Example: latchkey/core/mode
func (Topics) CoreMode() string {
	return fmt.Sprintf("%s/mode", TopicPrefixCore)
}

// CoreChannelState returns the retained topic for one channel's state.
//
// Example: latchkey/core/channel/0/state
func (Topics) CoreChannelState(channel int) string {
	return fmt.Sprintf("%s/channel/%d/state", TopicPrefixCore, channel)
}

// CoreMark returns the retained topic for one channel's staged mark.
//
// Example: latchkey/core/mark/0
func (Topics) CoreMark(channel int) string {
	return fmt.Sprintf("%s/mark/%d", TopicPrefixCore, channel)
}

// CoreFeedback returns the topic wall-unit feedback signals are published
// on. Payload is one of "granted", "denied", "enrolled", "unenrolled",
// "timeout_alert"; reader firmware maps these to LED and sounder patterns.
//
// Example: latchkey/core/feedback
func (Topics) CoreFeedback() string {
	return fmt.Sprintf("%s/feedback", TopicPrefixCore)
}

// IORelaySet returns the command topic a relay module listens on for one
// output channel. Payload is "1" or "0".
//
// Example: latchkey/io/relay/0/set
func (Topics) IORelaySet(channel int) string {
	return fmt.Sprintf("%s/io/relay/%d/set", TopicPrefix, channel)
}

// SystemStatus returns the system status topic, also used for the LWT.
//
// Example: latchkey/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTopics returns a pattern matching all Latchkey topics.
// Use with caution, this receives ALL traffic.
//
// Pattern: latchkey/#
func (Topics) AllTopics() string {
	return "latchkey/#"
}
