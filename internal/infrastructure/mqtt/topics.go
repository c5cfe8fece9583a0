package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the registry's MQTT hierarchy.
//
// Devices publish under lanregistry/announce and lanregistry/remove; the
// registry publishes under lanregistry/event and lanregistry/system.
const (
	// TopicPrefix is the root of every registry topic.
	TopicPrefix = "lanregistry"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for registry MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Announce("esp32-kitchen")
//	// Returns: "lanregistry/announce/esp32-kitchen"
type Topics struct{}

// Announce returns the topic a device publishes its presence to.
//
// Example: lanregistry/announce/esp32-kitchen
func (Topics) Announce(identifier string) string {
	return fmt.Sprintf("%s/announce/%s", TopicPrefix, identifier)
}

// Remove returns the topic that deregisters a device.
//
// Example: lanregistry/remove/esp32-kitchen
func (Topics) Remove(identifier string) string {
	return fmt.Sprintf("%s/remove/%s", TopicPrefix, identifier)
}

// Event returns the topic registry events of the given type are published to.
//
// Example: lanregistry/event/device.registered
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// SystemStatus returns the registry's own online/offline status topic.
//
// Example: lanregistry/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllAnnounce returns a pattern matching every device announcement.
//
// Pattern: lanregistry/announce/+
func (Topics) AllAnnounce() string {
	return fmt.Sprintf("%s/announce/+", TopicPrefix)
}

// AllRemove returns a pattern matching every removal request.
//
// Pattern: lanregistry/remove/+
func (Topics) AllRemove() string {
	return fmt.Sprintf("%s/remove/+", TopicPrefix)
}

// LastSegment returns the final level of a topic, the part a single-level
// wildcard at the end of a subscription matched.
//
// Example: LastSegment("lanregistry/announce/esp32-kitchen") == "esp32-kitchen"
func LastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
