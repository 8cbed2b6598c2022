package mqtt

import "fmt"

// Topic prefixes for the Shopdesk message bus.
//
// Messaging topics use the scheme: shopdesk/messages/{direction}/{phone}
// where direction is "in" for messages arriving from the SMS gateway and
// "out" for replies the platform sends.
const (
	// TopicPrefixMessages is the base for conversation message topics.
	TopicPrefixMessages = "shopdesk/messages"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "shopdesk/system"

	// TopicPrefixEvents is the base for domain event topics.
	TopicPrefixEvents = "shopdesk/events"
)

// Topics provides builders for Shopdesk MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	inbound := topics.AllInboundMessages()
//	// Returns: "shopdesk/messages/in/+"
type Topics struct{}

// MessageIn returns the topic the SMS gateway publishes inbound messages to
// for a specific phone number.
//
// Example: shopdesk/messages/in/15551234567
func (Topics) MessageIn(phone string) string {
	return fmt.Sprintf("%s/in/%s", TopicPrefixMessages, phone)
}

// MessageOut returns the topic outbound replies are published to.
//
// Example: shopdesk/messages/out/15551234567
func (Topics) MessageOut(phone string) string {
	return fmt.Sprintf("%s/out/%s", TopicPrefixMessages, phone)
}

// Event returns the topic for a domain event.
//
// Example: shopdesk/events/booking.created
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvents, eventType)
}

// SystemStatus returns the system status topic. It carries the online /
// offline payloads, including the Last Will message.
//
// Example: shopdesk/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllInboundMessages returns a pattern matching inbound messages from
// every phone number.
//
// Pattern: shopdesk/messages/in/+
func (Topics) AllInboundMessages() string {
	return fmt.Sprintf("%s/in/+", TopicPrefixMessages)
}

// AllOutboundMessages returns a pattern matching all outbound replies.
//
// Pattern: shopdesk/messages/out/+
func (Topics) AllOutboundMessages() string {
	return fmt.Sprintf("%s/out/+", TopicPrefixMessages)
}

// AllEvents returns a pattern matching all domain events.
//
// Pattern: shopdesk/events/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/+", TopicPrefixEvents)
}

// AllTopics returns a pattern matching all Shopdesk topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: shopdesk/#
func (Topics) AllTopics() string {
	return "shopdesk/#"
}
