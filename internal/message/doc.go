// Package message stores SMS conversations and bridges them over MQTT.
//
// Inbound messages arrive from the SMS gateway on shopdesk/messages/in/{phone};
// the ingestor persists them and broadcasts message.received to WebSocket
// clients. Outbound replies are persisted and published to
// shopdesk/messages/out/{phone} for the gateway to deliver.
package message
