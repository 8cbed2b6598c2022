// Package mqtt connects Shopdesk Core to the message bus that carries
// customer SMS conversations.
//
// A Mosquitto broker sits between Core and the SMS gateway, so neither side
// needs to know the other's implementation:
//
//	Shopdesk Core ↔ MQTT Broker ↔ SMS Gateway
//
// The client handles auto-reconnect with subscription restore, QoS-aware
// publishing, wildcard subscriptions, and a Last Will and Testament so
// peers can tell a crash from a graceful shutdown. Production deployments
// should enable TLS (cfg.Broker.TLS); payloads are not encrypted beyond the
// transport.
//
// Typical use:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllInboundMessages(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(mqtt.Topics{}.MessageOut("15551234567"),
//	    []byte(`{"body":"See you at 2pm"}`), 1, false)
package mqtt
