//go:build integration

package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopdesk/shopdesk-core/internal/infrastructure/config"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func connectClient(t *testing.T, clientID string) *Client {
	t.Helper()

	client, err := Connect(config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

// TestIntegration_SubscriptionTracking exercises the bookkeeping that drives
// re-subscription after a reconnect. It cannot force a broker restart, so it
// verifies the tracked set directly.
func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := connectClient(t, "shopdesk-int-sub-track")

	handler := func(topic string, payload []byte) error { return nil }

	var topics []string
	for i := 1; i <= 3; i++ {
		topic := fmt.Sprintf("shopdesk/int/test/topic%d", i)
		topics = append(topics, topic)
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	if got := client.SubscriptionCount(); got != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", got, len(topics))
	}
	for _, topic := range topics {
		if !client.HasSubscription(topic) {
			t.Errorf("HasSubscription(%s) = false, want true", topic)
		}
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if got := client.SubscriptionCount(); got != len(topics)-1 {
		t.Errorf("SubscriptionCount() after unsubscribe = %d, want %d", got, len(topics)-1)
	}
	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}

// TestIntegration_CallbacksRegistered checks callbacks can be set and
// cleared on a live connection without racing the paho event goroutines.
func TestIntegration_CallbacksRegistered(t *testing.T) {
	client := connectClient(t, "shopdesk-int-callbacks")

	var connects, disconnects int32
	client.SetOnConnect(func() { atomic.AddInt32(&connects, 1) })
	client.SetOnDisconnect(func(err error) { atomic.AddInt32(&disconnects, 1) })

	client.SetOnConnect(nil)
	client.SetOnDisconnect(nil)
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	pub := connectClient(t, "shopdesk-int-pub")
	sub := connectClient(t, "shopdesk-int-sub")

	const topic = "shopdesk/int/roundtrip"
	const want = "test-message-12345"

	received := make(chan string, 1)
	var once sync.Once
	err := sub.Subscribe(topic, 1, func(_ string, payload []byte) error {
		once.Do(func() { received <- string(payload) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Give the broker a moment to register the subscription.
	time.Sleep(100 * time.Millisecond)

	if err := pub.PublishString(topic, want, 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}

func TestIntegration_LoggerSet(t *testing.T) {
	client := connectClient(t, "shopdesk-int-logger")

	client.SetLogger(&mockLogger{})
	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}

	client.SetLogger(nil)
	if client.getLogger() != nil {
		t.Error("getLogger() not nil after SetLogger(nil)")
	}
}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
