//go:build integration

package mqtt

import (
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Integration tests against a real broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectPublishClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "vantagesync-int-publish"

	client, err := Connect(cfg, "int-garden")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	received := make(chan []byte, 1)
	sub := pahomqtt.NewClient(pahomqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:1883").
		SetClientID("vantagesync-int-observer"))
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("observer connect failed: %v", token.Error())
	}
	defer sub.Disconnect(100)

	topic := client.Topics().Latest()
	sub.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case received <- msg.Payload():
		default:
		}
	}).WaitTimeout(5 * time.Second)

	if err := client.PublishJSON(topic, map[string]float64{"temp_out": 21.5}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"temp_out":21.5}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg, "int-garden"); err == nil {
		t.Fatal("Connect() expected error for unreachable broker")
	}
}
