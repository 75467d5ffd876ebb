// Package mqtt receives trace commands from a broker and pushes them through
// the same forwarding path as the HTTP API.
package mqtt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Forwarder is the orchestrator side of command delivery.
type Forwarder interface {
	Forward(ctx context.Context, cabinetID string, command []byte) error
}

// Listener subscribes to led/{site}/{cabinet}/trace and forwards each JSON
// payload to the named cabinet. Messages are acked whether forwarding
// succeeds or not; the broker is an intake, not a retry queue.
type Listener struct {
	broker   string
	siteCode string
	fwd      Forwarder
	client   paho.Client
}

func NewListener(broker, siteCode string, fwd Forwarder) *Listener {
	return &Listener{broker: broker, siteCode: siteCode, fwd: fwd}
}

// Start connects and blocks until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(l.broker).
		SetClientID(fmt.Sprintf("cabinet-orchestrator-%d", time.Now().UnixNano())).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			topic := fmt.Sprintf("led/%s/+/trace", wildcardIfEmpty(l.siteCode))
			log.Printf("[MQTT] connected to %s, subscribing %s", l.broker, topic)
			if token := c.Subscribe(topic, 1, l.onMessage); token.Wait() && token.Error() != nil {
				log.Printf("[MQTT] subscribe failed: %v", token.Error())
			}
		}).
		SetConnectionLostHandler(func(c paho.Client, err error) {
			log.Printf("[MQTT] connection lost: %v", err)
		})

	l.client = paho.NewClient(opts)
	if token := l.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	<-ctx.Done()
	l.client.Disconnect(250)
	return nil
}

// onMessage handles led/{site}/{cabinet}/trace payloads.
func (l *Listener) onMessage(_ paho.Client, msg paho.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) != 4 || parts[0] != "led" || parts[3] != "trace" {
		log.Printf("[MQTT] ignoring message on unexpected topic %q", msg.Topic())
		return
	}
	cabinetID := parts[2]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.fwd.Forward(ctx, cabinetID, msg.Payload()); err != nil {
		log.Printf("[MQTT] forward to %s failed: %v", cabinetID, err)
		return
	}
	log.Printf("[MQTT] forwarded trace to %s", cabinetID)
}

func wildcardIfEmpty(s string) string {
	if s == "" {
		return "+"
	}
	return s
}
