// Package notify publishes device and preset events to an MQTT broker so
// external dashboards and automations can follow what the rig is doing.
// Publishing is best effort: a dead broker never blocks the note path.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jorgetrad99/guitar-midi-sub000/engine"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	queueSize      = 64
	topicPrefix    = "midirig"
)

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// MQTT implements engine.Notifier on a paho client. Notifier calls only
// enqueue; a single worker goroutine talks to the broker, so a slow or
// unreachable broker never stalls the caller. When the queue fills, events
// are dropped.
type MQTT struct {
	client pahomqtt.Client
	log    *slog.Logger
	queue  chan message
	done   chan struct{}
}

// Connect dials the broker and publishes a retained online status. The
// client auto-reconnects; events raised while offline are dropped.
func Connect(broker, clientID string, log *slog.Logger) (*MQTT, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetWill(topicPrefix+"/status", `{"online":false}`, 1, true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout after %v", broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	n := newNotifier(client, log)
	n.enqueue(topicPrefix+"/status", map[string]any{"online": true}, true)
	return n, nil
}

func newNotifier(client pahomqtt.Client, log *slog.Logger) *MQTT {
	n := &MQTT{
		client: client,
		log:    log,
		queue:  make(chan message, queueSize),
		done:   make(chan struct{}),
	}
	go n.worker()
	return n
}

// Close drains nothing: queued events are abandoned, the offline status is
// published directly, and the client disconnects.
func (n *MQTT) Close() {
	close(n.done)
	body, _ := json.Marshal(map[string]any{"online": false})
	n.client.Publish(topicPrefix+"/status", 1, true, body).WaitTimeout(publishTimeout)
	n.client.Disconnect(uint(publishTimeout.Milliseconds()))
}

func (n *MQTT) DeviceConnected(device string, typ engine.DeviceType) {
	n.enqueue(deviceTopic(device, "state"), map[string]any{
		"connected": true,
		"type":      typ.String(),
	}, true)
}

func (n *MQTT) DeviceDisconnected(device string) {
	n.enqueue(deviceTopic(device, "state"), map[string]any{
		"connected": false,
	}, true)
}

func (n *MQTT) PresetChanged(device string, presetID int) {
	n.enqueue(deviceTopic(device, "preset"), map[string]any{
		"preset": presetID,
	}, true)
}

func deviceTopic(device, leaf string) string {
	return fmt.Sprintf("%s/device/%s/%s", topicPrefix, device, leaf)
}

// enqueue hands a message to the worker without ever blocking the caller.
func (n *MQTT) enqueue(topic string, payload map[string]any, retained bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Warn("notification not encoded", "topic", topic, "err", err)
		return
	}
	select {
	case n.queue <- message{topic: topic, payload: body, retained: retained}:
	default:
		n.log.Debug("notification dropped, queue full", "topic", topic)
	}
}

func (n *MQTT) worker() {
	for {
		select {
		case <-n.done:
			return
		case m := <-n.queue:
			token := n.client.Publish(m.topic, 1, m.retained, m.payload)
			if !token.WaitTimeout(publishTimeout) {
				n.log.Warn("notification publish timed out", "topic", m.topic)
				continue
			}
			if err := token.Error(); err != nil {
				n.log.Warn("notification not published", "topic", m.topic, "err", err)
			}
		}
	}
}
