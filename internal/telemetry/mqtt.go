package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/danielpatrickdp/adaptive-iv/go-controller/internal/vitals"
)

// #region mqtt
// MQTTSource subscribes to a broker topic carrying JSON telemetry payloads
// from the bedside sensor gateway. Samples are buffered; when the loop ticks
// faster than sensors publish, Next reports no sample and the loop holds.
type MQTTSource struct {
	client  mqtt.Client
	topic   string
	samples chan vitals.Telemetry
}

// sampleBuffer bounds how many unread samples are kept. At 5 Hz control and
// 1 Hz sensors the buffer never fills; if it does, the newest sample wins.
const sampleBuffer = 16

// NewMQTTSource connects to the broker and subscribes to topic.
func NewMQTTSource(brokerURL, clientID, topic string) (*MQTTSource, error) {
	s := &MQTTSource{
		topic:   topic,
		samples: make(chan vitals.Telemetry, sampleBuffer),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("[MQTT] connection lost: %v", err)
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerURL, token.Error())
	}
	if token := s.client.Subscribe(topic, 1, s.onMessage); token.Wait() && token.Error() != nil {
		s.client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}
	log.Printf("[MQTT] subscribed to %s", topic)
	return s, nil
}

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var m vitals.Telemetry
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		log.Printf("[MQTT] bad payload on %s: %v", msg.Topic(), err)
		return
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	select {
	case s.samples <- m:
	default:
		// Buffer full: drop the oldest so the loop sees fresh data.
		select {
		case <-s.samples:
		default:
		}
		select {
		case s.samples <- m:
		default:
		}
	}
}

// Next implements Source. It never blocks; an empty buffer means no sample
// arrived since the last cycle.
func (s *MQTTSource) Next() (vitals.Telemetry, bool) {
	select {
	case m := <-s.samples:
		return m, true
	default:
		return vitals.Telemetry{}, false
	}
}

// Close unsubscribes and disconnects from the broker.
func (s *MQTTSource) Close() {
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] unsubscribe: %v", token.Error())
	}
	s.client.Disconnect(250)
}

// #endregion mqtt
