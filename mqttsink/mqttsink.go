// Package mqttsink publishes fused navigation state as JSON to an MQTT
// broker, for dashboards and logging subscribers that can't tap the
// process directly - the same broker-publish pattern the GPS producer in
// the reference corpus uses to fan its own fixes out to "inertial/gps".
package mqttsink

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Sink publishes JSON-encoded payloads to a fixed MQTT topic.
type Sink struct {
	client mqtt.Client
	topic  string
}

// Connect dials brokerURL (e.g. "tcp://localhost:1883") and returns a Sink
// publishing to topic.
func Connect(brokerURL, clientID, topic string) (*Sink, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerURL).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Sink{client: client, topic: topic}, nil
}

// NavStateMessage is the JSON shape published per fused state update.
type NavStateMessage struct {
	TimeSec float64 `json:"t"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	QuatW   float64 `json:"qw"`
	QuatX   float64 `json:"qx"`
	QuatY   float64 `json:"qy"`
	QuatZ   float64 `json:"qz"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	VZ      float64 `json:"vz"`
}

// Publish marshals msg and publishes it to the sink's topic, retained so a
// late-joining subscriber immediately sees the last known state.
func (s *Sink) Publish(msg NavStateMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mqttsink: marshal: %w", err)
	}
	token := s.client.Publish(s.topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

// Disconnect gracefully closes the MQTT connection, waiting up to 250ms
// for in-flight publishes to drain.
func (s *Sink) Disconnect() {
	s.client.Disconnect(250)
}
