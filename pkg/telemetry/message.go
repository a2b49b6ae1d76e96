// Package telemetry streams control cycles to external consumers: browser
// dashboards over websocket and home-automation brokers over MQTT.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/itohio/touchamp/pkg/control"
)

// Message types.
const (
	TypeHello = "hello"
	TypeCycle = "cycle"
)

// envelope is the wire format envelope for websocket messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// helloData is the `data` payload of the first message on connect.
type helloData struct {
	Policy   string `json:"policy"`
	LevelMax int    `json:"level_max"`
	Baseline int    `json:"baseline"`
	Level    int    `json:"level"`
}

// encode marshals a typed envelope. A zero ts is replaced with now.
func encode(typ string, ts time.Time, data any) ([]byte, error) {
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	msg, err := json.Marshal(envelope{
		Type: typ,
		Ts:   &ts,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", typ, err)
	}
	return msg, nil
}

// EncodeCycle returns the websocket frame for a cycle.
func EncodeCycle(c control.Cycle) ([]byte, error) {
	return encode(TypeCycle, c.At, c)
}
