package control

import "time"

// Cycle records one iteration of the control loop.
type Cycle struct {
	At            time.Time `json:"at"`
	Raw           uint16    `json:"raw"`
	Pot           uint16    `json:"pot"`
	Multiplier    float64   `json:"multiplier"`
	Baseline      int       `json:"baseline"`
	Threshold     int       `json:"threshold"`
	Signal        float32   `json:"signal"`
	Touching      bool      `json:"touching"`
	Policy        string    `json:"policy"`
	Level         int       `json:"level"`
	Dispatched    bool      `json:"dispatched"` // Level was written to the actuator
	ActuatorError string    `json:"actuator_error,omitempty"`
}

// Seconds returns the cycle timestamp as fractional unix seconds.
func (c Cycle) Seconds() float64 {
	return float64(c.At.UnixNano()) / 1e9
}
