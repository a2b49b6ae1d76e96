package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// PolicyProportional maps the touch signal directly onto the output level.
	PolicyProportional = "proportional"
	// PolicyIncremental ramps the output level up or down by a fixed step per interval.
	PolicyIncremental = "incremental"

	// SensitivityPotentiometer derives the touch multiplier from the potentiometer.
	SensitivityPotentiometer = "potentiometer"
	// SensitivityFixed uses a constant touch multiplier.
	SensitivityFixed = "fixed"
)

var validate = validator.New()

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Sensitivity SensitivityConfig `yaml:"sensitivity"`
	Signal      SignalConfig      `yaml:"signal"`
	Output      OutputConfig      `yaml:"output"`
	Loop        LoopConfig        `yaml:"loop"`
	Amplifier   AmplifierConfig   `yaml:"amplifier"`
	Trace       TraceConfig       `yaml:"trace"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate" validate:"gte=0"`
}

// CalibrationConfig contains baseline calibration parameters.
type CalibrationConfig struct {
	Rounds      int           `yaml:"rounds" validate:"gte=0"`
	SettleDelay time.Duration `yaml:"settle_delay" validate:"gte=0"` // Hands-off wait before sampling
	SampleDelay time.Duration `yaml:"sample_delay" validate:"gte=0"` // Pause between baseline samples
}

// SensitivityConfig controls how the touch threshold multiplier is derived.
type SensitivityConfig struct {
	Source          string  `yaml:"source" validate:"oneof=potentiometer fixed"`
	PotMax          int     `yaml:"pot_max" validate:"gt=0"`
	MinMultiplier   float64 `yaml:"min_multiplier" validate:"gt=0,ltfield=MaxMultiplier"` // Most sensitive (light touch)
	MaxMultiplier   float64 `yaml:"max_multiplier" validate:"gt=0"`                       // Least sensitive (firm touch)
	FixedMultiplier float64 `yaml:"fixed_multiplier" validate:"gt=0"`
}

// SignalConfig contains signal estimation parameters.
type SignalConfig struct {
	MaxSignal      float32 `yaml:"max_signal" validate:"gt=0"`       // Ceiling of the approximate capacitance (pF)
	AverageSamples int     `yaml:"average_samples" validate:"gte=0"` // Board samples averaged per read (0 or 1 = latest only)
}

// OutputConfig selects and parameterizes the output mapping policy.
type OutputConfig struct {
	Policy      string        `yaml:"policy" validate:"oneof=proportional incremental"`
	LevelMax    int           `yaml:"level_max" validate:"gt=0,lte=255"`
	MinCap      float32       `yaml:"min_cap" validate:"gte=0"`
	MaxCap      float32       `yaml:"max_cap" validate:"gtefield=MinCap"`
	Step        int           `yaml:"step" validate:"gte=0"`
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`
}

// LoopConfig contains control loop timing.
type LoopConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
	Cadence  time.Duration `yaml:"cadence" validate:"gte=0"`
}

// AmplifierConfig controls whether the output level is dispatched at all.
type AmplifierConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TraceConfig contains history window parameters for monitoring.
type TraceConfig struct {
	WindowSeconds    float64 `yaml:"window_seconds" validate:"gte=0"`
	MinTouchDuration float64 `yaml:"min_touch_duration" validate:"gte=0"` // Shorter touch spans are treated as noise
}

// TelemetryConfig contains live telemetry endpoints. Empty values disable them.
type TelemetryConfig struct {
	Listen       string `yaml:"listen"`
	WSPath       string `yaml:"ws_path"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`
}

// LoggingConfig contains logging parameters.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=error warn warning info debug ERROR WARN WARNING INFO DEBUG"`
}

// MockConfig contains simulated board configuration.
type MockConfig struct {
	Baseline      uint16        `yaml:"baseline"`       // Untouched raw reading
	Noise         uint16        `yaml:"noise"`          // Peak noise amplitude (raw counts)
	TouchGain     float64       `yaml:"touch_gain"`     // Raw reading multiplier while touched
	TouchDuration time.Duration `yaml:"touch_duration"` // Simulated touch length
	TouchPeriod   time.Duration `yaml:"touch_period"`   // Time between simulated touches
	Potentiometer uint16        `yaml:"potentiometer"`  // Simulated potentiometer reading
	SampleRate    time.Duration `yaml:"sample_rate"`
	FailEvery     int           `yaml:"fail_every"` // Every Nth amplifier write fails (0 = never)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Calibration: CalibrationConfig{
			Rounds:      50,
			SettleDelay: 3 * time.Second,
			SampleDelay: 20 * time.Millisecond,
		},
		Sensitivity: SensitivityConfig{
			Source:          SensitivityPotentiometer,
			PotMax:          65535,
			MinMultiplier:   1.2,
			MaxMultiplier:   5.0,
			FixedMultiplier: 1.5,
		},
		Signal: SignalConfig{
			MaxSignal:      100.0,
			AverageSamples: 1,
		},
		Output: OutputConfig{
			Policy:      PolicyProportional,
			LevelMax:    63,
			MinCap:      0.0,
			MaxCap:      100.0,
			Step:        3,
			MinInterval: time.Second,
		},
		Loop: LoopConfig{
			Debounce: 50 * time.Millisecond,
			Cadence:  50 * time.Millisecond,
		},
		Amplifier: AmplifierConfig{
			Enabled: true,
		},
		Trace: TraceConfig{
			WindowSeconds:    10,
			MinTouchDuration: 0.1,
		},
		Telemetry: TelemetryConfig{
			Listen:       "",
			WSPath:       "/ws",
			MQTTBroker:   "",
			MQTTTopic:    "touchamp",
			MQTTClientID: "touchamp",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Mock: MockConfig{
			Baseline:      1000,
			Noise:         8,
			TouchGain:     1.8,
			TouchDuration: 3 * time.Second,
			TouchPeriod:   10 * time.Second,
			Potentiometer: 0,
			SampleRate:    10 * time.Millisecond,
			FailEvery:     0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks field ranges and cross-field invariants.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// ensureDefaults replaces zero values that would leave the loop unusable.
// Load starts from Default, so only keys written as zero or empty reach
// here. Zero is kept where it means something: calibration rounds (no
// samples, zero baseline), trace window (unbounded) and the mock board.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Sensitivity.Source == "" {
		c.Sensitivity.Source = def.Sensitivity.Source
	}
	if c.Sensitivity.PotMax == 0 {
		c.Sensitivity.PotMax = def.Sensitivity.PotMax
	}
	if c.Sensitivity.MinMultiplier == 0 {
		c.Sensitivity.MinMultiplier = def.Sensitivity.MinMultiplier
	}
	if c.Sensitivity.MaxMultiplier == 0 {
		c.Sensitivity.MaxMultiplier = def.Sensitivity.MaxMultiplier
	}
	if c.Sensitivity.FixedMultiplier == 0 {
		c.Sensitivity.FixedMultiplier = def.Sensitivity.FixedMultiplier
	}

	if c.Signal.MaxSignal == 0 {
		c.Signal.MaxSignal = def.Signal.MaxSignal
	}

	if c.Output.Policy == "" {
		c.Output.Policy = def.Output.Policy
	}
	if c.Output.LevelMax == 0 {
		c.Output.LevelMax = def.Output.LevelMax
	}
	if c.Output.MaxCap == 0 && c.Output.MinCap == 0 {
		c.Output.MaxCap = c.Signal.MaxSignal
	}

	if c.Telemetry.WSPath == "" {
		c.Telemetry.WSPath = def.Telemetry.WSPath
	}
	if c.Telemetry.MQTTTopic == "" {
		c.Telemetry.MQTTTopic = def.Telemetry.MQTTTopic
	}
	if c.Telemetry.MQTTClientID == "" {
		c.Telemetry.MQTTClientID = def.Telemetry.MQTTClientID
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}
