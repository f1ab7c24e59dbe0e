package domain

// Direction is the directional outcome of one signal evaluation.
type Direction string

const (
	DirectionNone  Direction = "NONE"
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Signal is the result of one evaluation tick. Produced fresh each tick,
// never mutated after return. Reasons holds the rejection list of the first
// active candidate when Direction is NONE.
type Signal struct {
	Direction   Direction `json:"direction"`
	RSI         float64   `json:"rsi"`
	VolumeSpike bool      `json:"volume_spike"`
	Engulfing   bool      `json:"engulfing"`
	Reasons     []string  `json:"reasons,omitempty"`
}

// FilterConfig is a read-only snapshot of the filter toggles used for one
// evaluation tick. The operator may swap it between ticks.
type FilterConfig struct {
	RSIEMA              bool `yaml:"rsi_ema"`
	SafeMode            bool `yaml:"safe_mode"`
	Engulfing           bool `yaml:"engulfing"`
	EngulfingOnBreakout bool `yaml:"engulfing_on_breakout"`
	EngulfingBig        bool `yaml:"engulfing_big"`
	ConfirmDelay        bool `yaml:"confirm_delay"`
	MTFConfirm          bool `yaml:"mtf_confirm"`
	StrongVolume        bool `yaml:"strong_volume"`
	SessionFilter       bool `yaml:"session_filter"`

	Lookback         int     `yaml:"lookback"`
	BreakoutBuffer   float64 `yaml:"breakout_buffer"`
	VolumeMultiplier float64 `yaml:"volume_multiplier"`
}
