// File: utils/config.go
package utils

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable server parameter. Defaults reproduce the
// normative constants; a YAML file can override any subset.
type Config struct {
	// Network
	BindAddress string `yaml:"bind_address" json:"bindAddress"`
	Port        int    `yaml:"port" json:"port"`

	// Timing
	TickHz              int `yaml:"tick_hz" json:"tickHz"`                             // simulation cadence
	HeartbeatIntervalMs int `yaml:"heartbeat_interval_ms" json:"heartbeatIntervalMs"`  // server ping period
	ConnectionTimeoutMs int `yaml:"connection_timeout_ms" json:"connectionTimeoutMs"`  // close after silence
	PauseTimeoutMs      int `yaml:"pause_timeout_ms" json:"pauseTimeoutMs"`            // force-end stalled pause
	ReadyTimeoutMs      int `yaml:"ready_timeout_ms" json:"readyTimeoutMs"`            // cancel unready match
	DisconnectGraceMs   int `yaml:"disconnect_grace_ms" json:"disconnectGraceMs"`      // forfeit after drop
	GoalCooldownMs      int `yaml:"goal_cooldown_ms" json:"goalCooldownMs"`            // no re-count window

	// Game end thresholds
	ScoreLimit   int `yaml:"score_limit" json:"scoreLimit"`
	TimeLimitSec int `yaml:"time_limit_sec" json:"timeLimitSec"`

	// Field geometry (pixels)
	FieldWidth   float32 `yaml:"field_width" json:"fieldWidth"`
	FieldHeight  float32 `yaml:"field_height" json:"fieldHeight"`
	FloorY       float32 `yaml:"floor_y" json:"floorY"`
	GoalWidth    float32 `yaml:"goal_width" json:"goalWidth"`
	GoalHeight   float32 `yaml:"goal_height" json:"goalHeight"`
	BallRadius   float32 `yaml:"ball_radius" json:"ballRadius"`
	PlayerRadius float32 `yaml:"player_radius" json:"playerRadius"`

	// Physics
	Gravity           float32 `yaml:"gravity" json:"gravity"`                       // px/s^2
	MoveAccel         float32 `yaml:"move_accel" json:"moveAccel"`                  // px/s^2 while key held
	JumpSpeed         float32 `yaml:"jump_speed" json:"jumpSpeed"`                  // px/s upward
	AirResistance     float32 `yaml:"air_resistance" json:"airResistance"`          // per-tick multiplier, players
	BallAirResistance float32 `yaml:"ball_air_resistance" json:"ballAirResistance"` // per-tick multiplier, ball
	Restitution       float32 `yaml:"restitution" json:"restitution"`               // bounce normal factor
	BounceFriction    float32 `yaml:"bounce_friction" json:"bounceFriction"`        // bounce tangential factor
	KickRange         float32 `yaml:"kick_range" json:"kickRange"`                  // px, player center to ball center
	KickPower         float32 `yaml:"kick_power" json:"kickPower"`                  // px/s impulse
	KickUpwardBias    float32 `yaml:"kick_upward_bias" json:"kickUpwardBias"`       // px/s added upward
	KickCooldownMs    float32 `yaml:"kick_cooldown_ms" json:"kickCooldownMs"`

	// Plausibility ceilings (validator)
	MaxPlayerSpeed float32 `yaml:"max_player_speed" json:"maxPlayerSpeed"` // px/s
	MaxBallSpeed   float32 `yaml:"max_ball_speed" json:"maxBallSpeed"`     // px/s
	MaxInputRate   int     `yaml:"max_input_rate" json:"maxInputRate"`     // msgs/s sliding window
	MaxTimeDriftMs int     `yaml:"max_time_drift_ms" json:"maxTimeDriftMs"`
	BoundsMargin   float32 `yaml:"bounds_margin" json:"boundsMargin"` // px slack outside field

	// Rate limits (per connection, per minute)
	RateGeneralPerMin     int `yaml:"rate_general_per_min" json:"rateGeneralPerMin"`
	RateChatPerMin        int `yaml:"rate_chat_per_min" json:"rateChatPerMin"`
	RateMovementPerMin    int `yaml:"rate_movement_per_min" json:"rateMovementPerMin"`
	RateMatchmakingPerMin int `yaml:"rate_matchmaking_per_min" json:"rateMatchmakingPerMin"`
}

// DefaultConfig returns the normative configuration.
func DefaultConfig() Config {
	return Config{
		BindAddress: "0.0.0.0",
		Port:        3001,

		TickHz:              240,
		HeartbeatIntervalMs: 10000,
		ConnectionTimeoutMs: 30000,
		PauseTimeoutMs:      30000,
		ReadyTimeoutMs:      20000,
		DisconnectGraceMs:   10000,
		GoalCooldownMs:      3000,

		ScoreLimit:   5,
		TimeLimitSec: 600,

		FieldWidth:   FieldWidth,
		FieldHeight:  FieldHeight,
		FloorY:       FloorY,
		GoalWidth:    GoalWidth,
		GoalHeight:   GoalHeight,
		BallRadius:   BallRadius,
		PlayerRadius: PlayerRadius,

		Gravity:           2000,
		MoveAccel:         300,
		JumpSpeed:         750,
		AirResistance:     0.996,
		BallAirResistance: 0.998,
		Restitution:       0.8,
		BounceFriction:    0.95,
		KickRange:         70,
		KickPower:         600,
		KickUpwardBias:    350,
		KickCooldownMs:    500,

		MaxPlayerSpeed: 500,
		MaxBallSpeed:   800,
		MaxInputRate:   60,
		MaxTimeDriftMs: 1000,
		BoundsMargin:   50,

		RateGeneralPerMin:     60,
		RateChatPerMin:        10,
		RateMovementPerMin:    120,
		RateMatchmakingPerMin: 5,
	}
}

// LoadConfig reads a YAML file over the defaults. A missing path returns the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the simulator cannot run with.
func (c Config) Validate() error {
	if c.TickHz <= 0 {
		return fmt.Errorf("tick_hz must be positive, got %d", c.TickHz)
	}
	if c.FieldWidth <= 0 || c.FieldHeight <= 0 {
		return fmt.Errorf("field dimensions must be positive")
	}
	if c.GoalHeight >= c.FieldHeight {
		return fmt.Errorf("goal_height %v must be below field_height %v", c.GoalHeight, c.FieldHeight)
	}
	if c.ScoreLimit <= 0 {
		return fmt.Errorf("score_limit must be positive, got %d", c.ScoreLimit)
	}
	return nil
}

// TickPeriod is the wall-clock duration of one simulation tick.
func (c Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.TickHz)
}

// Dt is the fixed simulation timestep in seconds.
func (c Config) Dt() float32 {
	return 1.0 / float32(c.TickHz)
}

// HeartbeatInterval and friends expose the millisecond knobs as durations.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

func (c Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutMs) * time.Millisecond
}

func (c Config) PauseTimeout() time.Duration {
	return time.Duration(c.PauseTimeoutMs) * time.Millisecond
}

func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMs) * time.Millisecond
}

func (c Config) DisconnectGrace() time.Duration {
	return time.Duration(c.DisconnectGraceMs) * time.Millisecond
}
