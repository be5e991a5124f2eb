package bench

import (
	"log"
	"time"
)

type LogLevel int

const (
	LogLevelNone  LogLevel = 0
	LogLevelError LogLevel = 1
	LogLevelWarn  LogLevel = 2
	LogLevelInfo  LogLevel = 3
	LogLevelDebug LogLevel = 4
)

// Options configures a bench session. The cobra commands populate it from
// flags; zero values fall back to the defaults below.
type Options struct {
	LogLevel        LogLevel
	CANDevice       string
	RedisServerAddr string
	RedisServerPort uint16
	DashboardAddr   string
	LogDir          string

	MaxAccelPercent  uint8
	TorqueCadence    time.Duration
	SettleDelay      time.Duration
	StatusIntervalMs byte
	SpeedIntervalMs  byte
	CANTimeoutMs     uint16

	// Pedal calibration: raw reading at rest and fully pressed.
	PedalRest    uint16
	PedalPressed uint16

	// Headless run bounds.
	OnlineMaxWait      time.Duration
	OnlinePollInterval time.Duration
	AutoStepDelay      time.Duration
	PedalPollInterval  time.Duration
	// PedalReleaseTimeout bounds the wait for the pedal to return to rest
	// before torque control starts. Zero waits forever, matching the
	// original rig behavior.
	PedalReleaseTimeout time.Duration

	Logger *log.Logger
}

func (o *Options) applyDefaults() {
	if o.MaxAccelPercent == 0 {
		o.MaxAccelPercent = 50
	}
	if o.TorqueCadence == 0 {
		o.TorqueCadence = 20 * time.Millisecond
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = 100 * time.Millisecond
	}
	if o.SpeedIntervalMs == 0 {
		o.SpeedIntervalMs = 100
	}
	if o.CANTimeoutMs == 0 {
		o.CANTimeoutMs = 2000
	}
	if o.OnlineMaxWait == 0 {
		o.OnlineMaxWait = 10 * time.Second
	}
	if o.OnlinePollInterval == 0 {
		o.OnlinePollInterval = 100 * time.Millisecond
	}
	if o.AutoStepDelay == 0 {
		o.AutoStepDelay = 200 * time.Millisecond
	}
	if o.PedalPollInterval == 0 {
		o.PedalPollInterval = 50 * time.Millisecond
	}
}
