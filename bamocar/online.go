package bamocar

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Default bounds for the online wait.
const (
	DefaultOnlineMaxWait      = 10 * time.Second
	DefaultOnlinePollInterval = 100 * time.Millisecond
)

// OnlineConfig bounds the online wait. Zero values use the defaults.
type OnlineConfig struct {
	MaxWait      time.Duration
	PollInterval time.Duration
}

// AwaitOnline repeatedly sends a STATUS probe and drains inbound readings
// until a status reply is decoded or MaxWait elapses. It returns true once
// the drive is online, false on timeout. Fixed-interval retry with no
// backoff: the bus is local and low latency, a reply either comes within a
// poll or two or the drive is not powered.
//
// Probe send errors are ignored; transmission is fire-and-forget at this
// layer and the bounded wait itself reports the failure.
func AwaitOnline(clk clock.Clock, cfg OnlineConfig, probe func() error, poll func() (Reading, bool)) bool {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = DefaultOnlineMaxWait
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultOnlinePollInterval
	}

	deadline := clk.Now().Add(cfg.MaxWait)
	for {
		_ = probe()
		for {
			reading, ok := poll()
			if !ok {
				break
			}
			if reading.Kind == KindStatus {
				return true
			}
		}
		if !clk.Now().Before(deadline) {
			return false
		}
		clk.Sleep(cfg.PollInterval)
	}
}
