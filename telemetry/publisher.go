// Package telemetry mirrors the drive's last-seen state into Redis and
// offers Redis-backed control inputs for rig-less benches.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"bamocar-bench/bamocar"
)

// Redis keyspace.
const (
	HashKey        = "bamocar"
	StatusChannel  = "bamocar status"
	OnlineChannel  = "bamocar online"
	TriggerChannel = "bamocar:trigger"
	PedalField     = "pedal"
)

// Publisher writes decoded readings into the bamocar hash and publishes
// change notifications for the fields observers subscribe to.
type Publisher struct {
	log   bamocar.Logger
	redis *redis.Client
	mu    sync.Mutex
	ctx   context.Context

	lastStatus uint16
	haveStatus bool
}

func NewPublisher(logger bamocar.Logger, rdb *redis.Client) *Publisher {
	return &Publisher{
		log:   logger,
		redis: rdb,
		ctx:   context.Background(),
	}
}

// PublishReading mirrors one decoded reading to Redis. Status changes also
// publish a notification so dashboards do not poll.
func (p *Publisher) PublishReading(r bamocar.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.Kind {
	case bamocar.KindStatus:
		pipe := p.redis.Pipeline()
		pipe.HSet(p.ctx, HashKey, map[string]interface{}{
			"status":        fmt.Sprintf("0x%04X", r.Status),
			"status-detail": bamocar.DescribeStatus(r.Status),
		})
		if !p.haveStatus || r.Status != p.lastStatus {
			pipe.Publish(p.ctx, StatusChannel, nil)
		}
		if _, err := pipe.Exec(p.ctx); err != nil {
			return fmt.Errorf("failed to publish status: %v", err)
		}
		p.lastStatus = r.Status
		p.haveStatus = true
		return nil

	case bamocar.KindSpeed:
		return p.hset("rpm", r.RPM)
	case bamocar.KindDCBusVoltage:
		return p.hset("dc-voltage", fmt.Sprintf("%.1f", r.Volts))
	case bamocar.KindCurrent:
		return p.hset("current", fmt.Sprintf("%.1f", r.Amps))
	case bamocar.KindTorqueFeedback:
		return p.hset("torque-feedback", fmt.Sprintf("%.1f", r.TorquePercent))
	case bamocar.KindTorqueSetpoint:
		return p.hset("torque-setpoint", r.Torque)
	default:
		// Unknown registers stay in the traffic log only.
		return nil
	}
}

// PublishSpeedKmh mirrors the averaged speed used by the dashboard.
func (p *Publisher) PublishSpeedKmh(kmh float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hset("speed-kmh", fmt.Sprintf("%.1f", kmh))
}

// PublishOnline records the online flag and notifies subscribers.
func (p *Publisher) PublishOnline(online bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pipe := p.redis.Pipeline()
	pipe.HSet(p.ctx, HashKey, "online", map[bool]string{true: "yes", false: "no"}[online])
	pipe.Publish(p.ctx, OnlineChannel, nil)
	if _, err := pipe.Exec(p.ctx); err != nil {
		return fmt.Errorf("failed to publish online flag: %v", err)
	}
	return nil
}

// PublishTorqueCommand records the last torque value the bench sent.
func (p *Publisher) PublishTorqueCommand(torque int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hset("torque-command", torque)
}

func (p *Publisher) hset(field string, value interface{}) error {
	if err := p.redis.HSet(p.ctx, HashKey, field, value).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %v", field, err)
	}
	return nil
}

// WriteDefaults resets the hash to a known idle state at startup.
func (p *Publisher) WriteDefaults() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.redis.HSet(p.ctx, HashKey, map[string]interface{}{
		"status":          "0x0000",
		"status-detail":   "none",
		"rpm":             0,
		"speed-kmh":       "0.0",
		"dc-voltage":      "0.0",
		"current":         "0.0",
		"torque-feedback": "0.0",
		"torque-setpoint": 0,
		"torque-command":  0,
		"online":          "no",
	}).Err(); err != nil {
		return fmt.Errorf("failed to write default state: %v", err)
	}
	return nil
}

func (p *Publisher) Destroy() {}
