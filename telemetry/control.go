package telemetry

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"

	"bamocar-bench/bamocar"
)

// Trigger advances the step sequence through Redis pubsub: any message on
// the trigger channel counts as one keypress. It lets a second terminal (or
// a test rig script) drive the bench remotely.
type Trigger struct {
	log    bamocar.Logger
	sub    *redis.PubSub
	events chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func NewTrigger(logger bamocar.Logger, rdb *redis.Client) *Trigger {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Trigger{
		log:    logger,
		sub:    rdb.Subscribe(ctx, TriggerChannel),
		events: make(chan struct{}, 8),
		ctx:    ctx,
		cancel: cancel,
	}
	go t.receiveLoop()
	return t
}

func (t *Trigger) receiveLoop() {
	t.log.Info("Starting trigger subscription handler")
	for {
		msg, err := t.sub.Receive(t.ctx)
		if err != nil {
			if err == context.Canceled {
				return
			}
			t.log.Error("Trigger subscription error: %v", err)
			continue
		}

		switch m := msg.(type) {
		case *redis.Message:
			t.log.Debug("Trigger message received: payload=%s", m.Payload)
			select {
			case t.events <- struct{}{}:
			default:
				// Queue full; drop. The operator is mashing the key.
			}
		case *redis.Subscription:
			t.log.Debug("Trigger subscription event: %s %s", m.Channel, m.Kind)
		}
	}
}

// TryGetEvent reports whether a trigger event is pending, consuming all
// queued events so a burst advances one step, not several.
func (t *Trigger) TryGetEvent() bool {
	fired := false
	for {
		select {
		case <-t.events:
			fired = true
		default:
			return fired
		}
	}
}

func (t *Trigger) Destroy() {
	t.cancel()
	if t.sub != nil {
		t.sub.Close()
	}
}

// PedalOverride reads the pedal position from the bamocar hash, letting a
// bench without the analog harness inject pedal values by hand. A missing
// or unparsable field reads as the rest position.
type PedalOverride struct {
	log   bamocar.Logger
	redis *redis.Client
	ctx   context.Context
	rest  uint16
}

func NewPedalOverride(logger bamocar.Logger, rdb *redis.Client, restValue uint16) *PedalOverride {
	return &PedalOverride{
		log:   logger,
		redis: rdb,
		ctx:   context.Background(),
		rest:  restValue,
	}
}

// Read implements the analog input source.
func (p *PedalOverride) Read() uint16 {
	value, err := p.redis.HGet(p.ctx, HashKey, PedalField).Result()
	if err != nil {
		if err != redis.Nil {
			p.log.Error("Failed to read pedal override: %v", err)
		}
		return p.rest
	}
	raw, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		p.log.Warn("Pedal override %q is not a raw reading", value)
		return p.rest
	}
	return uint16(raw)
}
