package bench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/brutella/can"
	"github.com/go-redis/redis/v8"

	"bamocar-bench/bamocar"
	"bamocar-bench/canbus"
	"bamocar-bench/canlog"
	"bamocar-bench/dashboard"
	"bamocar-bench/telemetry"
)

const trafficFlushInterval = 500 * time.Millisecond

// Session wires the transport, the step sequencer and the optional sinks
// (Redis telemetry, WebSocket dashboard, CSV traffic log) into one control
// loop. All CAN traffic flows through the session, so the sinks see every
// frame in both directions.
type Session struct {
	log  *LeveledLogger
	opts *Options
	clk  clock.Clock

	transport canbus.Transport
	trigger   TriggerSource
	seq       *bamocar.Sequencer

	publisher *telemetry.Publisher
	hub       *dashboard.Hub
	traffic   *canlog.Log
	speed     telemetry.SpeedAverage

	online     bool
	lastStatus string
	lastRPM    int16
	lastKmh    float64

	sentTorque     int16
	haveSentTorque bool
	lastFlush      time.Time
}

// NewSession builds a session over an open transport. Telemetry sinks attach
// afterwards; the sequencer runs the given step table.
func NewSession(logger *LeveledLogger, opts *Options, transport canbus.Transport, trigger TriggerSource, torque bamocar.TorqueSource, steps []bamocar.Step) *Session {
	return newSession(logger, opts, transport, trigger, torque, steps, clock.New())
}

func newSession(logger *LeveledLogger, opts *Options, transport canbus.Transport, trigger TriggerSource, torque bamocar.TorqueSource, steps []bamocar.Step, clk clock.Clock) *Session {
	opts.applyDefaults()
	s := &Session{
		log:        logger,
		opts:       opts,
		clk:        clk,
		transport:  transport,
		trigger:    trigger,
		lastStatus: "Unknown",
	}
	s.seq = bamocar.NewSequencer(bamocar.SequencerConfig{
		Logger:           logger,
		Clock:            clk,
		Send:             s.send,
		Torque:           torque,
		StatusIntervalMs: opts.StatusIntervalMs,
		SpeedIntervalMs:  opts.SpeedIntervalMs,
		CANTimeoutMs:     opts.CANTimeoutMs,
		TorqueCadence:    opts.TorqueCadence,
		SettleDelay:      opts.SettleDelay,
		DumpLog:          s.dumpTraffic,
	}, steps)
	return s
}

// Sequencer exposes the step machine for status display.
func (s *Session) Sequencer() *bamocar.Sequencer {
	return s.seq
}

// AttachRedis connects the telemetry publisher and seeds the hash with
// defaults so dashboards have a complete keyspace from the start.
func (s *Session) AttachRedis(rdb *redis.Client) error {
	s.publisher = telemetry.NewPublisher(s.log, rdb)
	return s.publisher.WriteDefaults()
}

// AttachDashboard feeds live values and raw frames to a WebSocket hub.
func (s *Session) AttachDashboard(hub *dashboard.Hub) {
	s.hub = hub
}

// AttachTrafficLog records every frame to a CSV log on disk.
func (s *Session) AttachTrafficLog(l *canlog.Log) {
	s.traffic = l
	s.lastFlush = s.clk.Now()
}

// Run drives the control loop: operator trigger, inbound drain, torque
// cadence tick, in that order. It returns when the context is cancelled or
// when a trigger arrives after the last step.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.trigger != nil && s.trigger.TryGetEvent() {
			if s.seq.Complete() {
				s.log.Info("sequence finished, exiting")
				return nil
			}
			if err := s.seq.Advance(); err != nil {
				s.log.Error("step %d failed: %v", s.seq.Current(), err)
			}
		}

		s.drainInbound()

		if err := s.seq.Tick(); err != nil {
			s.log.Error("torque tick failed: %v", err)
		}
		s.publishTorque()
		s.maybeFlush()

		s.clk.Sleep(time.Millisecond)
	}
}

// Destroy releases the transport and the traffic log. Safe to call once the
// control loop has returned.
func (s *Session) Destroy() {
	if s.traffic != nil {
		if err := s.traffic.Close(); err != nil {
			s.log.Warn("closing traffic log: %v", err)
		}
	}
	if s.publisher != nil {
		s.publisher.Destroy()
	}
	if err := s.transport.Close(); err != nil {
		s.log.Warn("closing CAN transport: %v", err)
	}
}

func (s *Session) send(frame can.Frame) error {
	s.log.DebugCAN("TX", frame.ID, frame.Data[:], frame.Length)
	if s.traffic != nil {
		if err := s.traffic.Record(frame, "TX", bamocar.Describe(frame)); err != nil {
			s.log.Warn("traffic log write failed: %v", err)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastFrame(frameLine("TX", frame))
	}
	if err := s.transport.Send(frame); err != nil {
		s.log.Error("CAN send failed: %v", err)
		return err
	}
	return nil
}

// pollInbound receives at most one frame. The bool reports whether a frame
// was consumed, regardless of whether it decoded; callers drain until false.
func (s *Session) pollInbound() (bamocar.Reading, bool) {
	frame, ok := s.transport.TryReceive()
	if !ok {
		return bamocar.Reading{}, false
	}
	s.log.DebugCAN("RX", frame.ID, frame.Data[:], frame.Length)

	reading, err := bamocar.Decode(frame)
	decoded := ""
	if err == nil {
		decoded = reading.String()
	}
	if s.traffic != nil {
		if rerr := s.traffic.Record(frame, "RX", decoded); rerr != nil {
			s.log.Warn("traffic log write failed: %v", rerr)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastFrame(frameLine("RX", frame))
	}
	if err != nil {
		if errors.Is(err, bamocar.ErrUnrecognizedID) {
			s.log.Debug("ignoring frame from 0x%03X", frame.ID)
		} else {
			s.log.Warn("dropping frame from 0x%03X: %v", frame.ID, err)
		}
		return bamocar.Reading{Kind: bamocar.KindUnknown}, true
	}
	return reading, true
}

func (s *Session) drainInbound() {
	for {
		reading, ok := s.pollInbound()
		if !ok {
			return
		}
		s.apply(reading)
	}
}

// apply folds a decoded reading into session state and fans it out to the
// attached sinks.
func (s *Session) apply(r bamocar.Reading) {
	switch r.Kind {
	case bamocar.KindStatus:
		if !s.online {
			s.online = true
			s.log.Info("drive is online, status word 0x%04X", r.Status)
			if s.publisher != nil {
				if err := s.publisher.PublishOnline(true); err != nil {
					s.log.Warn("publishing online flag: %v", err)
				}
			}
		}
		s.lastStatus = bamocar.DescribeStatus(r.Status)
		s.publishReading(r)
		s.broadcastValues()

	case bamocar.KindSpeed:
		s.lastRPM = r.RPM
		s.lastKmh = telemetry.KmH(s.speed.Update(r.RPM))
		s.publishReading(r)
		if s.publisher != nil {
			if err := s.publisher.PublishSpeedKmh(s.lastKmh); err != nil {
				s.log.Warn("publishing speed: %v", err)
			}
		}
		s.broadcastValues()

	case bamocar.KindDCBusVoltage, bamocar.KindCurrent,
		bamocar.KindTorqueFeedback, bamocar.KindTorqueSetpoint,
		bamocar.KindTimeout:
		s.publishReading(r)
	}
}

func (s *Session) publishReading(r bamocar.Reading) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReading(r); err != nil {
		s.log.Warn("publishing reading 0x%02X: %v", r.Register, err)
	}
}

func (s *Session) publishTorque() {
	if !s.seq.TorqueActive() {
		return
	}
	torque := s.seq.LastTorque()
	if s.haveSentTorque && torque == s.sentTorque {
		return
	}
	s.sentTorque = torque
	s.haveSentTorque = true
	if s.publisher != nil {
		if err := s.publisher.PublishTorqueCommand(torque); err != nil {
			s.log.Warn("publishing torque command: %v", err)
		}
	}
	s.broadcastValues()
}

func (s *Session) broadcastValues() {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastValues(s.lastStatus, int(s.lastRPM), int(s.seq.LastTorque()), s.lastKmh)
}

func (s *Session) maybeFlush() {
	if s.traffic == nil {
		return
	}
	now := s.clk.Now()
	if now.Sub(s.lastFlush) < trafficFlushInterval {
		return
	}
	s.lastFlush = now
	if err := s.traffic.Flush(); err != nil {
		s.log.Warn("flushing traffic log: %v", err)
	}
}

func (s *Session) dumpTraffic() error {
	if s.traffic == nil {
		return nil
	}
	s.log.Info("dumping traffic log %s", s.traffic.Path())
	return s.traffic.Dump(os.Stdout)
}

func frameLine(dir string, frame can.Frame) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s 0x%03X", dir, frame.ID)
	for i := 0; i < int(frame.Length) && i < len(frame.Data); i++ {
		fmt.Fprintf(&sb, " %02X", frame.Data[i])
	}
	return sb.String()
}
