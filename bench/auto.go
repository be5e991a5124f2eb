package bench

import (
	"context"
	"errors"
	"time"

	"bamocar-bench/bamocar"
)

var (
	// ErrOnlineTimeout means the drive never answered a status probe
	// within the online wait bound.
	ErrOnlineTimeout = errors.New("drive never came online")
	// ErrPedalTimeout means the pedal was still pressed when the release
	// wait expired.
	ErrPedalTimeout = errors.New("pedal was not released in time")
)

const pedalReleaseMaxPercent = 5.0

// AutoRun executes the headless sequence end to end: start cyclic telemetry,
// wait for the drive to come online, walk the housekeeping and enable steps,
// hold until the pedal is released, then hand over to the torque control
// loop. The pedal gate keeps a press held during power-up from commanding
// torque the instant the drive enables.
func (s *Session) AutoRun(ctx context.Context, pedal AnalogSource) error {
	if err := s.seq.Advance(); err != nil {
		return err
	}
	s.drainInbound()

	probe := func() error {
		return s.send(bamocar.NewRequest(bamocar.RegStatus, 0))
	}
	online := bamocar.AwaitOnline(s.clk, bamocar.OnlineConfig{
		MaxWait:      s.opts.OnlineMaxWait,
		PollInterval: s.opts.OnlinePollInterval,
	}, probe, s.pollInboundApplied)
	if !online {
		return ErrOnlineTimeout
	}
	s.log.Info("drive answered status probe, continuing")

	// DC bus readout, error clear, reply timeout, enable, zero torque.
	// The enable and zero-torque steps get a longer settle.
	for i := 0; i < 5; i++ {
		if err := s.seq.Advance(); err != nil {
			return err
		}
		s.drainInbound()
		pause := s.opts.AutoStepDelay
		if i >= 3 {
			pause = pause * 5 / 2
		}
		s.clk.Sleep(pause)
	}

	if err := s.awaitPedalRelease(ctx, pedal); err != nil {
		return err
	}
	s.log.Info("pedal at rest, starting torque control")

	if err := s.seq.Advance(); err != nil {
		return err
	}
	return s.Run(ctx)
}

// pollInboundApplied is pollInbound plus the state fan-out, shaped for
// bamocar.AwaitOnline.
func (s *Session) pollInboundApplied() (bamocar.Reading, bool) {
	reading, ok := s.pollInbound()
	if ok {
		s.apply(reading)
	}
	return reading, ok
}

func (s *Session) awaitPedalRelease(ctx context.Context, pedal AnalogSource) error {
	gate := bamocar.PedalScaler{
		RestValue:       s.opts.PedalRest,
		PressedValue:    s.opts.PedalPressed,
		MaxAccelPercent: 100,
	}
	var deadline time.Time
	if s.opts.PedalReleaseTimeout > 0 {
		deadline = s.clk.Now().Add(s.opts.PedalReleaseTimeout)
	}
	warned := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pct := gate.Percent(averagePedal(pedal))
		if pct <= pedalReleaseMaxPercent {
			return nil
		}
		if !warned {
			s.log.Warn("pedal held at %.1f%%, waiting for release", pct)
			warned = true
		}
		if !deadline.IsZero() && !s.clk.Now().Before(deadline) {
			return ErrPedalTimeout
		}
		s.drainInbound()
		s.clk.Sleep(s.opts.PedalPollInterval)
	}
}

// averagePedal smooths a raw sample burst so a single noisy reading cannot
// flip the release gate.
func averagePedal(src AnalogSource) uint16 {
	const samples = 8
	var sum uint32
	for i := 0; i < samples; i++ {
		sum += uint32(src.Read())
	}
	return uint16(sum / samples)
}
