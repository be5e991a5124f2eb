package bamocar

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/brutella/can"
)

// Default timing for the step sequence.
const (
	DefaultTorqueCadence = 20 * time.Millisecond
	DefaultSettleDelay   = 100 * time.Millisecond
	DefaultCANTimeoutMs  = 2000
)

// SendFunc hands an outbound frame to the transport.
type SendFunc func(can.Frame) error

// TorqueSource reads the current scaled torque command.
type TorqueSource func() int16

// Step is one entry in the bench sequence. Run performs the step's one-shot
// work; continuous behavior (torque cadence) is driven by Tick.
type Step struct {
	Name string
	Run  func(s *Sequencer) error
}

// SequencerConfig configures a Sequencer. Zero values fall back to the
// defaults above.
type SequencerConfig struct {
	Logger Logger
	Clock  clock.Clock
	Send   SendFunc
	Torque TorqueSource

	StatusIntervalMs byte   // cyclic status interval, 0 = request once
	SpeedIntervalMs  byte   // cyclic speed interval
	CANTimeoutMs     uint16 // drive-side reply timeout (register 0xD0)
	TorqueCadence    time.Duration
	SettleDelay      time.Duration

	// DumpLog replays the traffic log; nil disables the dump step.
	DumpLog func() error
}

// Sequencer owns the step counter and the torque-cadence bookkeeping. It is
// driven from a single control loop, so it carries no locking.
type Sequencer struct {
	log    Logger
	clk    clock.Clock
	send   SendFunc
	torque TorqueSource
	steps  []Step

	statusInterval byte
	speedInterval  byte
	canTimeoutMs   uint16
	cadence        time.Duration
	settle         time.Duration
	dump           func() error

	current        int
	torqueActive   bool
	lastTorque     int16
	lastTorqueSend time.Time
}

// NewSequencer builds a sequencer over the given step table.
func NewSequencer(cfg SequencerConfig, steps []Step) *Sequencer {
	s := &Sequencer{
		log:            cfg.Logger,
		clk:            cfg.Clock,
		send:           cfg.Send,
		torque:         cfg.Torque,
		steps:          steps,
		statusInterval: cfg.StatusIntervalMs,
		speedInterval:  cfg.SpeedIntervalMs,
		canTimeoutMs:   cfg.CANTimeoutMs,
		cadence:        cfg.TorqueCadence,
		settle:         cfg.SettleDelay,
		dump:           cfg.DumpLog,
	}
	if s.clk == nil {
		s.clk = clock.New()
	}
	if s.log == nil {
		s.log = NewStdLogger(nopPrintf{})
	}
	if s.cadence == 0 {
		s.cadence = DefaultTorqueCadence
	}
	if s.settle == 0 {
		s.settle = DefaultSettleDelay
	}
	if s.canTimeoutMs == 0 {
		s.canTimeoutMs = DefaultCANTimeoutMs
	}
	if s.speedInterval == 0 {
		s.speedInterval = 100
	}
	return s
}

type nopPrintf struct{}

func (nopPrintf) Printf(format string, v ...interface{}) {}

// InteractiveSteps is the keypress-advanced bench sequence.
func InteractiveSteps() []Step {
	return []Step{
		{Name: "Request STATUS once", Run: (*Sequencer).stepStatusRequest},
		{Name: "Request cyclic SPEED_ACTUAL updates", Run: (*Sequencer).stepSpeedCyclic},
		{Name: "Enable the drive", Run: (*Sequencer).stepEnable},
		{Name: "Start torque control", Run: (*Sequencer).stepTorqueControl},
		{Name: "Stop torque (command 0)", Run: (*Sequencer).stepZeroTorque},
		{Name: "Disable the drive", Run: (*Sequencer).stepDisable},
		{Name: "Dump traffic log", Run: (*Sequencer).stepDumpLog},
	}
}

// HeadlessSteps is the automatic bring-up sequence, including the
// housekeeping steps (error clear, reply-timeout configuration) the
// interactive variant leaves to the operator.
func HeadlessSteps() []Step {
	return []Step{
		{Name: "Cyclic STATUS + SPEED", Run: (*Sequencer).stepCyclicTelemetry},
		{Name: "Request DC bus voltage once", Run: (*Sequencer).stepDCBusOnce},
		{Name: "Clear error flags", Run: (*Sequencer).stepClearErrors},
		{Name: "Configure CAN reply timeout", Run: (*Sequencer).stepCANTimeout},
		{Name: "Enable the drive", Run: (*Sequencer).stepEnableFull},
		{Name: "Zero torque sanity command", Run: (*Sequencer).stepZeroTorque},
		{Name: "Start torque control", Run: (*Sequencer).stepTorqueControl},
		{Name: "Disable the drive", Run: (*Sequencer).stepDisable},
		{Name: "Dump traffic log", Run: (*Sequencer).stepDumpLog},
	}
}

// Advance moves to the next step and runs it. Advancing past the last step
// is terminal: it sends nothing and reports the sequence complete.
func (s *Sequencer) Advance() error {
	s.current++
	if s.current > len(s.steps) {
		s.current = len(s.steps) + 1 // stay terminal, no wraparound
		s.torqueActive = false
		s.log.Info("Sequence complete. Restart to run again.")
		return nil
	}

	// Leaving any step ends continuous torque transmission.
	s.torqueActive = false

	step := s.steps[s.current-1]
	s.log.Info("Step %d: %s", s.current, step.Name)
	return step.Run(s)
}

// Current returns the 1-based current step, 0 when idle.
func (s *Sequencer) Current() int {
	if s.current > len(s.steps) {
		return len(s.steps)
	}
	return s.current
}

// Complete reports whether the sequence has run past its last step.
func (s *Sequencer) Complete() bool {
	return s.current > len(s.steps)
}

// StepCount returns the number of defined steps.
func (s *Sequencer) StepCount() int {
	return len(s.steps)
}

// TorqueActive reports whether the torque-control step is running.
func (s *Sequencer) TorqueActive() bool {
	return s.torqueActive
}

// LastTorque returns the most recent torque command sent.
func (s *Sequencer) LastTorque() int16 {
	return s.lastTorque
}

// Tick drives the torque cadence. While the torque-control step is active
// it reads the scaler and sends a TORQUE_CMD at most once per cadence
// interval. Call it every control-loop iteration.
func (s *Sequencer) Tick() error {
	if !s.torqueActive || s.torque == nil {
		return nil
	}
	now := s.clk.Now()
	if !s.lastTorqueSend.IsZero() && now.Sub(s.lastTorqueSend) < s.cadence {
		return nil
	}
	torque := s.torque()
	s.lastTorque = torque
	s.lastTorqueSend = now
	return s.sendFrame(NewCommand(RegTorqueCmd, torque))
}

func (s *Sequencer) sendFrame(frame can.Frame) error {
	DebugCANFrame(s.log, "TX", frame.ID, frame.Data, frame.Length)
	return s.send(frame)
}

func (s *Sequencer) stepStatusRequest() error {
	return s.sendFrame(NewRequest(RegStatus, s.statusInterval))
}

func (s *Sequencer) stepSpeedCyclic() error {
	return s.sendFrame(NewRequest(RegSpeedActual, s.speedInterval))
}

func (s *Sequencer) stepCyclicTelemetry() error {
	interval := s.statusInterval
	if interval == 0 {
		interval = 100
	}
	if err := s.sendFrame(NewRequest(RegStatus, interval)); err != nil {
		return err
	}
	return s.sendFrame(NewRequest(RegSpeedActual, s.speedInterval))
}

func (s *Sequencer) stepDCBusOnce() error {
	return s.sendFrame(NewRequest(RegDCBusVoltage, 0))
}

func (s *Sequencer) stepClearErrors() error {
	return s.sendFrame(NewByteCommand(RegClearErrors, 0x00))
}

func (s *Sequencer) stepCANTimeout() error {
	return s.sendFrame(NewCommand(RegCANTimeout, int16(s.canTimeoutMs)))
}

// stepEnable performs the lock-then-enable handshake. The drive only accepts
// an enable after observing an explicit lock transition, and it needs the
// settle delay between the two frames. Program order here is load-bearing.
func (s *Sequencer) stepEnable() error {
	if err := s.sendFrame(NewByteCommand(RegDriveControl, DriveLock)); err != nil {
		return err
	}
	s.clk.Sleep(s.settle)
	return s.sendFrame(NewByteCommand(RegDriveControl, DriveEnable))
}

// stepEnableFull clears errors before the handshake and requests a status
// reply afterwards, as the headless bring-up does.
func (s *Sequencer) stepEnableFull() error {
	if err := s.sendFrame(NewByteCommand(RegClearErrors, 0x00)); err != nil {
		return err
	}
	s.clk.Sleep(s.settle)
	if err := s.stepEnable(); err != nil {
		return err
	}
	return s.sendFrame(NewRequest(RegStatus, 0))
}

func (s *Sequencer) stepTorqueControl() error {
	s.torqueActive = true
	s.lastTorqueSend = time.Time{} // send on the next tick
	s.log.Info("Torque control active (cadence %s)", s.cadence)
	return nil
}

func (s *Sequencer) stepZeroTorque() error {
	s.lastTorque = 0
	return s.sendFrame(NewCommand(RegTorqueCmd, 0))
}

// stepDisable locks the drive. A lone lock frame is the documented disable.
func (s *Sequencer) stepDisable() error {
	return s.sendFrame(NewByteCommand(RegDriveControl, DriveLock))
}

func (s *Sequencer) stepDumpLog() error {
	if s.dump == nil {
		s.log.Info("No traffic log attached, nothing to dump")
		return nil
	}
	return s.dump()
}
