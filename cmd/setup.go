package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"bamocar-bench/bamocar"
	"bamocar-bench/bench"
	"bamocar-bench/canbus"
	"bamocar-bench/canlog"
	"bamocar-bench/dashboard"
	"bamocar-bench/telemetry"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// sessionEnv bundles a wired session with the services it depends on, so the
// subcommands share one setup path.
type sessionEnv struct {
	logger  *bench.LeveledLogger
	session *bench.Session
	pedal   bench.AnalogSource
	trigger *telemetry.Trigger
	cleanup []func()
}

func (e *sessionEnv) destroy() {
	e.session.Destroy()
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// buildSession opens the transport and attaches the optional sinks. The
// pedal source reads the Redis override hash when telemetry is connected and
// holds the rest value otherwise.
func buildSession(ctx context.Context, opts *bench.Options, steps []bamocar.Step, torqueOf func(raw uint16) int16) (*sessionEnv, error) {
	logger := bench.NewLeveledLogger(opts.LogLevel, opts.Logger)
	env := &sessionEnv{logger: logger}

	transport, err := canbus.Open(opts.CANDevice)
	if err != nil {
		return nil, err
	}

	env.pedal = bench.AnalogFunc(func() uint16 { return opts.PedalRest })
	trigger := bench.MultiTrigger{bench.NewStdinTrigger()}

	pedal := env.pedal
	torque := func() int16 { return torqueOf(pedal.Read()) }
	env.session = bench.NewSession(logger, opts, transport, &trigger, torque, steps)

	if traffic, lerr := canlog.Open(opts.LogDir); lerr != nil {
		// A dead log never blocks a bench run.
		logger.Warn("CAN traffic log unavailable: %v", lerr)
	} else {
		logger.Info("logging CAN traffic to %s", traffic.Path())
		env.session.AttachTrafficLog(traffic)
	}

	if opts.RedisServerAddr != "" {
		rdb, rerr := connectRedis(logger, opts)
		if rerr != nil {
			env.session.Destroy()
			return nil, rerr
		}
		env.cleanup = append(env.cleanup, func() { rdb.Close() })
		if aerr := env.session.AttachRedis(rdb); aerr != nil {
			logger.Warn("seeding telemetry defaults: %v", aerr)
		}

		env.trigger = telemetry.NewTrigger(logger, rdb)
		trigger = append(trigger, env.trigger)
		env.cleanup = append(env.cleanup, env.trigger.Destroy)

		override := telemetry.NewPedalOverride(logger, rdb, opts.PedalRest)
		env.pedal = override
		pedal = override
	}

	if opts.DashboardAddr != "" {
		hub := dashboard.NewHub(logger)
		hub.Start(ctx, opts.DashboardAddr)
		env.session.AttachDashboard(hub)
	}

	return env, nil
}
