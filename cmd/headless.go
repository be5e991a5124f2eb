package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"bamocar-bench/bamocar"
	"bamocar-bench/bench"
)

var (
	pedalRest           uint16
	pedalPressed        uint16
	onlineWait          time.Duration
	pedalReleaseTimeout time.Duration
)

var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Run the full bring-up sequence unattended",
	Long: `Bring the drive up without operator input: start cyclic telemetry,
wait for the drive to answer a status probe, clear errors, configure the
reply timeout, enable, and enter torque control once the pedal is at
rest. A trigger event (keypress or Redis message) then steps through
disable and the traffic log dump.`,
	RunE: runHeadless,
}

func init() {
	f := headlessCmd.Flags()
	f.Uint16Var(&pedalRest, "pedal-rest", 2930, "Pedal raw value at rest")
	f.Uint16Var(&pedalPressed, "pedal-pressed", 1860, "Pedal raw value fully pressed")
	f.DurationVar(&onlineWait, "online-wait", bamocar.DefaultOnlineMaxWait, "How long to wait for the drive to come online")
	f.DurationVar(&pedalReleaseTimeout, "release-timeout", 30*time.Second, "How long to wait for the pedal to be released (0 = forever)")
	rootCmd.AddCommand(headlessCmd)
}

func runHeadless(cmd *cobra.Command, args []string) error {
	opts := baseOptions()
	opts.PedalRest = pedalRest
	opts.PedalPressed = pedalPressed
	opts.OnlineMaxWait = onlineWait
	opts.PedalReleaseTimeout = pedalReleaseTimeout

	scaler := bamocar.PedalScaler{
		RestValue:       pedalRest,
		PressedValue:    pedalPressed,
		MaxAccelPercent: opts.MaxAccelPercent,
	}

	ctx, stop := signalContext()
	defer stop()

	env, err := buildSession(ctx, opts, bamocar.HeadlessSteps(), scaler.Scale)
	if err != nil {
		return err
	}
	defer env.destroy()

	err = env.session.AutoRun(ctx, env.pedal)
	switch {
	case errors.Is(err, bench.ErrOnlineTimeout):
		env.logger.Error("drive did not come online within %v", opts.OnlineMaxWait)
		return err
	case errors.Is(err, bench.ErrPedalTimeout):
		env.logger.Error("pedal still pressed after %v, refusing to enter torque control", opts.PedalReleaseTimeout)
		return err
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
