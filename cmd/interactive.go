package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bamocar-bench/bamocar"
)

var (
	bipolar     bool
	potCenter   uint16
	potDeadzone uint16
	potRest     uint16
	potPressed  uint16
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Step through the bench sequence on keypresses",
	Long: `Walk the bench sequence one step per keypress (or per message on the
Redis trigger channel): status request, cyclic speed, enable, torque
control, zero torque, disable, traffic log dump.

The torque setpoint follows the pedal value in the Redis hash. With
--bipolar the pedal maps symmetrically around --center so the drive can
be commanded in both directions.`,
	RunE: runInteractive,
}

func init() {
	f := interactiveCmd.Flags()
	f.BoolVar(&bipolar, "bipolar", false, "Scale the pedal around a center point for reverse torque")
	f.Uint16Var(&potCenter, "center", 2048, "Pedal center raw value (bipolar only)")
	f.Uint16Var(&potDeadzone, "deadzone", 100, "Raw counts around center treated as zero (bipolar only)")
	f.Uint16Var(&potRest, "pot-rest", 0, "Pedal raw value at rest")
	f.Uint16Var(&potPressed, "pot-pressed", 4095, "Pedal raw value fully pressed")
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	opts := baseOptions()
	opts.PedalRest = potRest
	opts.PedalPressed = potPressed

	var torqueOf func(raw uint16) int16
	if bipolar {
		scaler := bamocar.BipolarScaler{
			Center:          potCenter,
			Deadzone:        potDeadzone,
			MaxAccelPercent: opts.MaxAccelPercent,
		}
		torqueOf = scaler.Scale
	} else {
		scaler := bamocar.PedalScaler{
			RestValue:       potRest,
			PressedValue:    potPressed,
			MaxAccelPercent: opts.MaxAccelPercent,
		}
		torqueOf = scaler.Scale
	}

	ctx, stop := signalContext()
	defer stop()

	env, err := buildSession(ctx, opts, bamocar.InteractiveSteps(), torqueOf)
	if err != nil {
		return err
	}
	defer env.destroy()

	fmt.Println("Press any key to advance to the next step, Ctrl+C to abort.")
	return env.session.Run(ctx)
}
