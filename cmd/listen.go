package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bamocar-bench/bamocar"
	"bamocar-bench/bench"
	"bamocar-bench/canbus"
	"bamocar-bench/canlog"
)

var listenRecord bool

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Passively monitor and decode bus traffic",
	Long: `Print every frame on the bus with its decoded meaning, plus per-identifier
traffic statistics on a fixed interval. Useful for verifying wiring and
termination before a bench run, and for watching another controller talk
to the drive. Sends nothing.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().BoolVar(&listenRecord, "record", false, "Also record traffic to a CSV log")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	opts := baseOptions()
	logger := bench.NewLeveledLogger(opts.LogLevel, opts.Logger)

	transport, err := canbus.Open(opts.CANDevice)
	if err != nil {
		return err
	}
	defer transport.Close()

	var traffic *canlog.Log
	if listenRecord {
		traffic, err = canlog.Open(opts.LogDir)
		if err != nil {
			return err
		}
		defer traffic.Close()
		logger.Info("recording traffic to %s", traffic.Path())
	}

	ctx, stop := signalContext()
	defer stop()

	logger.Info("listening on %s", opts.CANDevice)

	stats := canbus.NewStats()
	statsTicker := time.NewTicker(canbus.StatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			stats.Print(os.Stdout, time.Now())
			return nil
		case <-statsTicker.C:
			now := time.Now()
			stats.Print(os.Stdout, now)
			if stats.Silent(now) {
				logger.Warn("no traffic for %v, check wiring and termination", canbus.SilenceTimeout)
			}
		default:
		}

		frame, ok := transport.TryReceive()
		if !ok {
			if stats.Silent(time.Now()) {
				logger.Warn("no traffic for %v, check wiring and termination", canbus.SilenceTimeout)
			}
			time.Sleep(time.Millisecond)
			continue
		}

		now := time.Now()
		stats.Observe(frame.ID, now)
		decoded := bamocar.Describe(frame)
		fmt.Printf("%s  0x%03X [%d] % X  %s\n",
			now.Format("15:04:05.000"), frame.ID, frame.Length, frame.Data[:frame.Length], decoded)

		if traffic != nil {
			if rerr := traffic.Record(frame, "RX", decoded); rerr != nil {
				logger.Warn("traffic log write failed: %v", rerr)
			}
			traffic.Flush()
		}
	}
}
