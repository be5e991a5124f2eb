package cmd

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"bamocar-bench/bamocar"
	"bamocar-bench/bench"
	"bamocar-bench/dashboard"
	"bamocar-bench/telemetry"
)

var (
	bridgePort string
	bridgeBaud int
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay serial telemetry lines to the dashboard feed",
	Long: `Read telemetry lines from a microcontroller on a serial port and relay
them to the WebSocket dashboard. Line format, one value per line:

  RPM:<int>      motor speed
  TORQUE:<int>   raw torque setpoint
  STATUS:<word>  status register value, decimal or 0x-hex
  CAN:<text>     raw frame trace, forwarded verbatim`,
	RunE: runBridge,
}

func init() {
	f := bridgeCmd.Flags()
	f.StringVar(&bridgePort, "port", "", "Serial port device")
	f.IntVar(&bridgeBaud, "baud", 115200, "Baud rate")
	bridgeCmd.MarkFlagRequired("port")
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	opts := baseOptions()
	logger := bench.NewLeveledLogger(opts.LogLevel, opts.Logger)

	if opts.DashboardAddr == "" {
		opts.DashboardAddr = ":8080"
	}

	mode := &serial.Mode{BaudRate: bridgeBaud}
	port, err := serial.Open(bridgePort, mode)
	if err != nil {
		return fmt.Errorf("opening %s: %w", bridgePort, err)
	}
	defer port.Close()

	ctx, stop := signalContext()
	defer stop()

	hub := dashboard.NewHub(logger)
	hub.Start(ctx, opts.DashboardAddr)

	go func() {
		<-ctx.Done()
		port.Close() // unblocks the scanner
	}()

	logger.Info("bridging %s at %d baud", bridgePort, bridgeBaud)

	var (
		status   = "Unknown"
		rpm      int
		torque   int
		speedAvg telemetry.SpeedAverage
		kmh      float64
	)
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "RPM":
			n, perr := strconv.Atoi(value)
			if perr != nil {
				logger.Warn("bad RPM line %q", line)
				continue
			}
			rpm = n
			kmh = telemetry.KmH(speedAvg.Update(int16(n)))
		case "TORQUE":
			n, perr := strconv.Atoi(value)
			if perr != nil {
				logger.Warn("bad TORQUE line %q", line)
				continue
			}
			torque = n
		case "STATUS":
			word, perr := strconv.ParseUint(value, 0, 16)
			if perr != nil {
				logger.Warn("bad STATUS line %q", line)
				continue
			}
			status = bamocar.DescribeStatus(uint16(word))
		case "CAN":
			hub.BroadcastFrame(value)
			continue
		default:
			logger.Debug("ignoring line %q", line)
			continue
		}
		hub.BroadcastValues(status, rpm, torque, kmh)
	}

	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
