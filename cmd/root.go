package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"bamocar-bench/bench"
)

var (
	logLevel        int
	canDevice       string
	redisServerAddr string
	redisServerPort uint16
	dashboardAddr   string
	logDir          string
	maxAccelPercent uint8
)

var rootCmd = &cobra.Command{
	Use:   "bamocar-bench",
	Short: "Bamocar motor drive bench controller",
	Long: `bamocar-bench drives a Bamocar motor controller over SocketCAN for
bench testing: register commands, the lock/enable interlock, cyclic
telemetry and a fixed-cadence torque loop.

Telemetry publishing (--redis-server) and the live WebSocket dashboard
(--dashboard) are optional; leave the flags empty to run CAN-only.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel < 0 || logLevel > 4 {
			return fmt.Errorf("invalid log level %d", logLevel)
		}
		if maxAccelPercent == 0 || maxAccelPercent > 100 {
			return fmt.Errorf("invalid max accel %d%%", maxAccelPercent)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVar(&logLevel, "log", 3, "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	pf.StringVar(&canDevice, "can-device", "can0", "CAN device name")
	pf.StringVar(&redisServerAddr, "redis-server", "", "Redis server address (empty disables telemetry)")
	pf.Uint16Var(&redisServerPort, "redis-port", 6379, "Redis server port")
	pf.StringVar(&dashboardAddr, "dashboard", "", "Dashboard listen address, e.g. :8080 (empty disables)")
	pf.StringVar(&logDir, "log-dir", ".", "Directory for CAN traffic logs")
	pf.Uint8Var(&maxAccelPercent, "max-accel", 50, "Torque ceiling as percent of full scale")
}

func Execute() error {
	return rootCmd.Execute()
}

func baseOptions() *bench.Options {
	return &bench.Options{
		LogLevel:        bench.LogLevel(logLevel),
		CANDevice:       canDevice,
		RedisServerAddr: redisServerAddr,
		RedisServerPort: redisServerPort,
		DashboardAddr:   dashboardAddr,
		LogDir:          logDir,
		MaxAccelPercent: maxAccelPercent,
	}
}

func connectRedis(logger *bench.LeveledLogger, opts *bench.Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.RedisServerAddr, opts.RedisServerPort),
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("connecting to Redis at %s:%d", opts.RedisServerAddr, opts.RedisServerPort)
	if err := rdb.Ping(connectCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}
