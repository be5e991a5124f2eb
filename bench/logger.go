package bench

import (
	"fmt"
	"log"
	"os"
	"strings"

	"bamocar-bench/bamocar"
)

// LeveledLogger filters log output by severity and formats CAN traffic for
// debug tracing. It satisfies bamocar.Logger.
type LeveledLogger struct {
	level  LogLevel
	logger *log.Logger
}

func NewLeveledLogger(level LogLevel, logger *log.Logger) *LeveledLogger {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)
	}
	return &LeveledLogger{level: level, logger: logger}
}

func (l *LeveledLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *LeveledLogger) Printf(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

func (l *LeveledLogger) Debug(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

func (l *LeveledLogger) Info(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

func (l *LeveledLogger) Warn(format string, v ...interface{}) {
	if l.level >= LogLevelWarn {
		l.logger.Printf("[WARN] "+format, v...)
	}
}

func (l *LeveledLogger) Error(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.logger.Printf("[ERROR] "+format, v...)
	}
}

func (l *LeveledLogger) DebugCAN(direction string, id uint32, data []byte, length uint8) {
	if l.level < LogLevelDebug {
		return
	}
	var sb strings.Builder
	for i := 0; i < int(length) && i < len(data); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", data[i])
	}
	l.logger.Printf("[DEBUG] CAN %s id=0x%03X len=%d [%s]", direction, id, length, sb.String())
}

var _ bamocar.Logger = (*LeveledLogger)(nil)
