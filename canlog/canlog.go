// Package canlog appends CAN traffic to a CSV file, one row per frame in
// either direction, with the decoded meaning in the last column.
package canlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/brutella/can"
)

var header = []string{
	"Time(ms)", "Dir", "ID", "Len",
	"B0", "B1", "B2", "B3", "B4", "B5", "B6", "B7",
	"Decoded",
}

// Log is an append-only CSV traffic log. It is written from the single
// control loop; no locking.
type Log struct {
	path    string
	file    *os.File
	w       *csv.Writer
	started time.Time
}

// NextLogName returns the first unused CAN_traffic_logs_NNNN.csv name in dir.
func NextLogName(dir string) string {
	for index := 1; ; index++ {
		name := filepath.Join(dir, fmt.Sprintf("CAN_traffic_logs_%04d.csv", index))
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
	}
}

// Open creates a fresh traffic log in dir and writes the header row.
func Open(dir string) (*Log, error) {
	path := NextLogName(dir)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create traffic log: %v", err)
	}

	l := &Log{
		path:    path,
		file:    file,
		w:       csv.NewWriter(file),
		started: time.Now(),
	}
	if err := l.w.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write traffic log header: %v", err)
	}
	l.w.Flush()
	return l, nil
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Record appends one frame. dir is "TX" or "RX"; decoded is the human
// interpretation of the frame.
func (l *Log) Record(frame can.Frame, dir string, decoded string) error {
	row := make([]string, 0, len(header))
	row = append(row,
		fmt.Sprintf("%d", time.Since(l.started).Milliseconds()),
		dir,
		fmt.Sprintf("0x%03X", frame.ID),
		fmt.Sprintf("%d", frame.Length),
	)
	for i := 0; i < 8; i++ {
		if i < int(frame.Length) {
			row = append(row, fmt.Sprintf("0x%02X", frame.Data[i]))
		} else {
			row = append(row, "")
		}
	}
	row = append(row, decoded)

	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("failed to record frame: %v", err)
	}
	return nil
}

// Flush pushes buffered rows to disk. The session calls this periodically
// rather than per frame.
func (l *Log) Flush() error {
	l.w.Flush()
	return l.w.Error()
}

// Dump flushes and replays the whole log to w.
func (l *Log) Dump(out io.Writer) error {
	if err := l.Flush(); err != nil {
		return err
	}
	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to reopen traffic log: %v", err)
	}
	defer file.Close()

	_, err = io.Copy(out, file)
	return err
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	l.w.Flush()
	return l.file.Close()
}
