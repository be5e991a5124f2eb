package canlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brutella/can"

	"bamocar-bench/bamocar"
)

func TestNextLogName_SkipsExisting(t *testing.T) {
	dir := t.TempDir()

	first := NextLogName(dir)
	if filepath.Base(first) != "CAN_traffic_logs_0001.csv" {
		t.Fatalf("first name: got %s", filepath.Base(first))
	}

	if err := os.WriteFile(first, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	second := NextLogName(dir)
	if filepath.Base(second) != "CAN_traffic_logs_0002.csv" {
		t.Errorf("second name: got %s", filepath.Base(second))
	}
}

func TestLog_RecordAndDump(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	frame := bamocar.NewCommand(bamocar.RegTorqueCmd, -16384)
	if err := l.Record(frame, "TX", bamocar.Describe(frame)); err != nil {
		t.Fatal(err)
	}
	short := can.Frame{ID: bamocar.TelemetryID, Length: 1, Data: [8]byte{0x40}}
	if err := l.Record(short, "RX", "truncated status"); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	if err := l.Dump(&b); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
	if err != nil {
		t.Fatalf("dump is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Time(ms)" || rows[0][12] != "Decoded" {
		t.Errorf("header wrong: %v", rows[0])
	}

	tx := rows[1]
	if tx[1] != "TX" || tx[2] != "0x201" || tx[3] != "3" {
		t.Errorf("tx row wrong: %v", tx)
	}
	if tx[4] != "0x90" || tx[5] != "0x00" || tx[6] != "0xC0" {
		t.Errorf("tx payload wrong: %v", tx[4:7])
	}
	if tx[7] != "" {
		t.Errorf("bytes past the payload length should be blank, got %q", tx[7])
	}
	if tx[12] != "Torque setpoint = -16384" {
		t.Errorf("decoded text wrong: %q", tx[12])
	}

	rx := rows[2]
	if rx[1] != "RX" || rx[2] != "0x181" || rx[3] != "1" || rx[12] != "truncated status" {
		t.Errorf("rx row wrong: %v", rx)
	}
}
