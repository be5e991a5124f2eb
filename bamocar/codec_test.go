package bamocar

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/brutella/can"
)

func makeCANFrame(id uint32, data []byte) can.Frame {
	f := can.Frame{
		ID:     id,
		Length: uint8(len(data)),
	}
	copy(f.Data[:], data)
	return f
}

// --- Encoding tests ---

func TestNewCommand_ByteLayout(t *testing.T) {
	frame := NewCommand(RegTorqueCmd, -16384)

	if frame.ID != CommandID {
		t.Errorf("ID: expected 0x%03X, got 0x%03X", CommandID, frame.ID)
	}
	if frame.Length != 3 {
		t.Errorf("length: expected 3, got %d", frame.Length)
	}
	// -16384 = 0xC000: low byte first
	if frame.Data[0] != 0x90 || frame.Data[1] != 0x00 || frame.Data[2] != 0xC0 {
		t.Errorf("payload: expected [90 00 C0], got [%02X %02X %02X]",
			frame.Data[0], frame.Data[1], frame.Data[2])
	}
}

func TestNewByteCommand_HighByteZero(t *testing.T) {
	frame := NewByteCommand(RegDriveControl, DriveLock)

	if frame.Length != 3 {
		t.Errorf("length: expected 3, got %d", frame.Length)
	}
	if frame.Data[0] != 0x51 || frame.Data[1] != 0x04 || frame.Data[2] != 0x00 {
		t.Errorf("payload: expected [51 04 00], got [%02X %02X %02X]",
			frame.Data[0], frame.Data[1], frame.Data[2])
	}
}

func TestNewRequest(t *testing.T) {
	once := NewRequest(RegStatus, 0)
	if once.Data[0] != 0x3D || once.Data[1] != 0x40 || once.Data[2] != 0x00 {
		t.Errorf("status once: got [%02X %02X %02X]", once.Data[0], once.Data[1], once.Data[2])
	}

	cyclic := NewRequest(RegSpeedActual, 100)
	if cyclic.Data[0] != 0x3D || cyclic.Data[1] != 0x30 || cyclic.Data[2] != 100 {
		t.Errorf("speed cyclic: got [%02X %02X %d]", cyclic.Data[0], cyclic.Data[1], cyclic.Data[2])
	}
}

// --- Round-trip tests ---

func TestRoundTrip_TorqueSetpoint(t *testing.T) {
	values := []int16{-32768, -16384, -1, 0, 1, 12345, 32767}
	for _, v := range values {
		frame := NewCommand(RegTorqueCmd, v)
		reading, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode(%d): %v", v, err)
		}
		if reading.Kind != KindTorqueSetpoint {
			t.Fatalf("Decode(%d): kind %v, want torque setpoint", v, reading.Kind)
		}
		if reading.Torque != v {
			t.Errorf("round trip: sent %d, decoded %d", v, reading.Torque)
		}
		// Byte layout must stay little-endian.
		if got := binary.LittleEndian.Uint16(frame.Data[1:3]); got != uint16(v) {
			t.Errorf("layout: value %d encoded as 0x%04X", v, got)
		}
	}
}

func TestRoundTrip_CANTimeout(t *testing.T) {
	frame := NewCommand(RegCANTimeout, int16(2000))
	reading, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reading.Kind != KindTimeout || reading.TimeoutMs != 2000 {
		t.Errorf("expected timeout 2000 ms, got %+v", reading)
	}
}

// --- Decoding tests ---

func TestDecode_DCBusVoltage(t *testing.T) {
	// 0x0064 = 100 raw, x0.1 = 10.0 V
	reading, err := Decode(makeCANFrame(TelemetryID, []byte{0xEB, 0x64, 0x00}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reading.Kind != KindDCBusVoltage {
		t.Fatalf("kind: got %v, want DC bus voltage", reading.Kind)
	}
	if reading.Volts != 10.0 {
		t.Errorf("voltage: expected 10.0, got %f", reading.Volts)
	}
}

func TestDecode_SpeedNegative(t *testing.T) {
	data := make([]byte, 3)
	data[0] = RegSpeedActual
	speed := int16(-1500)
	binary.LittleEndian.PutUint16(data[1:3], uint16(speed))

	reading, err := Decode(makeCANFrame(TelemetryID, data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reading.RPM != -1500 {
		t.Errorf("rpm: expected -1500, got %d", reading.RPM)
	}
}

func TestDecode_CurrentNegative(t *testing.T) {
	data := make([]byte, 3)
	data[0] = RegCurrent
	current := int16(-200)
	binary.LittleEndian.PutUint16(data[1:3], uint16(current))

	reading, err := Decode(makeCANFrame(TelemetryID, data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reading.Amps != -20.0 {
		t.Errorf("current: expected -20.0 A, got %f", reading.Amps)
	}
}

func TestDecode_TorqueFeedbackScaling(t *testing.T) {
	tests := []struct {
		raw  int16
		want float64
	}{
		{32767, 32767 / 327.67},
		{-32767, -32767 / 327.67},
		{3277, 3277 / 327.67}, // ~10%
		{0, 0},
	}

	for _, tt := range tests {
		data := make([]byte, 3)
		data[0] = RegTorqueActual
		binary.LittleEndian.PutUint16(data[1:3], uint16(tt.raw))

		reading, err := Decode(makeCANFrame(TelemetryID, data))
		if err != nil {
			t.Fatalf("Decode(%d): %v", tt.raw, err)
		}
		if reading.TorquePercent != tt.want {
			t.Errorf("torque feedback for raw %d: expected %f, got %f",
				tt.raw, tt.want, reading.TorquePercent)
		}
	}
}

func TestDecode_StatusWord(t *testing.T) {
	reading, err := Decode(makeCANFrame(TelemetryID, []byte{0x40, 0x45, 0x00}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reading.Kind != KindStatus {
		t.Fatalf("kind: got %v, want status", reading.Kind)
	}
	if reading.Status != 0x0045 {
		t.Errorf("status: expected 0x0045, got 0x%04X", reading.Status)
	}
	if reading.Status&StatusEnabled == 0 || reading.Status&StatusReady == 0 || reading.Status&StatusFault == 0 {
		t.Error("expected enabled, ready and fault bits set")
	}
}

func TestDecode_MalformedTorqueFrame(t *testing.T) {
	_, err := Decode(makeCANFrame(TelemetryID, []byte{0x90}))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	_, err := Decode(makeCANFrame(TelemetryID, nil))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecode_UnrecognizedIdentifier(t *testing.T) {
	_, err := Decode(makeCANFrame(0x7E0, []byte{0x40, 0x01, 0x00}))
	if !errors.Is(err, ErrUnrecognizedID) {
		t.Errorf("expected ErrUnrecognizedID, got %v", err)
	}
}

func TestDecode_UnknownRegister(t *testing.T) {
	reading, err := Decode(makeCANFrame(TelemetryID, []byte{0xC6, 0xAB, 0xCD}))
	if err != nil {
		t.Fatalf("unknown register should not error, got %v", err)
	}
	if reading.Kind != KindUnknown {
		t.Fatalf("kind: got %v, want unknown", reading.Kind)
	}
	if reading.Register != 0xC6 {
		t.Errorf("register: expected 0xC6, got 0x%02X", reading.Register)
	}
	if len(reading.Raw) != 2 || reading.Raw[0] != 0xAB || reading.Raw[1] != 0xCD {
		t.Errorf("raw bytes: expected [AB CD], got % X", reading.Raw)
	}
}

func TestDecode_UnknownRegisterShortPayload(t *testing.T) {
	// Unknown registers carry whatever bytes arrived, even fewer than 3.
	reading, err := Decode(makeCANFrame(TelemetryID, []byte{0xC6}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if reading.Kind != KindUnknown || len(reading.Raw) != 0 {
		t.Errorf("expected empty unknown reading, got %+v", reading)
	}
}

// --- Description tests ---

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		frame can.Frame
		want  string
	}{
		{"request once", NewRequest(RegStatus, 0), "Request register 0x40 once"},
		{"request cyclic", NewRequest(RegSpeedActual, 100), "Request register 0x30 every 100 ms"},
		{"lock", NewByteCommand(RegDriveControl, DriveLock), "Lock/Disable drive"},
		{"enable", NewByteCommand(RegDriveControl, DriveEnable), "Enable drive"},
		{"clear errors", NewByteCommand(RegClearErrors, 0x00), "Clear all error flags"},
		{"torque", NewCommand(RegTorqueCmd, 1000), "Torque setpoint = 1000"},
		{"speed reply", makeCANFrame(TelemetryID, []byte{0x30, 0xE8, 0x03}), "Speed feedback = 1000 rpm"},
		{"voltage reply", makeCANFrame(TelemetryID, []byte{0xEB, 0x64, 0x00}), "DC bus voltage = 10.0 V"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.frame); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribeStatus(t *testing.T) {
	if got := DescribeStatus(0); got != "none" {
		t.Errorf("empty word: got %q", got)
	}
	got := DescribeStatus(StatusEnabled | StatusFault)
	if !strings.Contains(got, "enabled") || !strings.Contains(got, "fault") {
		t.Errorf("expected enabled and fault, got %q", got)
	}
	if strings.Contains(got, "ready") {
		t.Errorf("ready bit not set but described: %q", got)
	}
}
