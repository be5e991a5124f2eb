package bamocar

// CAN identifiers used by the drive. Both are standard 11-bit IDs.
const (
	// CommandID carries host -> drive register commands.
	CommandID uint32 = 0x201
	// TelemetryID carries drive -> host register replies.
	TelemetryID uint32 = 0x181
)

// Register ids in the drive's command/telemetry space.
const (
	RegRequest      byte = 0x3D // request a register once or cyclically
	RegSpeedActual  byte = 0x30 // signed int16 rpm
	RegStatus       byte = 0x40 // unsigned status bitfield
	RegDriveControl byte = 0x51 // lock/enable interlock
	RegCurrent      byte = 0x5F // signed int16, 0.1 A/LSB
	RegClearErrors  byte = 0x8E // clear all error flags
	RegTorqueCmd    byte = 0x90 // signed int16 torque setpoint
	RegTorqueActual byte = 0xA0 // signed int16, /327.67 = percent
	RegCANTimeout   byte = 0xD0 // unsigned int16 reply timeout, ms
	RegDCBusVoltage byte = 0xEB // unsigned int16, 0.1 V/LSB
)

// Flag bytes for RegDriveControl.
const (
	DriveLock   byte = 0x04 // lock (disable) the drive
	DriveEnable byte = 0x00 // enable the drive
)

const (
	// TorqueFullScale is the raw int16 magnitude representing the drive's
	// calibrated full-scale torque reference (about 150% per the manual).
	TorqueFullScale = 32767

	// TorquePercentDivisor converts a raw torque feedback value to percent.
	// The drive calibrates 32767 to 100%, so percent = raw / 327.67.
	TorquePercentDivisor = 327.67

	// VoltsPerLSB and AmpsPerLSB scale raw bus voltage and current readings.
	VoltsPerLSB = 0.1
	AmpsPerLSB  = 0.1
)

// Status word bits (register 0x40). Remaining bits are drive specific,
// see the drive datasheet.
const (
	StatusEnabled uint16 = 1 << 0
	StatusReady   uint16 = 1 << 2
	StatusFault   uint16 = 1 << 6
)

var statusBitDescriptions = []struct {
	bit  uint16
	desc string
}{
	{StatusEnabled, "enabled"},
	{StatusReady, "ready"},
	{StatusFault, "fault"},
}

// DescribeStatus returns a human-readable summary of the known bits of a
// status word. Unknown bits are left to the hex rendering of the word itself.
func DescribeStatus(word uint16) string {
	desc := ""
	for _, s := range statusBitDescriptions {
		if word&s.bit == 0 {
			continue
		}
		if desc != "" {
			desc += ","
		}
		desc += s.desc
	}
	if desc == "" {
		return "none"
	}
	return desc
}
