package bamocar

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/brutella/can"
)

var (
	// ErrMalformedFrame marks a frame whose payload is too short for the
	// register it names. The caller drops the frame.
	ErrMalformedFrame = errors.New("bamocar: malformed frame")

	// ErrUnrecognizedID marks a frame that is not part of this drive's
	// traffic. The caller ignores it silently.
	ErrUnrecognizedID = errors.New("bamocar: unrecognized CAN identifier")
)

// ReadingKind tags the semantic type of a decoded register reply.
type ReadingKind int

const (
	KindUnknown ReadingKind = iota
	KindStatus
	KindSpeed
	KindDCBusVoltage
	KindCurrent
	KindTorqueFeedback
	KindTorqueSetpoint
	KindTimeout
)

// Reading is the decoded form of one register command or reply. Only the
// fields matching Kind are meaningful.
type Reading struct {
	Register byte
	Kind     ReadingKind

	Status        uint16  // KindStatus: raw bitfield
	RPM           int16   // KindSpeed
	Volts         float64 // KindDCBusVoltage
	Amps          float64 // KindCurrent
	TorquePercent float64 // KindTorqueFeedback
	Torque        int16   // KindTorqueSetpoint: raw signed value
	TimeoutMs     uint16  // KindTimeout

	// Raw payload bytes after the register id, kept for KindUnknown.
	Raw []byte
}

// packFrame creates a CAN frame with the given ID and data.
func packFrame(id uint32, data []byte) can.Frame {
	var frameData [8]byte
	copy(frameData[:], data)
	return can.Frame{
		ID:     id,
		Length: uint8(len(data)),
		Flags:  0,
		Data:   frameData,
	}
}

// NewCommand encodes a 16-bit register write as a 3-byte little-endian
// command frame.
func NewCommand(reg byte, value int16) can.Frame {
	data := make([]byte, 3)
	data[0] = reg
	binary.LittleEndian.PutUint16(data[1:3], uint16(value))
	return packFrame(CommandID, data)
}

// NewByteCommand encodes a single-byte register write. The payload is still
// 3 bytes with the high value byte fixed at 0x00.
func NewByteCommand(reg, flag byte) can.Frame {
	return packFrame(CommandID, []byte{reg, flag, 0x00})
}

// NewRequest builds a 0x3D request for the target register. An interval of
// zero requests the reply once, any other value requests it cyclically every
// intervalMs milliseconds.
func NewRequest(target, intervalMs byte) can.Frame {
	return packFrame(CommandID, []byte{RegRequest, target, intervalMs})
}

// decodeFunc turns the raw little-endian 16-bit value of a register into a
// typed reading.
type decodeFunc func(raw uint16) Reading

var decodeTable = map[byte]decodeFunc{
	RegStatus: func(raw uint16) Reading {
		return Reading{Register: RegStatus, Kind: KindStatus, Status: raw}
	},
	RegSpeedActual: func(raw uint16) Reading {
		return Reading{Register: RegSpeedActual, Kind: KindSpeed, RPM: int16(raw)}
	},
	RegDCBusVoltage: func(raw uint16) Reading {
		return Reading{Register: RegDCBusVoltage, Kind: KindDCBusVoltage, Volts: float64(raw) * VoltsPerLSB}
	},
	RegCurrent: func(raw uint16) Reading {
		return Reading{Register: RegCurrent, Kind: KindCurrent, Amps: float64(int16(raw)) * AmpsPerLSB}
	},
	RegTorqueActual: func(raw uint16) Reading {
		return Reading{Register: RegTorqueActual, Kind: KindTorqueFeedback, TorquePercent: float64(int16(raw)) / TorquePercentDivisor}
	},
	RegTorqueCmd: func(raw uint16) Reading {
		return Reading{Register: RegTorqueCmd, Kind: KindTorqueSetpoint, Torque: int16(raw)}
	},
	RegCANTimeout: func(raw uint16) Reading {
		return Reading{Register: RegCANTimeout, Kind: KindTimeout, TimeoutMs: raw}
	},
}

// Decode interprets a register command or reply frame. Registers outside the
// known table decode to KindUnknown rather than failing, so unseen registers
// stay visible in logs.
func Decode(frame can.Frame) (Reading, error) {
	if frame.ID != CommandID && frame.ID != TelemetryID {
		return Reading{}, fmt.Errorf("%w: 0x%03X", ErrUnrecognizedID, frame.ID)
	}
	if frame.Length < 1 {
		return Reading{}, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}

	reg := frame.Data[0]
	decode, known := decodeTable[reg]
	if !known {
		raw := make([]byte, 0, 7)
		if frame.Length > 1 {
			raw = append(raw, frame.Data[1:frame.Length]...)
		}
		return Reading{Register: reg, Kind: KindUnknown, Raw: raw}, nil
	}

	if frame.Length < 3 {
		return Reading{}, fmt.Errorf("%w: register 0x%02X needs 3 bytes, got %d",
			ErrMalformedFrame, reg, frame.Length)
	}
	return decode(binary.LittleEndian.Uint16(frame.Data[1:3])), nil
}

// String renders a reading the way the traffic log records it.
func (r Reading) String() string {
	switch r.Kind {
	case KindStatus:
		return fmt.Sprintf("Status word = 0x%04X (%s)", r.Status, DescribeStatus(r.Status))
	case KindSpeed:
		return fmt.Sprintf("Speed feedback = %d rpm", r.RPM)
	case KindDCBusVoltage:
		return fmt.Sprintf("DC bus voltage = %.1f V", r.Volts)
	case KindCurrent:
		return fmt.Sprintf("Actual current = %.1f A", r.Amps)
	case KindTorqueFeedback:
		return fmt.Sprintf("Torque feedback = %.1f%%", r.TorquePercent)
	case KindTorqueSetpoint:
		return fmt.Sprintf("Torque setpoint = %d", r.Torque)
	case KindTimeout:
		return fmt.Sprintf("CAN timeout = %d ms", r.TimeoutMs)
	default:
		return fmt.Sprintf("Register 0x%02X raw % X", r.Register, r.Raw)
	}
}

// Describe returns log text for a frame in either direction, including the
// host-side command registers that Decode reports as setpoints or unknowns.
func Describe(frame can.Frame) string {
	if frame.Length < 1 {
		return ""
	}
	reg := frame.Data[0]

	if frame.ID == CommandID {
		switch reg {
		case RegRequest:
			if frame.Length >= 3 && frame.Data[2] != 0 {
				return fmt.Sprintf("Request register 0x%02X every %d ms", frame.Data[1], frame.Data[2])
			}
			if frame.Length >= 2 {
				return fmt.Sprintf("Request register 0x%02X once", frame.Data[1])
			}
			return "Request register (truncated)"
		case RegClearErrors:
			return "Clear all error flags"
		case RegDriveControl:
			if frame.Length < 2 {
				return "Drive control (truncated)"
			}
			switch frame.Data[1] {
			case DriveLock:
				return "Lock/Disable drive"
			case DriveEnable:
				return "Enable drive"
			default:
				return fmt.Sprintf("Drive control command 0x%02X", frame.Data[1])
			}
		}
	}

	if reading, err := Decode(frame); err == nil {
		return reading.String()
	}
	return fmt.Sprintf("Register 0x%02X (undecodable)", reg)
}
