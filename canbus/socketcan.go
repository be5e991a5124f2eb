// Package canbus adapts a SocketCAN interface to the poll-style transport
// the bench control loop expects.
package canbus

import (
	"fmt"

	"github.com/brutella/can"
)

// Transport is the CAN send/receive primitive consumed by the bench.
// TryReceive never blocks: it returns false when no frame is pending.
type Transport interface {
	Send(frame can.Frame) error
	TryReceive() (can.Frame, bool)
	Close() error
}

const inboundQueueSize = 256

// SocketCAN bridges the subscription-driven brutella/can bus to a polled
// inbound queue. Frames arriving while the queue is full are dropped; the
// drive retransmits cyclic telemetry anyway.
type SocketCAN struct {
	bus     *can.Bus
	inbound chan can.Frame
}

// Open connects to a SocketCAN device (e.g. "can0") and starts delivering
// inbound frames to the queue.
func Open(device string) (*SocketCAN, error) {
	bus, err := can.NewBusForInterfaceWithName(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open CAN device %s: %v", device, err)
	}

	t := &SocketCAN{
		bus:     bus,
		inbound: make(chan can.Frame, inboundQueueSize),
	}
	bus.Subscribe(t)

	go func() {
		// ConnectAndPublish blocks for the lifetime of the bus.
		_ = bus.ConnectAndPublish()
	}()

	return t, nil
}

// Handle implements the bus subscriber; it queues inbound frames for the
// control loop.
func (t *SocketCAN) Handle(frame can.Frame) {
	select {
	case t.inbound <- frame:
	default:
		// Queue full; drop. Telemetry is cyclic, the next frame follows.
	}
}

func (t *SocketCAN) Send(frame can.Frame) error {
	return t.bus.Publish(frame)
}

func (t *SocketCAN) TryReceive() (can.Frame, bool) {
	select {
	case frame := <-t.inbound:
		return frame, true
	default:
		return can.Frame{}, false
	}
}

func (t *SocketCAN) Close() error {
	return t.bus.Disconnect()
}
