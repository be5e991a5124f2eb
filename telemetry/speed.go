package telemetry

// RPMToKmH converts motor rpm to road speed for the dashboard. The factor
// is calibrated for the bench vehicle's gearing and wheel size.
const RPMToKmH = 0.01777

// Window size for rpm averaging.
const speedWindow = 3

// SpeedAverage smooths decoded rpm readings with a small moving average so
// the dashboard speed display does not flicker.
type SpeedAverage struct {
	data  [speedWindow]int32
	head  uint8
	count uint8
	sum   int32
}

func (s *SpeedAverage) Reset() {
	s.count = 0
	s.head = 0
	s.sum = 0
	for i := range s.data {
		s.data[i] = 0
	}
}

// Update folds one rpm reading into the window and returns the new average.
// A zero reading resets the window so the display drops to zero immediately
// when the motor stops.
func (s *SpeedAverage) Update(rpm int16) float64 {
	if rpm == 0 {
		s.Reset()
		return 0
	}

	var last int32
	if s.count >= speedWindow {
		s.count = speedWindow
		last = s.data[s.head]
	} else {
		s.count++
	}

	s.data[s.head] = int32(rpm)
	s.sum = (s.sum - last) + int32(rpm)
	average := float64(s.sum) / float64(s.count)
	s.head = (s.head + 1) % speedWindow

	return average
}

// KmH returns the road speed for an averaged rpm value.
func KmH(rpm float64) float64 {
	return rpm * RPMToKmH
}
