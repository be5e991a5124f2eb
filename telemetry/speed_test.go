package telemetry

import "testing"

func TestSpeedAverage_SingleValue(t *testing.T) {
	var s SpeedAverage
	if avg := s.Update(100); avg != 100.0 {
		t.Errorf("expected 100.0, got %f", avg)
	}
}

func TestSpeedAverage_WindowFill(t *testing.T) {
	var s SpeedAverage
	s.Update(100)
	s.Update(200)
	if avg := s.Update(300); avg != 200.0 {
		t.Errorf("expected 200.0, got %f", avg)
	}
}

func TestSpeedAverage_WindowSlide(t *testing.T) {
	var s SpeedAverage
	s.Update(100)
	s.Update(200)
	s.Update(300)
	// Replaces 100: (400+200+300)/3 = 300
	if avg := s.Update(400); avg != 300.0 {
		t.Errorf("expected 300.0, got %f", avg)
	}
}

func TestSpeedAverage_ZeroResets(t *testing.T) {
	var s SpeedAverage
	s.Update(100)
	s.Update(200)
	if avg := s.Update(0); avg != 0 {
		t.Errorf("zero rpm should reset, got %f", avg)
	}
	if avg := s.Update(50); avg != 50.0 {
		t.Errorf("expected 50.0 after reset, got %f", avg)
	}
}

func TestSpeedAverage_NegativeRPM(t *testing.T) {
	var s SpeedAverage
	s.Update(-100)
	if avg := s.Update(-200); avg != -150.0 {
		t.Errorf("expected -150.0, got %f", avg)
	}
}

func TestKmH(t *testing.T) {
	// 1000 rpm * 0.01777 = 17.77 km/h
	got := KmH(1000)
	if got < 17.769 || got > 17.771 {
		t.Errorf("expected ~17.77, got %f", got)
	}
}
