package miner

import "testing"

func TestThermalControllerIntensityRampsDownToThreshold(t *testing.T) {
	tc := NewThermalController(80)

	tc.ReportTemperature(60)
	if got := tc.Intensity(); got != 100 {
		t.Fatalf("intensity at 20deg below threshold = %d, want 100", got)
	}

	tc.ReportTemperature(80)
	if got := tc.Intensity(); got != 1 {
		t.Fatalf("intensity at threshold = %d, want floor of 1", got)
	}

	tc.ReportTemperature(90)
	if got := tc.Intensity(); got != 1 {
		t.Fatalf("intensity above threshold = %d, want floor of 1", got)
	}

	tc.ReportTemperature(75)
	mid := tc.Intensity()
	if mid <= 1 || mid >= 100 {
		t.Fatalf("intensity midway through the ramp = %d, want strictly between 1 and 100", mid)
	}
}

func TestThermalControllerSetThresholdBoundsChecks(t *testing.T) {
	tc := NewThermalController(80)
	if err := tc.SetThreshold(59); err == nil {
		t.Fatal("expected an error below the minimum threshold")
	}
	if err := tc.SetThreshold(96); err == nil {
		t.Fatal("expected an error above the maximum threshold")
	}
	if err := tc.SetThreshold(70); err != nil {
		t.Fatalf("SetThreshold(70): %v", err)
	}
	if got := tc.Snapshot().ThresholdCelsius; got != 70 {
		t.Fatalf("threshold = %v, want 70", got)
	}
}

func TestThermalControllerSnapshotMatchesIntensity(t *testing.T) {
	tc := NewThermalController(85)
	tc.ReportTemperature(82)
	snap := tc.Snapshot()
	if snap.IntensityPercent != tc.Intensity() {
		t.Fatalf("Snapshot().IntensityPercent = %d, want %d (Intensity())", snap.IntensityPercent, tc.Intensity())
	}
	if snap.CurrentCelsius != 82 {
		t.Fatalf("CurrentCelsius = %v, want 82", snap.CurrentCelsius)
	}
}

func TestScaleWorkGroupsClampsAndNeverFloorsToZero(t *testing.T) {
	if got := ScaleWorkGroups(64, 100); got != 64 {
		t.Fatalf("ScaleWorkGroups(64,100) = %d, want 64", got)
	}
	if got := ScaleWorkGroups(64, 50); got != 32 {
		t.Fatalf("ScaleWorkGroups(64,50) = %d, want 32", got)
	}
	if got := ScaleWorkGroups(64, 0); got != 1 {
		t.Fatalf("ScaleWorkGroups(64,0) = %d, want floor of 1", got)
	}
	if got := ScaleWorkGroups(1, 1); got != 1 {
		t.Fatalf("ScaleWorkGroups(1,1) = %d, want 1", got)
	}
	if got := ScaleWorkGroups(64, 500); got != 64 {
		t.Fatalf("ScaleWorkGroups(64,500) = %d, want clamped to 64 (100%%)", got)
	}
}

func TestFixedIntensityIsAlwaysFull(t *testing.T) {
	if got := (FixedIntensity{}).Intensity(); got != 100 {
		t.Fatalf("FixedIntensity.Intensity() = %d, want 100", got)
	}
}
