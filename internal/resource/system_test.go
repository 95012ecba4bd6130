package resource

import "testing"

func TestEstimateModelMemory(t *testing.T) {
	tests := []struct {
		size int64
		want uint64
	}{
		{0, 0},
		{-1, 0},
		{1000 * 1024 * 1024, 1300},
	}
	for _, tt := range tests {
		if got := EstimateModelMemory(tt.size); got != tt.want {
			t.Errorf("EstimateModelMemory(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestSnapshot(t *testing.T) {
	stats := Snapshot(t.TempDir())
	if stats.CPUCount < 1 {
		t.Errorf("CPUCount = %d", stats.CPUCount)
	}
	if stats.MemoryTotalMB == 0 {
		t.Error("expected total memory to be reported")
	}
}

func TestCheckAvailableMemory(t *testing.T) {
	if err := CheckAvailableMemory(0); err != nil {
		t.Errorf("zero requirement should always fit: %v", err)
	}
	if err := CheckAvailableMemory(1 << 40); err == nil {
		t.Error("expected an error for an impossible requirement")
	}
}
