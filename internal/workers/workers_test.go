package workers

import (
	"runtime"
	"testing"
)

func TestCountRespectsLimit(t *testing.T) {
	t.Setenv("ARTIFACT_WORKERS", "")

	if got := Count(100.0, 4); got != 4 {
		t.Errorf("Count(100.0, 4) = %d, want 4", got)
	}
}

func TestCountMinimumOne(t *testing.T) {
	t.Setenv("ARTIFACT_WORKERS", "")

	if got := Count(0.0001, 0); got != 1 {
		t.Errorf("Count(0.0001, 0) = %d, want 1", got)
	}
}

func TestCountOverride(t *testing.T) {
	t.Setenv("ARTIFACT_WORKERS", "7")

	if got := Count(1.0, 0); got != 7 {
		t.Errorf("Count with override = %d, want 7", got)
	}
	if got := Count(1.0, 3); got != 3 {
		t.Errorf("Count with override and limit = %d, want 3", got)
	}
}

func TestCountInvalidOverrideIgnored(t *testing.T) {
	t.Setenv("ARTIFACT_WORKERS", "not-a-number")

	want := runtime.GOMAXPROCS(0)
	if got := Count(1.0, 0); got != want {
		t.Errorf("Count with bad override = %d, want %d", got, want)
	}
}

func TestHelpers(t *testing.T) {
	t.Setenv("ARTIFACT_WORKERS", "")

	cpus := runtime.GOMAXPROCS(0)
	if got := ForCPU(0); got != cpus {
		t.Errorf("ForCPU(0) = %d, want %d", got, cpus)
	}
	if got := ForIO(0); got != cpus*2 {
		t.Errorf("ForIO(0) = %d, want %d", got, cpus*2)
	}
}
