package startup

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("MOSAIC_FORMAT", "webp")
	if got := getEnv("MOSAIC_FORMAT", "jpg"); got != "webp" {
		t.Errorf("getEnv() = %q, want webp", got)
	}

	t.Setenv("MOSAIC_FORMAT", "")
	if got := getEnv("MOSAIC_FORMAT", "jpg"); got != "jpg" {
		t.Errorf("getEnv() with empty value = %q, want default", got)
	}

	if got := getEnv("MOSAIC_TEST_NEVER_SET", "jpg"); got != "jpg" {
		t.Errorf("getEnv() unset = %q, want default", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"T", false, true},
		{"FALSE", true, false},
		{"0", true, false},
		{"yes", false, false}, // not a strconv bool
		{"no", true, true},
		{"   ", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MOSAIC_FOOTER", tt.value)
			if got := getEnvBool("MOSAIC_FOOTER", tt.def); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 1920},
		{"3840", 3840},
		{"-1", -1},
		{"4k", 1920},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MOSAIC_WIDTH", tt.value)
			if got := getEnvInt("MOSAIC_WIDTH", 1920); got != tt.want {
				t.Errorf("getEnvInt(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvFloatAndDuration(t *testing.T) {
	t.Setenv("SCREEN_SCALE", "2.5")
	if got := getEnvFloat("SCREEN_SCALE", 1); got != 2.5 {
		t.Errorf("getEnvFloat() = %v, want 2.5", got)
	}
	t.Setenv("SCREEN_SCALE", "retina")
	if got := getEnvFloat("SCREEN_SCALE", 1); got != 1 {
		t.Errorf("getEnvFloat() invalid = %v, want default", got)
	}

	t.Setenv("MOSAIC_TICK_INTERVAL", "250ms")
	if got := getEnvDuration("MOSAIC_TICK_INTERVAL", time.Second); got != 250*time.Millisecond {
		t.Errorf("getEnvDuration() = %v, want 250ms", got)
	}
	t.Setenv("MOSAIC_TICK_INTERVAL", "often")
	if got := getEnvDuration("MOSAIC_TICK_INTERVAL", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() invalid = %v, want default", got)
	}
}
