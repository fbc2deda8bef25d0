package logger

import (
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{" info ", LevelInfo, false},
		{"warn", LevelWarning, false},
		{"WARNING", LevelWarning, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(LevelError)
	if GetLevel() != LevelError {
		t.Errorf("GetLevel() = %v, want %v", GetLevel(), LevelError)
	}
}

func TestCountersIgnoreSampling(t *testing.T) {
	before := Snapshot()

	for i := 0; i < 10; i++ {
		Warn("sampled warning")
	}
	WarnHttp4xx(404)
	WarnHttp4xx(409)
	ErrorHttp5xx()
	WarnSlowAssessment()

	after := Snapshot()
	if got := after["warnings_total"] - before["warnings_total"]; got != 13 {
		t.Errorf("warnings_total grew by %d, want 13", got)
	}
	if got := after["http_404_total"] - before["http_404_total"]; got != 1 {
		t.Errorf("http_404_total grew by %d, want 1", got)
	}
	if got := after["http_409_total"] - before["http_409_total"]; got != 1 {
		t.Errorf("http_409_total grew by %d, want 1", got)
	}
	if got := after["http_5xx_total"] - before["http_5xx_total"]; got != 1 {
		t.Errorf("http_5xx_total grew by %d, want 1", got)
	}
	if got := after["slow_assessments_total"] - before["slow_assessments_total"]; got != 1 {
		t.Errorf("slow_assessments_total grew by %d, want 1", got)
	}
}
