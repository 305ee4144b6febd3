package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]*zapcore.Level{
		"debug":  ptr(zapcore.DebugLevel),
		" WARN ": ptr(zapcore.WarnLevel),
		"Error":  ptr(zapcore.ErrorLevel),
		"":       nil,
		"loud":   nil,
	}
	for in, want := range cases {
		got := parseLevel(in)
		if want == nil {
			if got != nil {
				t.Errorf("parseLevel(%q) = %v, want nil", in, *got)
			}
			continue
		}
		if got == nil || *got != *want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, *want)
		}
	}
}

func TestNopChildren(t *testing.T) {
	l := Nop().Named("test").With(String("k", "v"))
	l.Info("discarded", Int("n", 1))
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func ptr(l zapcore.Level) *zapcore.Level { return &l }
