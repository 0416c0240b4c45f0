package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if tc.wantErr {
			require.Error(t, err, "in=%q", tc.in)
		} else {
			require.NoError(t, err, "in=%q", tc.in)
		}
		require.Equal(t, tc.want, got, "in=%q", tc.in)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", true)

	log.Info("dropped")
	log.Warn("kept", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "kept", rec["msg"])
	require.Equal(t, "v", rec["k"])
}
