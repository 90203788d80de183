package main

import (
	"testing"

	"github.com/book-expert/tts-console/internal/config"
	"github.com/book-expert/tts-console/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want appFlags
	}{
		{
			name: "no flags",
			args: nil,
			want: appFlags{},
		},
		{
			name: "all flags",
			args: []string{"--source", "nats", "--url", "http://hub:8501/api/logs", "--level", "ERROR", "--keyword", "tts", "--limit", "20"},
			want: appFlags{source: "nats", url: "http://hub:8501/api/logs", level: "ERROR", keyword: "tts", limit: "20"},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			flags, err := parseFlags(testCase.args)
			require.NoError(t, err)
			assert.Equal(t, testCase.want, flags)
		})
	}
}

func TestParseFlags_Unknown(t *testing.T) {
	t.Parallel()

	_, err := parseFlags([]string{"--bogus"})
	require.Error(t, err)
}

func TestApplyFlagsAndViewOptions(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()
	applyFlags(&cfg.Console, appFlags{level: "WARNING", limit: "not a number"})

	options := viewOptions(cfg.Console)

	assert.Equal(t, "WARNING", options.Criteria.Level)
	assert.Empty(t, options.Criteria.Keyword)
	assert.Equal(t, 100, options.Criteria.Limit)
	assert.Equal(t, config.DefaultBufferCapacity, options.Capacity)
	assert.True(t, options.AutoRefresh)
}

func TestNewDialer(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()

	dialer, err := newDialer(&cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &stream.SSEDialer{}, dialer)

	cfg.Console.Source = config.SourceNATS

	_, err = newDialer(&cfg, nil)
	require.ErrorIs(t, err, ErrNATSRequired)

	cfg.Console.Source = "carrier-pigeon"

	_, err = newDialer(&cfg, nil)
	require.ErrorIs(t, err, config.ErrUnknownSource)
}
