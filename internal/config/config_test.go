package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "evaluator-server", cfg.ServiceName)
	assert.Equal(t, StartOffsetReplay, cfg.ResultStartOffset)
	assert.Equal(t, "queue:requests", cfg.RequestStream)
	assert.Equal(t, "stream:results", cfg.ResultStream)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Same(t, cfg, GetGlobal())
}

func TestLoadStartOffset(t *testing.T) {
	tests := []struct {
		name    string
		offset  string
		wantErr bool
	}{
		{name: "replay", offset: "0"},
		{name: "latest", offset: "$"},
		{name: "padded", offset: " $ "},
		{name: "explicit id rejected", offset: "1700000000000-0", wantErr: true},
		{name: "latest keyword rejected", offset: "latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RESULT_STREAM_START_OFFSET", tt.offset)
			_, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("same streams", func(t *testing.T) {
		t.Setenv("RESULT_STREAM", "queue:requests")
		_, err := Load()
		assert.ErrorContains(t, err, "must differ")
	})

	t.Run("non-positive cooldown", func(t *testing.T) {
		t.Setenv("CONSUMER_COOLDOWN", "0s")
		_, err := Load()
		assert.ErrorContains(t, err, "CONSUMER_COOLDOWN")
	})

	t.Run("production requires secret", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")

		t.Setenv("JWT_SECRET", "a-real-secret")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestRedactedMasksCredentials(t *testing.T) {
	cfg := &Config{
		DatabaseURL: "postgres://evaluator:hunter2@db:5432/evaluator?sslmode=disable",
		RedisURL:    "redis://localhost:6379/0",
	}
	out := cfg.Redacted()
	assert.NotContains(t, out.DatabaseURL, "hunter2")
	assert.Contains(t, out.DatabaseURL, "evaluator:xxxxx@db:5432")
	assert.Equal(t, cfg.RedisURL, out.RedisURL)
	assert.Contains(t, cfg.DatabaseURL, "hunter2")
}

func TestJSONSchemaUsesYAMLNames(t *testing.T) {
	schema := JSONSchema()
	require.NotNil(t, schema.Properties)

	_, ok := schema.Properties.Get("result_stream_start_offset")
	assert.True(t, ok)
	_, ok = schema.Properties.Get("JWTSecret")
	assert.False(t, ok)
}
