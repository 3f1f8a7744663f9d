package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("POSTGRES_CONN_STR", "host=localhost user=fruitsense")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("PUSH_GATEWAY_URL", "http://127.0.0.1:9999/push")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "host=localhost user=fruitsense", cfg.PostgresConnStr)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "http://127.0.0.1:9999/push", cfg.PushGatewayURL)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("PUSH_GATEWAY_URL", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://exp.host/--/api/v2/push/send", cfg.PushGatewayURL)
}

func TestInitDBRequiresConnectionStrings(t *testing.T) {
	db, err := InitDB(&Config{})
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "POSTGRES_CONN_STR")

	// The MongoDB URI is validated before any connection is attempted.
	db, err = InitDB(&Config{PostgresConnStr: "host=localhost"})
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "MONGO_URI")
}
