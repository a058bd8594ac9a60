package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/bacli/internal/config"
)

func TestNewMongoDB_OptionsOverrideConfig(t *testing.T) {
	cfg := config.Config{MongoDB: config.MongoDBConfig{
		URI:      "mongodb://config:27017",
		Database: "from_config",
		Timeout:  time.Second,
	}}

	m := NewMongoDB(cfg,
		WithMongoURI("mongodb://override:27017"),
		WithMongoDatabase(""),
		WithMongoCredentials("backup", ""),
		WithMongoTimeout(0),
	)

	assert.Equal(t, "mongodb://override:27017", m.URI)
	assert.Equal(t, "from_config", m.Database, "empty override keeps the default")
	assert.Equal(t, "backup", m.Username)
	assert.Empty(t, m.Password)
	assert.Equal(t, time.Second, m.Timeout)
	assert.NotNil(t, m.Logger)
}

func TestMongoDB_ClientOptions(t *testing.T) {
	m := NewMongoDB(config.Config{}, WithMongoURI("mongodb://db:27017"), WithMongoCredentials("u", "p"), WithMongoTimeout(5*time.Second))

	opts := m.clientOptions()
	require.NotNil(t, opts.Auth)
	assert.Equal(t, "u", opts.Auth.Username)
	assert.Equal(t, "admin", opts.Auth.AuthSource)
	require.NotNil(t, opts.Timeout)
	assert.Equal(t, 5*time.Second, *opts.Timeout)
}

func TestMongoDB_PingBeforeConnect(t *testing.T) {
	m := NewMongoDB(config.Config{})
	require.ErrorIs(t, m.Ping(context.Background()), ErrUnavailable)
	require.NoError(t, m.Close(context.Background()))
}

func TestMongoDB_ConnectFailureReleasesClient(t *testing.T) {
	m := NewMongoDB(config.Config{MongoDB: config.MongoDBConfig{Database: "app"}},
		WithMongoURI("mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200"),
		WithMongoTimeout(500*time.Millisecond),
	)

	err := m.Connect(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, m.client)
	assert.Nil(t, m.db)

	require.ErrorIs(t, m.Ping(context.Background()), ErrUnavailable)
	require.NoError(t, m.Close(context.Background()))
}
