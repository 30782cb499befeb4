package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickplan/internal/config"
	xerrors "quickplan/internal/errors"
	"quickplan/internal/events"
	"quickplan/internal/plan"
)

func TestConfigPathPrefersEnv(t *testing.T) {
	t.Setenv(configEnv, "/etc/quickplan.yaml")
	assert.Equal(t, "/etc/quickplan.yaml", configPath())

	t.Setenv(configEnv, "")
	chdir(t, t.TempDir())
	assert.Equal(t, "", configPath())

	require.NoError(t, os.MkdirAll("configs", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("configs", "quickplan.yaml"), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join("configs", "quickplan.yaml"), configPath())
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, err := openStore(ctx, config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &plan.MemoryStore{}, store)

	store, err = openStore(ctx, config.StorageConfig{
		Driver:         "sqlite",
		File:           filepath.Join(t.TempDir(), "quickplan.db"),
		MaxConnections: 1,
		TimeoutMS:      500,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = openStore(ctx, config.StorageConfig{Driver: "postgres"})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()

	c, err := openCache(ctx, config.CacheConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = openCache(ctx, config.CacheConfig{Driver: "lru", Size: 8, TTLSeconds: 60})
	require.NoError(t, err)
	assert.NotNil(t, c)

	mr := miniredis.RunT(t)
	c, err = openCache(ctx, config.CacheConfig{
		Driver:     "redis",
		Size:       8,
		TTLSeconds: 60,
		Redis:      config.RedisConfig{Address: mr.Addr(), Prefix: "test:"},
	})
	require.NoError(t, err)

	p := &plan.Plan{ID: 1, Name: "cached", URLID: "Ab3dEf9h"}
	c.Set(ctx, p)
	assert.True(t, mr.Exists("test:Ab3dEf9h"))

	closer, ok := c.(io.Closer)
	require.True(t, ok, "redis cache must be closable on shutdown")
	require.NoError(t, closer.Close())

	_, err = openCache(ctx, config.CacheConfig{Driver: "memcached"})
	assert.Error(t, err)
}

func TestOpenPublisher(t *testing.T) {
	ctx := context.Background()

	pub, err := openPublisher(ctx, config.EventsConfig{Driver: "none"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, events.New(events.TypePlanCreated, "Ab3dEf9h")))
	require.NoError(t, pub.Close())

	pub, err = openPublisher(ctx, config.EventsConfig{Driver: "memory"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, events.New(events.TypePlanCreated, "Ab3dEf9h")))
	require.NoError(t, pub.Close())

	mr := miniredis.RunT(t)
	pub, err = openPublisher(ctx, config.EventsConfig{
		Driver:  "redis",
		Channel: "quickplan.events",
		Redis:   config.RedisConfig{Address: mr.Addr()},
	})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, events.New(events.TypeUserJoined, "Ab3dEf9h")))
	require.NoError(t, pub.Close())

	_, err = openPublisher(ctx, config.EventsConfig{Driver: "kafka"})
	assert.Error(t, err)
}

func TestStartBuildConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	require.NoError(t, os.WriteFile(path, []byte("content: [\"*.html\"]\n"), 0o644))

	require.NoError(t, startBuildConfig(ctx, config.BuildConfig{ConfigPath: path, Watch: true}, true))

	missing := config.BuildConfig{ConfigPath: filepath.Join(dir, "missing.yaml")}
	assert.NoError(t, startBuildConfig(ctx, missing, false), "development mode only logs")
	assert.Error(t, startBuildConfig(ctx, missing, true), "release mode refuses to start")
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory %s: %v", prev, err)
		}
	})
}
