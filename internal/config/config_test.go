package config

import (
	"os"
	"path/filepath"
	"testing"

	xerrors "quickplan/internal/errors"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAppliesDefaultsRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quickplan.yaml", `web:
  folder: www
storage:
  file: data/quickplan.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Web.Folder != filepath.Join(dir, "www") {
		t.Fatalf("web folder not resolved: %s", cfg.Web.Folder)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.File != filepath.Join(dir, "data", "quickplan.db") {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Build.ConfigPath != filepath.Join(dir, "www", "build.yaml") {
		t.Fatalf("unexpected build config path: %s", cfg.Build.ConfigPath)
	}
	if cfg.Storage.MaxConnections != 5 || cfg.Storage.TimeoutMS != 500 {
		t.Fatalf("unexpected pool defaults: %+v", cfg.Storage)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quickplan.yaml", "web:\n  folder: www\nstorage:\n  file: a.db\n")

	t.Setenv(EnvWebFolder, "/srv/www")
	t.Setenv(EnvDBMaxConnections, "12")
	t.Setenv(EnvDBTimeoutMS, "250")
	t.Setenv(EnvRelease, "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Web.Folder != "/srv/www" {
		t.Fatalf("env override ignored: %s", cfg.Web.Folder)
	}
	if cfg.Storage.MaxConnections != 12 || cfg.Storage.Timeout().Milliseconds() != 250 {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if !cfg.Server.Release {
		t.Fatalf("release flag not applied")
	}
}

func TestMissingEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvWebFolder, "")
	t.Setenv(EnvDBFile, "quickplan.db")

	_, err := Load("")
	if xerrors.CodeOf(err) != xerrors.CodeConfigMissingEnv {
		t.Fatalf("expected missing env error, got %v", err)
	}
	e, _ := xerrors.From(err)
	if e.Metadata()["env"] != EnvWebFolder {
		t.Fatalf("unexpected metadata: %v", e.Metadata())
	}
}

func TestIncorrectFormat(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvWebFolder, "www")
	t.Setenv(EnvDBFile, "quickplan.db")
	t.Setenv(EnvDBMaxConnections, "many")

	_, err := Load("")
	if xerrors.CodeOf(err) != xerrors.CodeConfigIncorrectFormat {
		t.Fatalf("expected incorrect format error, got %v", err)
	}
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", EnvWebFolder+"=static\n"+EnvDBFile+"=plans.db\n")
	path := writeFile(t, dir, "quickplan.yaml", "")
	t.Cleanup(func() {
		os.Unsetenv(EnvWebFolder)
		os.Unsetenv(EnvDBFile)
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Web.Folder != filepath.Join(dir, "static") {
		t.Fatalf("unexpected folder: %s", cfg.Web.Folder)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "quickplan.yaml", "web:\n  folder: www\n  colour: red\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestValidateDrivers(t *testing.T) {
	cfg := &Config{Web: WebConfig{Folder: "www"}, Storage: StorageConfig{Driver: "mysql"}}
	cfg.applyDefaults(".")
	if xerrors.CodeOf(cfg.Validate()) != xerrors.CodeConfigMissingEnv {
		t.Fatalf("mysql without dsn should be rejected")
	}

	cfg.Storage.DSN = "user:pass@tcp(localhost:3306)/quickplan"
	cfg.Events.Driver = "kafka"
	if xerrors.CodeOf(cfg.Validate()) != xerrors.CodeInvalidArgument {
		t.Fatalf("unknown events driver should be rejected")
	}
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
