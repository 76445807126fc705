package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	want := &Config{
		BackendURL:     "https://example.pigeon.dev",
		BackendKey:     "anon-key",
		DefaultProfile: "work",
	}
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.BackendURL != want.BackendURL || got.BackendKey != want.BackendKey || got.DefaultProfile != want.DefaultProfile {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadMissingFileNotFatal(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing config file should not error, got %v", err)
	}
	if cfg.BackendURL != "" {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{BackendURL: "https://file.example", BackendKey: "file-key"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PIGEON_BACKEND_URL", "https://env.example")
	t.Setenv("PIGEON_PROFILE", "env-profile")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackendURL != "https://env.example" {
		t.Errorf("backend_url = %q, want env override", cfg.BackendURL)
	}
	if cfg.BackendKey != "file-key" {
		t.Errorf("backend_key = %q, want file value", cfg.BackendKey)
	}
	if cfg.DefaultProfile != "env-profile" {
		t.Errorf("default_profile = %q, want env override", cfg.DefaultProfile)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"complete", Config{BackendURL: "https://x", BackendKey: "k"}, false},
		{"missing url", Config{BackendKey: "k"}, true},
		{"missing key", Config{BackendURL: "https://x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMain(m *testing.M) {
	// Keep ambient PIGEON_* variables from leaking into assertions.
	for _, k := range []string{"PIGEON_BACKEND_URL", "PIGEON_BACKEND_KEY", "PIGEON_PROFILE"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}
