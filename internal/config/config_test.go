package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "studiobook-test"
database:
  path: "test.db"
catalog:
  path: "catalog.yaml"
api:
  enabled: true
  auth:
    enabled: true
    api_keys:
      - key: "k1"
        name: "admin"
        permissions: ["read", "write"]
booking:
  min_advance_days: 3
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "studiobook-test" {
		t.Errorf("expected app name studiobook-test, got %s", cfg.App.Name)
	}
	if cfg.Booking.MinAdvanceDays != 3 {
		t.Errorf("expected min_advance_days 3, got %d", cfg.Booking.MinAdvanceDays)
	}

	// defaults
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
	if cfg.Booking.ConfirmTimeoutSeconds == 0 {
		t.Error("expected confirm timeout default to be applied")
	}
	if cfg.Notifications.QueueSize == 0 {
		t.Error("expected notification queue size default to be applied")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_DB_PATH", "/var/lib/studiobook/bookings.db")

	yamlContent := `
database:
  path: "${TEST_DB_PATH}"
catalog:
  path: "catalog.yaml"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "/var/lib/studiobook/bookings.db" {
		t.Errorf("expected env-expanded path, got %s", cfg.Database.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Catalog:  CatalogConfig{Path: "catalog.yaml"},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			cfg: Config{
				Catalog: CatalogConfig{Path: "catalog.yaml"},
			},
			wantErr: true,
		},
		{
			name: "missing catalog path",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
			},
			wantErr: true,
		},
		{
			name: "auth enabled without keys",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Catalog:  CatalogConfig{Path: "catalog.yaml"},
				API: APIConfig{
					Enabled: true,
					Auth:    APIAuthConfig{Enabled: true},
				},
			},
			wantErr: true,
		},
		{
			name: "empty api key",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Catalog:  CatalogConfig{Path: "catalog.yaml"},
				API: APIConfig{
					Auth: APIAuthConfig{APIKeys: []APIClientKey{{Name: "x"}}},
				},
			},
			wantErr: true,
		},
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
