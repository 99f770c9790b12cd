package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"race-predictor/internal/common"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ListenPort != common.DefaultListenPort {
					t.Errorf("expected default ListenPort %d, got %d", common.DefaultListenPort, settings.ListenPort)
				}
				if settings.ModelTimeout != 10*time.Second {
					t.Errorf("expected default ModelTimeout 10s, got %v", settings.ModelTimeout)
				}
				if settings.Backend != common.BackendProcess {
					t.Errorf("expected process backend, got %s", settings.Backend)
				}
				if settings.History {
					t.Error("expected history to be off without a data path")
				}
				if len(settings.Models) != 2 {
					t.Errorf("expected both models by default, got %v", settings.ModelNames())
				}
				if len(settings.Circuits) != len(common.Circuits) {
					t.Errorf("expected default circuits, got %d", len(settings.Circuits))
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"LISTEN_PORT":   "9090",
				"DATA_PATH":     "/var/lib/race",
				"MODEL_TIMEOUT": "3s",
				"LOG_LEVEL":     "debug",
				"LOG_FORMAT":    "console",
				"ARTIFACTS_DIR": "/opt/models",
				"PYTHON_PATH":   "/usr/bin/python3",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ListenPort != 9090 {
					t.Errorf("expected ListenPort 9090, got %d", settings.ListenPort)
				}
				if !settings.History {
					t.Error("expected history on with a data path")
				}
				if settings.ModelTimeout != 3*time.Second {
					t.Errorf("expected ModelTimeout 3s, got %v", settings.ModelTimeout)
				}
				if settings.LogFormat != "console" {
					t.Errorf("expected console log format, got %s", settings.LogFormat)
				}
				want := filepath.Join("/opt/models", "lap_time", "Lap_Time_Prediction.pkl")
				if got := settings.ArtifactPath(settings.Models[common.LapTimeModel].Path); got != want {
					t.Errorf("expected artifact path %s, got %s", want, got)
				}
			},
		},
		{
			name: "history can be switched off",
			envVars: map[string]string{
				"DATA_PATH":       "/var/lib/race",
				"HISTORY_ENABLED": "false",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.History {
					t.Error("expected history to be off")
				}
			},
		},
		{
			name:    "model selection",
			envVars: map[string]string{"MODELS": "car_class"},
			validate: func(t *testing.T, settings Settings) {
				names := settings.ModelNames()
				if len(names) != 1 || names[0] != common.CarClassModel {
					t.Errorf("expected only car_class, got %v", names)
				}
			},
		},
		{
			name:    "unknown model selected",
			envVars: map[string]string{"MODELS": "tyre_wear"},
			wantErr: true,
		},
		{
			name:    "remote backend without URL",
			envVars: map[string]string{"MODEL_BACKEND": "remote"},
			wantErr: true,
		},
		{
			name: "remote backend with URL",
			envVars: map[string]string{
				"MODEL_BACKEND": "remote",
				"INFERENCE_URL": "http://localhost:9000",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.InferenceURL != "http://localhost:9000" {
					t.Errorf("expected inference URL, got %s", settings.InferenceURL)
				}
			},
		},
		{
			name:    "port out of range",
			envVars: map[string]string{"LISTEN_PORT": "80"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all environment variables first
			clearTestEnv(t)

			// Set test environment variables
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
server:
  listenPort: 8600
  logLevel: warn

storage:
  dataPath: "/custom/data"

inference:
  backend: process
  pythonPath: "/opt/venv/bin/python3"
  timeout: "4s"

artifacts:
  dir: "/models"

categories:
  circuits: ["le_mans", "sebring"]

models:
  lap_time:
    path: "v2/lap_time.pkl"
    encoders:
      team_no: "v2/team.json"
`,
			validate: func(t *testing.T, settings Settings) {
				if settings.ListenPort != 8600 {
					t.Errorf("expected ListenPort 8600, got %d", settings.ListenPort)
				}
				if settings.LogLevel != "warn" {
					t.Errorf("expected LogLevel warn, got %s", settings.LogLevel)
				}
				if settings.ModelTimeout != 4*time.Second {
					t.Errorf("expected ModelTimeout 4s, got %v", settings.ModelTimeout)
				}
				if !settings.History {
					t.Error("expected history on with a data path")
				}
				if len(settings.Circuits) != 2 {
					t.Errorf("expected 2 circuits, got %v", settings.Circuits)
				}
				if len(settings.Manufacturers) != len(common.Manufacturers) {
					t.Errorf("expected default manufacturers, got %d", len(settings.Manufacturers))
				}

				lap := settings.Models[common.LapTimeModel]
				if lap.Path != "v2/lap_time.pkl" {
					t.Errorf("expected overridden model path, got %s", lap.Path)
				}
				if lap.Kind != common.KindRegression {
					t.Errorf("expected kind kept from defaults, got %s", lap.Kind)
				}
				if lap.Encoders[common.ColumnTeamNo] != "v2/team.json" {
					t.Errorf("expected overridden team encoder, got %s", lap.Encoders[common.ColumnTeamNo])
				}
				if lap.Encoders[common.FieldManufacturer] == "" {
					t.Error("expected manufacturer encoder kept from defaults")
				}
				if _, ok := settings.Models[common.CarClassModel]; !ok {
					t.Error("expected car_class model kept from defaults")
				}
			},
		},
		{
			name: "environment overrides YAML",
			yamlContent: `
server:
  listenPort: 8600
inference:
  timeout: "4s"
`,
			envOverrides: map[string]string{
				"LISTEN_PORT":   "8700",
				"MODEL_TIMEOUT": "2s",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.ListenPort != 8700 {
					t.Errorf("expected env ListenPort 8700, got %d", settings.ListenPort)
				}
				if settings.ModelTimeout != 2*time.Second {
					t.Errorf("expected env ModelTimeout 2s, got %v", settings.ModelTimeout)
				}
			},
		},
		{
			name: "history disabled in YAML",
			yamlContent: `
storage:
  dataPath: "/custom/data"
  history: false
`,
			validate: func(t *testing.T, settings Settings) {
				if settings.History {
					t.Error("expected history off")
				}
			},
		},
		{
			name: "bad timeout",
			yamlContent: `
inference:
  timeout: "soon"
`,
			wantErr: true,
		},
		{
			name: "unknown model kind",
			yamlContent: `
models:
  car_class:
    kind: ranking
`,
			wantErr: true,
		},
		{
			name: "model without a feature plan",
			yamlContent: `
models:
  tyre_wear:
    kind: regression
    path: tyre.pkl
`,
			wantErr: true,
		},
		{
			name:        "invalid YAML",
			yamlContent: "server: [",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yamlContent), 0o600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			settings, err := loadFromYAML(path)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	clearTestEnv(t)
	if _, err := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_UsesConfigFileAndDotEnv(t *testing.T) {
	clearTestEnv(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  listenPort: 8600\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	dotenvPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenvPath, []byte("LOG_LEVEL=debug\nMODEL_TIMEOUT=7s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(common.EnvConfigFile, configPath)
	t.Setenv(common.EnvDotEnvFile, dotenvPath)
	// godotenv writes straight into the process environment
	t.Cleanup(func() {
		os.Unsetenv(common.EnvLogLevel)
		os.Unsetenv(common.EnvModelTimeout)
	})

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.ListenPort != 8600 {
		t.Errorf("expected ListenPort from YAML, got %d", settings.ListenPort)
	}
	if settings.LogLevel != "debug" {
		t.Errorf("expected LogLevel from .env, got %s", settings.LogLevel)
	}
	if settings.ModelTimeout != 7*time.Second {
		t.Errorf("expected ModelTimeout from .env, got %v", settings.ModelTimeout)
	}
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	clearTestEnv(t)
	t.Setenv(common.EnvDotEnvFile, filepath.Join(t.TempDir(), "absent.env"))

	if _, err := Load(); err != nil {
		t.Errorf("expected missing .env to be ignored, got %v", err)
	}
}

func TestArtifactPath(t *testing.T) {
	s := Settings{ArtifactsDir: "artifacts"}
	if got := s.ArtifactPath("lap_time/model.pkl"); got != filepath.Join("artifacts", "lap_time", "model.pkl") {
		t.Errorf("unexpected relative resolution: %s", got)
	}
	if got := s.ArtifactPath("/abs/model.pkl"); got != "/abs/model.pkl" {
		t.Errorf("absolute paths must be kept, got %s", got)
	}
	if got := s.ArtifactPath(""); got != "" {
		t.Errorf("empty path must stay empty, got %s", got)
	}
}

func clearTestEnv(t *testing.T) {
	envVars := []string{
		common.EnvConfigFile, common.EnvDotEnvFile, common.EnvDataPath, common.EnvArtifactsDir,
		common.EnvListenPort, common.EnvLogLevel, common.EnvLogFormat, common.EnvModelTimeout,
		common.EnvModelBackend, common.EnvInferenceURL, common.EnvPythonPath,
		common.EnvHistoryEnable, common.EnvModels,
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
