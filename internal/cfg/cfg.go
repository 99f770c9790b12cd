package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"race-predictor/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ListenPort   int
	DataPath     string // empty disables prediction history
	History      bool
	ArtifactsDir string
	LogLevel     string
	LogFormat    string
	ModelTimeout time.Duration
	Backend      string
	InferenceURL string
	PythonPath   string

	Circuits      []string
	Manufacturers []string
	ClassOrder    []string

	Models map[string]ModelConfig
}

// ModelConfig locates the artifacts of one model. Paths are relative to the
// artifacts directory unless absolute.
type ModelConfig struct {
	Kind     string            `yaml:"kind"`
	Path     string            `yaml:"path"`
	Scaler   string            `yaml:"scaler"`
	Encoders map[string]string `yaml:"encoders"` // encoded column -> artifact
	Schema   []string          `yaml:"schema"`   // overrides the compiled-in column order

	// ManufacturerNormalizer picks how manufacturer labels become tokens:
	// full, slug or none. Defaults to slug.
	ManufacturerNormalizer string `yaml:"manufacturerNormalizer"`
}

type ConfigFile struct {
	Server struct {
		ListenPort int    `yaml:"listenPort"`
		LogLevel   string `yaml:"logLevel"`
		LogFormat  string `yaml:"logFormat"`
	} `yaml:"server"`

	Storage struct {
		DataPath string `yaml:"dataPath"`
		History  *bool  `yaml:"history"`
	} `yaml:"storage"`

	Inference struct {
		Backend    string `yaml:"backend"`
		URL        string `yaml:"url"`
		PythonPath string `yaml:"pythonPath"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"inference"`

	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`

	Categories struct {
		Circuits      []string `yaml:"circuits"`
		Manufacturers []string `yaml:"manufacturers"`
		ClassOrder    []string `yaml:"classOrder"`
	} `yaml:"categories"`

	Models map[string]ModelConfig `yaml:"models"`
}

// Load reads .env (if present), then CONFIG_FILE when set, then environment
// overrides, and validates the result.
func Load() (Settings, error) {
	if err := loadDotEnv(); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadDotEnv() error {
	path := getEnvOrDefault(common.EnvDotEnvFile, common.DefaultDotEnvFile)
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout := common.DefaultModelTimeout
	if config.Inference.Timeout != "" {
		if timeout, err = time.ParseDuration(config.Inference.Timeout); err != nil {
			return Settings{}, fmt.Errorf("invalid inference timeout %q: %w", config.Inference.Timeout, err)
		}
	}

	dataPath := getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath)
	history := dataPath != ""
	if config.Storage.History != nil {
		history = *config.Storage.History
	}

	settings := Settings{
		ListenPort:    getIntFromEnvOrConfig(common.EnvListenPort, config.Server.ListenPort, common.DefaultListenPort),
		DataPath:      dataPath,
		History:       getBoolOrDefault(common.EnvHistoryEnable, history),
		ArtifactsDir:  getEnvOrDefault(common.EnvArtifactsDir, orDefault(config.Artifacts.Dir, common.DefaultArtifactsDir)),
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, orDefault(config.Server.LogLevel, common.DefaultLogLevel)),
		LogFormat:     getEnvOrDefault(common.EnvLogFormat, config.Server.LogFormat),
		ModelTimeout:  getDurationOrDefault(common.EnvModelTimeout, timeout),
		Backend:       getEnvOrDefault(common.EnvModelBackend, orDefault(config.Inference.Backend, common.DefaultModelBackend)),
		InferenceURL:  getEnvOrDefault(common.EnvInferenceURL, config.Inference.URL),
		PythonPath:    getEnvOrDefault(common.EnvPythonPath, config.Inference.PythonPath),
		Circuits:      orDefaultList(config.Categories.Circuits, common.Circuits),
		Manufacturers: orDefaultList(config.Categories.Manufacturers, common.Manufacturers),
		ClassOrder:    orDefaultList(config.Categories.ClassOrder, common.ClassOrder),
		Models:        mergeModels(config.Models),
	}

	if err := selectModels(&settings); err != nil {
		return Settings{}, err
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	dataPath := os.Getenv(common.EnvDataPath) // optional

	settings := Settings{
		ListenPort:    getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		DataPath:      dataPath,
		History:       getBoolOrDefault(common.EnvHistoryEnable, dataPath != ""),
		ArtifactsDir:  getEnvOrDefault(common.EnvArtifactsDir, common.DefaultArtifactsDir),
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:     os.Getenv(common.EnvLogFormat),
		ModelTimeout:  getDurationOrDefault(common.EnvModelTimeout, common.DefaultModelTimeout),
		Backend:       getEnvOrDefault(common.EnvModelBackend, common.DefaultModelBackend),
		InferenceURL:  os.Getenv(common.EnvInferenceURL),
		PythonPath:    os.Getenv(common.EnvPythonPath),
		Circuits:      slices.Clone(common.Circuits),
		Manufacturers: slices.Clone(common.Manufacturers),
		ClassOrder:    slices.Clone(common.ClassOrder),
		Models:        DefaultModels(),
	}

	if err := selectModels(&settings); err != nil {
		return Settings{}, err
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// DefaultModels returns the artifact layout the two race models ship with.
func DefaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		common.LapTimeModel: {
			Kind: common.KindRegression,
			Path: filepath.Join(common.LapTimeModel, "Lap_Time_Prediction.pkl"),
			Encoders: map[string]string{
				common.FieldManufacturer: filepath.Join(common.LapTimeModel, "manufacturer_target_encoding.json"),
				common.ColumnTeamNo:      filepath.Join(common.LapTimeModel, "team_no_target_encoding.json"),
			},
			ManufacturerNormalizer: "slug",
		},
		common.CarClassModel: {
			Kind:   common.KindClassification,
			Path:   filepath.Join(common.CarClassModel, "RandomForestClassifier.pkl"),
			Scaler: filepath.Join(common.CarClassModel, "minmax_scaler.json"),
			Encoders: map[string]string{
				common.ColumnManufacturerE: filepath.Join(common.CarClassModel, "manufacturer_encoder.json"),
				common.ColumnTeamE:         filepath.Join(common.CarClassModel, "team_encoder.json"),
			},
			ManufacturerNormalizer: "slug",
		},
	}
}

// mergeModels lays configured models over the defaults field by field, so a
// config file may override only the model path.
func mergeModels(configured map[string]ModelConfig) map[string]ModelConfig {
	models := DefaultModels()
	for name, mc := range configured {
		base, known := models[name]
		if !known {
			models[name] = mc
			continue
		}
		if mc.Kind != "" {
			base.Kind = mc.Kind
		}
		if mc.Path != "" {
			base.Path = mc.Path
		}
		if mc.Scaler != "" {
			base.Scaler = mc.Scaler
		}
		if len(mc.Schema) > 0 {
			base.Schema = mc.Schema
		}
		if mc.ManufacturerNormalizer != "" {
			base.ManufacturerNormalizer = mc.ManufacturerNormalizer
		}
		for col, path := range mc.Encoders {
			base.Encoders[col] = path
		}
		models[name] = base
	}
	return models
}

// selectModels keeps only the models named in MODELS, when set.
func selectModels(s *Settings) error {
	v := os.Getenv(common.EnvModels)
	if v == "" {
		return nil
	}
	selected := make(map[string]ModelConfig)
	for _, name := range strings.Split(v, ",") {
		name = strings.TrimSpace(name)
		mc, ok := s.Models[name]
		if !ok {
			return fmt.Errorf("%s names unknown model %q", common.EnvModels, name)
		}
		selected[name] = mc
	}
	s.Models = selected
	return nil
}

// ArtifactPath resolves p against the artifacts directory.
func (s Settings) ArtifactPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.ArtifactsDir, p)
}

// ModelNames returns the configured model names, sorted.
func (s Settings) ModelNames() []string {
	names := make([]string, 0, len(s.Models))
	for name := range s.Models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultList(v, def []string) []string {
	if len(v) == 0 {
		return slices.Clone(def)
	}
	return v
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ListenPort < common.MinListenPort || settings.ListenPort > common.MaxListenPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d",
			common.MinListenPort, common.MaxListenPort, settings.ListenPort)
	}

	if settings.ModelTimeout < common.MinModelTimeout || settings.ModelTimeout > common.MaxModelTimeout {
		return fmt.Errorf("model timeout must be between %v and %v, got %v",
			common.MinModelTimeout, common.MaxModelTimeout, settings.ModelTimeout)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	if settings.LogFormat != "" && settings.LogFormat != "json" && settings.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	switch settings.Backend {
	case common.BackendProcess:
	case common.BackendRemote:
		if settings.InferenceURL == "" {
			return fmt.Errorf("inference URL is required for the %s backend", common.BackendRemote)
		}
	default:
		return fmt.Errorf("model backend must be %s or %s, got %q",
			common.BackendProcess, common.BackendRemote, settings.Backend)
	}

	if settings.History && settings.DataPath == "" {
		return fmt.Errorf("prediction history needs a data path")
	}

	if len(settings.Circuits) == 0 || len(settings.Manufacturers) == 0 || len(settings.ClassOrder) == 0 {
		return fmt.Errorf("circuit, manufacturer and class lists cannot be empty")
	}

	if len(settings.Models) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	known := DefaultModels()
	for name, mc := range settings.Models {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("model %s: no feature plan exists for this model", name)
		}
		if mc.Kind != common.KindRegression && mc.Kind != common.KindClassification {
			return fmt.Errorf("model %s: kind must be %s or %s, got %q",
				name, common.KindRegression, common.KindClassification, mc.Kind)
		}
		if mc.Path == "" && settings.Backend == common.BackendProcess {
			return fmt.Errorf("model %s: artifact path is required", name)
		}
	}

	return nil
}
