package aiengine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aiengine/aiengine-go/internal/shared"
)

// configFile is the YAML shape of an engine configuration. Durations use
// Go duration syntax ("2s", "500ms"). Zero values fall back to defaults.
type configFile struct {
	ModelVersion string `yaml:"model_version"`
	RegistryPath string `yaml:"registry_path"`

	Store struct {
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Database string `yaml:"database"`
			SSL      bool   `yaml:"ssl"`
		} `yaml:"postgres"`
	} `yaml:"store"`

	Retention string `yaml:"retention"`

	Timeouts struct {
		Encode  string `yaml:"encode"`
		Predict string `yaml:"predict"`
		Explain string `yaml:"explain"`
	} `yaml:"timeouts"`

	Feedback struct {
		Alpha          float64 `yaml:"alpha"`
		RetainVersions int     `yaml:"retain_versions"`
		QueueSize      int     `yaml:"queue_size"`
	} `yaml:"feedback"`

	PerturbationBudget int    `yaml:"perturbation_budget"`
	SparseThreshold    uint64 `yaml:"sparse_threshold"`
}

// LoadConfig reads an engine configuration from a YAML file, layered over
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return config, shared.NewConfigurationError(
			fmt.Sprintf("failed to read config file: %v", err), nil)
	}

	var file configFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return config, shared.NewConfigurationError(
			fmt.Sprintf("failed to parse config file: %v", err), nil)
	}

	if file.ModelVersion != "" {
		config.ModelVersion = file.ModelVersion
	}
	config.RegistryPath = file.RegistryPath

	if file.Store.Backend != "" {
		config.Store = StoreBackend(file.Store.Backend)
	}
	config.SQLitePath = file.Store.Path
	config.Postgres.Host = file.Store.Postgres.Host
	config.Postgres.Port = file.Store.Postgres.Port
	config.Postgres.User = file.Store.Postgres.User
	config.Postgres.Password = file.Store.Postgres.Password
	config.Postgres.Database = file.Store.Postgres.Database
	config.Postgres.SSL = file.Store.Postgres.SSL

	if config.Retention, err = overlayDuration(config.Retention, file.Retention, "retention"); err != nil {
		return config, err
	}
	if config.Timeouts.Encode, err = overlayDuration(config.Timeouts.Encode, file.Timeouts.Encode, "timeouts.encode"); err != nil {
		return config, err
	}
	if config.Timeouts.Predict, err = overlayDuration(config.Timeouts.Predict, file.Timeouts.Predict, "timeouts.predict"); err != nil {
		return config, err
	}
	if config.Timeouts.Explain, err = overlayDuration(config.Timeouts.Explain, file.Timeouts.Explain, "timeouts.explain"); err != nil {
		return config, err
	}

	if file.Feedback.Alpha > 0 {
		config.Feedback.Alpha = file.Feedback.Alpha
	}
	if file.Feedback.RetainVersions > 0 {
		config.Feedback.RetainVersions = file.Feedback.RetainVersions
	}
	if file.Feedback.QueueSize > 0 {
		config.Feedback.QueueSize = file.Feedback.QueueSize
	}
	if file.PerturbationBudget > 0 {
		config.PerturbationBudget = file.PerturbationBudget
	}
	if file.SparseThreshold > 0 {
		config.SparseThreshold = file.SparseThreshold
	}

	return config, nil
}

func overlayDuration(current time.Duration, raw, field string) (time.Duration, error) {
	if raw == "" {
		return current, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return current, shared.NewConfigurationError(
			fmt.Sprintf("invalid duration for %s: %v", field, err), nil)
	}
	return parsed, nil
}
