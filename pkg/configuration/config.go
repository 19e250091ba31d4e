// Package configuration loads a resolver configuration from a YAML file
// named by the environment.
package configuration

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"verre/pkg/logger"
	"verre/pkg/model"
)

type envVars struct {
	ConfigYAML string `envconfig:"VERRE_CONFIG_YAML" required:"true"`
}

// fileConfig is the YAML shape of a resolver configuration
type fileConfig struct {
	VerifiablePublicRegistries []model.VerifiablePublicRegistry `yaml:"verifiable_public_registries" validate:"dive"`
	Cached                     bool                             `yaml:"cached"`
	SkipDigestSRICheck         bool                             `yaml:"skip_digest_sri_check"`
}

// New parses the config file from the VERRE_CONFIG_YAML environment variable
func New() (*model.ResolverConfig, error) {
	log := logger.NewSimple("configuration")
	log.Info("Read environmental variable")

	env := envVars{}
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}

	return Parse(env.ConfigYAML)
}

// Parse loads a resolver configuration from the given YAML file
func Parse(configPath string) (*model.ResolverConfig, error) {
	cfg := &fileConfig{}

	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	configFile, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, err
	}

	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return nil, err
	}

	if fileInfo.IsDir() {
		return nil, errors.New("config is a folder")
	}

	if err := yaml.Unmarshal(configFile, cfg); err != nil {
		return nil, err
	}

	if err := model.Check(cfg); err != nil {
		return nil, err
	}

	return &model.ResolverConfig{
		VerifiablePublicRegistries: cfg.VerifiablePublicRegistries,
		Cached:                     cfg.Cached,
		SkipDigestSRICheck:         cfg.SkipDigestSRICheck,
	}, nil
}
