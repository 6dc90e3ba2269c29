// Package config loads settings for the client and the server.
//
// Values come from defaults, an optional config file (YAML, TOML or JSON) and
// SHELFSYNC_* environment variables, in increasing priority. Command line
// flags are bound on top by the cobra commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. SHELFSYNC_SERVER_URL
const EnvPrefix = "SHELFSYNC"

// newViper creates a viper instance wired to env variables and an optional file
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	return v, nil
}

// load reads defaults into v and decodes it into out
func load(v *viper.Viper, out any) error {
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// expandHome раскрывает ~ в путях
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ErrInvalidConfig is wrapped by every Validate error
var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
