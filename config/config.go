/*
Package config loads server configuration from an optional TOML file.

PURPOSE:
  Everything configurable about the server in one struct: where the
  database lives, which port to bind, which origins the frontend calls
  from, the reporting currency, and the cost-element prefixes the actuals
  categorization pass uses. Flags in cmd/server override file values, and
  both override the defaults, so a bare binary still runs.

FILE FORMAT (TOML):
  port = 8080
  db_path = "./data/finrecon.db"
  currency = "AUD"
  cors_origins = ["http://localhost:5173"]

  [categorization]
  software_prefix = "650"
  hardware_prefix = "660"

SEE ALSO:
  - cmd/server/main.go: Flag handling and startup wiring
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Categorization holds the cost-element-code prefixes for the actuals
// categorization pass.
type Categorization struct {
	SoftwarePrefix string `toml:"software_prefix"`
	HardwarePrefix string `toml:"hardware_prefix"`
}

// Config is the full server configuration.
type Config struct {
	Port           int            `toml:"port"`
	DBPath         string         `toml:"db_path"`
	Currency       string         `toml:"currency"`
	CORSOrigins    []string       `toml:"cors_origins"`
	Categorization Categorization `toml:"categorization"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Port:     8080,
		DBPath:   "finrecon.db",
		Currency: "AUD",
		CORSOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
		Categorization: Categorization{
			SoftwarePrefix: "650",
			HardwarePrefix: "660",
		},
	}
}

// Load reads configuration from path, layered over the defaults. A
// missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
