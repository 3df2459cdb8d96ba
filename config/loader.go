package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	necsim "github.com/kentwait/necsimgo"
)

// Load decodes and validates the TOML document at path, grounded on
// utils.go's LoadSingleHostConfig + evoepi_config.go's Validate chain.
func Load(path string) (*Config, error) {
	c := new(Config)
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, necsim.WrapSimError(necsim.IOError, err, "decoding config file "+path)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validating config file %s", path)
	}
	return c, nil
}
