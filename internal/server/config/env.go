package config

import (
	"github.com/caarlos0/env/v11"
)

// portEnv carries PORT, which sets only the port of the HTTP address.
type portEnv struct {
	Port string `env:"PORT"`
}

// parseEnv overlays the variables named in the Config env tags. Unset
// variables leave the current value alone. PORT is applied first so an
// explicit HTTP_ADDRESS wins over it. A malformed value panics, like a
// malformed JSON file does.
func parseEnv(config *Config) {
	var p portEnv
	if err := env.Parse(&p); err != nil {
		panic(err)
	}
	if p.Port != "" {
		config.EndpointAddrHTTP = ":" + p.Port
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
