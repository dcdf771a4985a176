package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ChatAddr is the host:port of a running chat server, the suite is skipped when empty
	ChatAddr string `envconfig:"CHAT_ADDR"`
	OpsAddr  string `envconfig:"OPS_ADDR"`
	// JWTSecret must match the server's, it is used to mint test sessions
	JWTSecret string `envconfig:"JWT_SECRET"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
