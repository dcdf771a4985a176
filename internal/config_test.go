package internal

import (
	"os"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

var optionalKeys = []string{
	"HOST", "PORT", "GRPC_PORT", "TOKEN_COOKIE_NAME", "ALLOWED_ORIGINS", "CONNECTION_BUFFER_SIZE",
	"MAX_MESSAGE_LENGTH", "MAX_FRAME_BYTES", "LIMIT_MESSAGES", "WRITE_TIMEOUT", "PONG_TIMEOUT",
	"METRIC_INTERVAL", "RESTART_INTERVAL", "CENSORED_WORDS", "CHARACTER_REPLACEMENT",
}

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	unsetEnv(t, optionalKeys...)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("BADGER_FILEPATH", "/tmp/kutter")
	t.Setenv("JWT_SECRET", "secret")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.NoError(err)

	req.Equal("localhost:8080", config.HttpAddress())
	req.Equal("localhost:9090", config.GrpcAddress())
	req.Equal("token", config.TokenCookieName)
	req.Equal([]string{"http://localhost:3000"}, config.Origins())
	req.Nil(config.LimitMessages)
	req.Equal(60*time.Second, config.PongTimeout)

	connection := config.Connection()
	req.Equal(20, connection.SendBufferSize)
	req.Equal(int64(8192), connection.MaxFrameBytes)
	req.Equal(10*time.Second, connection.WriteTimeout)

	r, err := CharacterRune(config.CharReplacement)
	req.NoError(err)
	req.Equal('*', r)
}

func TestConfig_Required(t *testing.T) {
	req := require.New(t)
	unsetEnv(t, "LOG_LEVEL", "BADGER_FILEPATH", "JWT_SECRET")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.Error(err)
}

func TestConfig_Origins(t *testing.T) {
	req := require.New(t)
	config := Config{AllowedOrigins: " http://a.dev , ,http://b.dev"}
	req.Equal([]string{"http://a.dev", "http://b.dev"}, config.Origins())
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("ab")
	req.Error(err)
	_, err = CharacterRune("")
	req.Error(err)
}
