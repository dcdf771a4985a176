package internal

import (
	"fmt"
	"strings"
	"time"

	"kutter/runtime"

	"github.com/samber/lo"
)

type Config struct {
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	GrpcPort             int           `env:"GRPC_PORT,default=9090"`
	TokenCookieName      string        `env:"TOKEN_COOKIE_NAME,default=token"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=20"`
	MaxMessageLength     int           `env:"MAX_MESSAGE_LENGTH,default=1000"`
	MaxFrameBytes        int64         `env:"MAX_FRAME_BYTES,default=8192"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

func (c Config) HttpAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) GrpcAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GrpcPort)
}

func (c Config) Connection() runtime.ConnectionConfig {
	return runtime.ConnectionConfig{
		SendBufferSize: c.ConnectionBufferSize,
		WriteTimeout:   c.WriteTimeout,
		PongTimeout:    c.PongTimeout,
		MaxFrameBytes:  c.MaxFrameBytes,
	}
}

// Origins splits ALLOWED_ORIGINS, dropping blanks.
func (c Config) Origins() []string {
	origins := lo.Map(strings.Split(c.AllowedOrigins, ","), func(origin string, _ int) string {
		return strings.TrimSpace(origin)
	})
	return lo.Compact(origins)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
