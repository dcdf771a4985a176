package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"kutter/auth"
	"kutter/domain"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
)

type Config struct {
	JWTSecret string `env:"JWT_SECRET,required=true"`
}

// Mints a session token for local testing, signed with the server's JWT_SECRET.
//
//	go run ./cmd/token -user u-1 -email alice@kutter.dev -username alice
func main() {
	userID := flag.String("user", "", "user id carried as the token subject")
	email := flag.String("email", "", "email of the user")
	username := flag.String("username", "", "display name of the user")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := run(domain.Identity{UserID: *userID, Email: *email, Username: *username}, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Render(err.Error()))
		os.Exit(1)
	}
}

func run(identity domain.Identity, ttl time.Duration) error {
	if identity.UserID == "" {
		return fmt.Errorf("-user is required")
	}

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	token, err := auth.GenerateToken([]byte(config.JWTSecret), identity, ttl)
	if err != nil {
		return err
	}

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(
		fmt.Sprintf("  ====== token for %s, valid %s ======", identity.UserID, ttl)))
	fmt.Println(token)
	fmt.Println(color.Gray.Render(fmt.Sprintf("Cookie: %s=%s", auth.DefaultCookieName, token)))
	return nil
}
