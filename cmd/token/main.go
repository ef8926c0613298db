// Command token issues a signed access token for local testing.
//
//	JWT_SECRET=dev go run ./cmd/token -id u1 -name Alice
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/livechat/internal/auth"
	"github.com/Tyrowin/livechat/internal/server"
)

func main() {
	id := flag.String("id", "", "User ID (random when empty)")
	name := flag.String("name", "", "Display name")
	email := flag.String("email", "", "Email address")
	ttl := flag.Duration("ttl", 0, "Token lifetime (defaults to TOKEN_TTL)")
	flag.Parse()

	if err := run(*id, *name, *email, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(id, name, email string, ttl time.Duration) error {
	if name == "" {
		return errors.New("-name is required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	config, err := server.LoadConfig()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = config.TokenTTL
	}

	token, err := auth.NewJWTVerifier([]byte(config.JWTSecret), config.JWTIssuer).Issue(id, name, email, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Println(token)
	return nil
}
