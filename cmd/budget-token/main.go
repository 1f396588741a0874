// Command budget-token mints an access token for the budgetwise API.
// Without -user it creates a new user id.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"budgetwise/internal/auth"
)

func main() {
	_ = godotenv.Load()

	userID := flag.String("user", "", "user id to issue the token for (default: a new uuid)")
	ttl := flag.Duration("ttl", 0, "token lifetime (default: JWT_TTL or 24h)")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatalf("set JWT_SECRET")
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "budgetwise"
	}
	lifetime := *ttl
	if lifetime == 0 {
		if v := os.Getenv("JWT_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				log.Fatalf("parse JWT_TTL: %v", err)
			}
			lifetime = d
		}
	}

	id := *userID
	if id == "" {
		id = uuid.NewString()
	}

	tokens, err := auth.NewTokens(secret, issuer, lifetime)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	token, err := tokens.Issue(id)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "user: %s\n", id)
	fmt.Println(token)
}
