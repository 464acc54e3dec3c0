// Command admintoken mints a bearer token for the query API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"brandsite/internal/auth"
	"brandsite/internal/config"
	"brandsite/internal/logging"
)

func main() {
	subject := flag.String("subject", "admin", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	logger := logging.New("admintoken", "info")
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}
	token, err := auth.IssueToken(cfg.JWTSecret, *subject, auth.RoleAdmin, *ttl, time.Now())
	if err != nil {
		logger.Error("issue token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
