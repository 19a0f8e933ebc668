// Package main выпускает JWT владельца для локальной проверки API.
//
// Пример: CONFIG_PATH=config/local.yaml thomas-token -id 1234 -email a@b.com
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/magabrotheeeer/thomas-api/internal/config"
	"github.com/magabrotheeeer/thomas-api/internal/lib/jwt"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
)

func main() {
	id := flag.Int64("id", 0, "user id")
	email := flag.String("email", "", "user email")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *id == 0 || *email == "" {
		logger.Error("both -id and -email are required")
		os.Exit(2)
	}

	cfg := config.MustLoad()
	token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(*id, *email)
	if err != nil {
		logger.Error("failed to generate token", sl.Err(err))
		os.Exit(1)
	}
	fmt.Println(token)
}
