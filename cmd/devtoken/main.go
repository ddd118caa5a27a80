package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/EstateFlowDigital/photoproos-sub008/internal/auth"
)

// devtoken mints a bearer token for local use against the retainer API.
// Production tokens are issued by the studio's identity provider.
func main() {
	var (
		actor  = flag.String("actor", "", "actor id (random when empty)")
		email  = flag.String("email", "dev@studio.local", "actor email")
		role   = flag.String("role", string(auth.RoleStaff), "staff or admin")
		expiry = flag.Duration("expiry", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	actorID := uuid.New()
	if *actor != "" {
		id, err := uuid.Parse(*actor)
		if err != nil {
			slog.Error("invalid actor id", "error", err)
			os.Exit(1)
		}
		actorID = id
	}

	r := auth.Role(*role)
	if !r.IsValid() {
		slog.Error("invalid role", "role", *role)
		os.Exit(1)
	}

	token, err := auth.GenerateToken(auth.Claims{ActorID: actorID, Email: *email, Role: r}, secret, *expiry)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
