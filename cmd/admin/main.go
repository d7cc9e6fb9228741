package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bloodlink/backend/internal/auth"
	"bloodlink/backend/internal/config"
	"bloodlink/backend/internal/models"
	"bloodlink/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  promote <email>   grant the admin role
  demote <email>    revoke the admin role
  token <email>     print a bearer token for the account`

func main() {
	if len(os.Args) != 3 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command, email := os.Args[1], strings.ToLower(os.Args[2])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	users := storage.NewStorageService(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case "promote":
		if err := setAdmin(ctx, users, email, true); err != nil {
			log.Fatalf("Error promoting user: %v", err)
		}
		fmt.Printf("User %s is now an admin. Existing tokens keep their old role until they expire.\n", email)
	case "demote":
		if err := setAdmin(ctx, users, email, false); err != nil {
			log.Fatalf("Error demoting user: %v", err)
		}
		fmt.Printf("User %s is no longer an admin. Existing tokens keep their old role until they expire.\n", email)
	case "token":
		tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
		token, err := issueToken(ctx, users, tokens, email)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func setAdmin(ctx context.Context, s storage.UserStore, email string, admin bool) error {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	roles := slices.DeleteFunc(slices.Clone([]string(user.Roles)), func(r string) bool {
		return r == models.RoleAdmin
	})
	if admin {
		roles = append([]string{models.RoleAdmin}, roles...)
	}
	if len(roles) == 0 {
		roles = []string{models.RoleUser}
	}
	return s.UpdateUserRoles(ctx, user.ID, roles)
}

func issueToken(ctx context.Context, s storage.UserStore, tokens *auth.Manager, email string) (string, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return tokens.Issue(user)
}
