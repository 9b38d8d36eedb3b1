package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/motheroflaunch/backend/internal/config"
	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/repository"
)

func main() {
	email := flag.String("email", "", "Email address of user to promote to admin")
	revoke := flag.Bool("revoke", false, "Revoke admin privileges instead of granting")
	flag.Parse()

	if *email == "" {
		fmt.Println("Usage: promote-admin -email=user@example.com")
		fmt.Println("       promote-admin -email=user@example.com -revoke")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	_ = logger.Initialize(cfg.Log.Level, "-")
	defer logger.Close()

	if err := database.Initialize(cfg); err != nil {
		logger.SugaredLog.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	users := repository.NewUserRepository(database.DB)

	user, err := users.GetUserByEmail(ctx, *email)
	if err != nil {
		fmt.Printf("❌ User not found: %s\n", *email)
		return
	}

	role := models.RoleAdmin
	if *revoke {
		role = models.RoleUser
	}
	if user.Role == role {
		fmt.Printf("⚠️  User %s already has role %s\n", user.Username, role)
		return
	}

	if _, err := users.SetRole(ctx, user.ID, role); err != nil {
		fmt.Printf("❌ Failed to update role: %v\n", err)
		return
	}

	if *revoke {
		fmt.Printf("✓ Admin privileges revoked for %s (%s)\n", user.Username, user.Email)
	} else {
		fmt.Printf("✓ Admin privileges granted to %s (%s)\n", user.Username, user.Email)
		fmt.Printf("  User ID: %s\n", user.ID)
	}
}
