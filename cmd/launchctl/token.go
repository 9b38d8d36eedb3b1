package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/motheroflaunch/backend/internal/middleware"
	"github.com/spf13/cobra"
)

var (
	tokenEmail   string
	tokenName    string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local development",
	Long: `Mint an HS256 bearer token signed with AUTH_JWT_SECRET. The server
provisions a user for the token's subject on first use, so this is enough to
exercise the API without the auth provider.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IsProduction() {
			return errors.New("refusing to mint tokens in production")
		}
		raw, err := mintToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tokenSubject, tokenEmail, tokenName, tokenTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(raw)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim (required)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "Display name claim")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Subject claim (defaults to a random UUID)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("email")
}

func mintToken(secret, issuer, subject, email, name string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("AUTH_JWT_SECRET is not set")
	}
	if email == "" {
		return "", errors.New("email is required")
	}
	if subject == "" {
		subject = "dev|" + uuid.NewString()
	}

	claims := middleware.Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
