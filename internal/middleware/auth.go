package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/models"
	"github.com/motheroflaunch/backend/internal/repository"
	"github.com/motheroflaunch/backend/internal/util"
	"go.uber.org/zap"
)

// Claims are the bearer token claims issued by the auth provider
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Authenticator verifies provider-issued HS256 tokens and resolves them to
// local users, provisioning an account on first sight of a subject
type Authenticator struct {
	secret []byte
	issuer string
	users  repository.UserRepository
}

// NewAuthenticator creates an authenticator. An empty issuer accepts any.
func NewAuthenticator(secret, issuer string, users repository.UserRepository) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, users: users}
}

// RequireAuth rejects requests without a valid bearer token
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.authenticate(c)
		if err != nil {
			util.RespondUnauthorized(c, err.Error())
			return
		}
		if user.IsBanned {
			util.RespondForbidden(c, "account is banned")
			return
		}
		util.SetUser(c, user)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and otherwise
// lets the request through anonymously
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if user, err := a.authenticate(c); err == nil && !user.IsBanned {
				util.SetUser(c, user)
			}
		}
		c.Next()
	}
}

var errMissingToken = errors.New("missing bearer token")

func (a *Authenticator) authenticate(c *gin.Context) (*models.User, error) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errMissingToken
	}

	claims, err := a.Parse(raw)
	if err != nil {
		return nil, errors.New("invalid token")
	}

	ctx := c.Request.Context()
	user, err := a.users.GetUserBySubject(ctx, claims.Subject)
	if errors.Is(err, repository.ErrUserNotFound) {
		user, err = a.provision(c, claims)
	}
	if err != nil {
		logger.Log.Error("Failed to resolve token user", zap.Error(err))
		return nil, errors.New("could not resolve user")
	}
	return user, nil
}

// Parse validates a raw token and returns its claims
func (a *Authenticator) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, errors.New("token lacks sub or email")
	}
	return claims, nil
}

func (a *Authenticator) provision(c *gin.Context, claims *Claims) (*models.User, error) {
	ctx := c.Request.Context()
	base := util.Slugify(strings.Split(claims.Email, "@")[0])
	base = strings.ReplaceAll(base, "-", "_")
	if len(base) < 3 {
		base = "user_" + base
	}
	if len(base) > 24 {
		base = base[:24]
	}

	username := base
	for i := 2; ; i++ {
		taken, err := a.users.UsernameTaken(ctx, username, "")
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		username = fmt.Sprintf("%s%d", base, i)
	}

	name := claims.Name
	if name == "" {
		name = username
	}
	user := &models.User{
		AuthSubject: claims.Subject,
		Email:       strings.ToLower(claims.Email),
		Username:    username,
		DisplayName: name,
		Role:        models.RoleUser,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		// A concurrent first request may have provisioned the subject already
		if database.IsUniqueViolation(err) {
			return a.users.GetUserBySubject(ctx, claims.Subject)
		}
		return nil, err
	}

	logger.Log.Info("Provisioned user from token",
		logger.WithUserID(user.ID),
		zap.String("username", user.Username),
	)
	return user, nil
}
