// Package auth derives access tokens from credentials and resolves the caller
// of protected endpoints from the raw Authorization header.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

type userKeeper interface {
	GetUserByToken(ctx context.Context, token string) (*user.User, error)
}

// Auth signs tokens and guards the per-user routes.
type Auth struct {
	db userKeeper

	// signingSecretKey signs tokens and keys the password digest inside them.
	signingSecretKey []byte
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserKey is the context key holding the authenticated *user.User.
const UserKey ContextKey = "user"

const unauthorizedMessage = "Unauthorized access"

// New creates an Auth over the given user lookup and signing secret.
func New(db userKeeper, signingSecretKey []byte) *Auth {
	return &Auth{
		db:               db,
		signingSecretKey: signingSecretKey,
	}
}

// Token derives the access token of a credentials pair. The result depends
// only on the email, the password and the secret, so signing up and logging
// in with the same credentials always yield the same token. The raw password
// never enters the claims, only its keyed digest does.
//
// Tokens carry no expiry and cannot be revoked.
func (a *Auth) Token(email, password string) (string, error) {
	claims := jwt.MapClaims{
		"email": email,
		"pwd":   a.passwordDigest(password),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(a.signingSecretKey)
	if err != nil {
		return "", fmt.Errorf("in internal/auth/auth.go: error while `token.SignedString()` calling: %w", err)
	}

	return tokenString, nil
}

func (a *Auth) passwordDigest(password string) string {
	mac := hmac.New(sha256.New, a.signingSecretKey)
	mac.Write([]byte(password))

	return hex.EncodeToString(mac.Sum(nil))
}

// HashPassword is the method form of the package-level HashPassword.
func (a *Auth) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

// CheckPassword is the method form of the package-level CheckPassword.
func (a *Auth) CheckPassword(hash, password string) error {
	return CheckPassword(hash, password)
}

// HashPassword returns the bcrypt hash stored with a new account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword reports models.ErrWrongPassword when password does not match hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return models.ErrWrongPassword
	}

	return err
}

// UserByToken resolves the owner of token by exact match on the stored
// token. The token is opaque here: it is not parsed, so tokens issued under
// an earlier signing secret keep working. Unknown and empty tokens yield
// models.ErrUserNotFound.
func (a *Auth) UserByToken(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, models.ErrUserNotFound
	}

	return a.db.GetUserByToken(ctx, token)
}

// AuthenticateUser is the gate in front of every per-user route. The raw
// Authorization header must equal a stored token; otherwise the request is
// answered with 403 before reaching h.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		usr, err := a.UserByToken(request.Context(), request.Header.Get("Authorization"))
		if errors.Is(err, models.ErrUserNotFound) {
			writeMessage(response, http.StatusForbidden, unauthorizedMessage)
			return
		}
		if err != nil {
			logger.Log.Errorln("Error calling the `a.UserByToken()`: ", zap.Error(err))
			writeMessage(response, http.StatusInternalServerError, "Unable to authorize, please try later!")
			return
		}

		ctx := context.WithValue(request.Context(), UserKey, usr)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// UserFromContext returns the user stored by AuthenticateUser.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	usr, ok := ctx.Value(UserKey).(*user.User)
	return usr, ok && usr != nil
}

func writeMessage(response http.ResponseWriter, status int, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	err := json.NewEncoder(response).Encode(models.MessageResponse{Message: message})
	if err != nil {
		logger.Log.Debugln("Error encoding the auth response: ", zap.Error(err))
	}
}
