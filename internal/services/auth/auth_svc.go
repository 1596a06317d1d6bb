package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	bcryptCost = 10
)

var (
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims are the JWT claims carried by every issued token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type IAuthService interface {
	Signup(ctx context.Context, username, password, role string) (string, error)
	Signin(ctx context.Context, username, password string) (string, error)
	// VerifyToken maps an opaque bearer token to an identity. This is
	// the identity-verifier contract consumed by the session engine.
	VerifyToken(token string) (*Claims, error)
}

type authService struct {
	db       *sql.DB
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(db *sql.DB, secret string, tokenTTL time.Duration) IAuthService {
	return &authService{
		db:       db,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// Signup creates a user with a bcrypt-hashed password and returns the
// new user id. Role defaults to "user".
func (svc *authService) Signup(ctx context.Context, username, password, role string) (string, error) {
	username = strings.TrimSpace(username)
	if role != RoleAdmin {
		role = RoleUser
	}

	var exists bool
	err := svc.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	_, err = svc.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role)
		      VALUES ($1, $2, $3, $4)`,
		id, username, string(hash), role)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Signin validates credentials and issues an HS256 token.
func (svc *authService) Signin(ctx context.Context, username, password string) (string, error) {
	var (
		id, hash, role string
	)
	err := svc.db.QueryRowContext(ctx,
		`SELECT id, password_hash, role FROM users WHERE username = $1`,
		strings.TrimSpace(username)).Scan(&id, &hash, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		UserID: id,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(svc.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(svc.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (svc *authService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return svc.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
