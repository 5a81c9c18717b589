package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"salonledger/backend/internal/cache"
	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/service"
	"salonledger/backend/internal/store"
)

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnverified         = errors.New("please verify your email first")
)

const (
	tokenIssuer   = "salonledger"
	purposeLogin  = "session"
	purposeVerify = "verify"
	verifyTTL     = 24 * time.Hour
	minPassword   = 8
)

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkUserVerified(ctx context.Context, userID string) error
}

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	revoked   cache.RevocationList
	validate  *validator.Validate
	log       *zap.Logger
	now       func() time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore, revoked cache.RevocationList, log *zap.Logger) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if revoked == nil {
		revoked = cache.NewMemoryRevocationList()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		revoked:   revoked,
		validate:  validator.New(),
		log:       log.Named("auth"),
		now:       time.Now,
	}
}

// SignUp registers an unverified account and returns its verification token.
func (a *AuthManager) SignUp(ctx context.Context, req domain.SignUpRequest) (domain.SignUpResponse, string, error) {
	email := normalizeEmail(req.Email)
	if a.validate.Var(email, "required,email") != nil {
		return domain.SignUpResponse{}, "", fmt.Errorf("%w: a valid email is required", service.ErrInvalidInput)
	}
	if len(req.Password) < minPassword {
		return domain.SignUpResponse{}, "", fmt.Errorf("%w: password must be at least %d characters", service.ErrInvalidInput, minPassword)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.SignUpResponse{}, "", err
	}
	user, err := a.userStore.CreateUser(ctx, domain.User{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    a.now().UTC(),
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.SignUpResponse{}, "", fmt.Errorf("%w: an account with this email exists", store.ErrConflict)
	}
	if err != nil {
		return domain.SignUpResponse{}, "", err
	}

	token, err := a.sign(*user, purposeVerify, a.now().UTC().Add(verifyTTL))
	if err != nil {
		return domain.SignUpResponse{}, "", err
	}
	a.log.Info("verification token issued",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("verify_path", "/api/auth/verify?token="+token),
	)
	return domain.SignUpResponse{
		UserID:  user.ID,
		Message: "account created, check your email to verify it",
	}, token, nil
}

func (a *AuthManager) Verify(ctx context.Context, token string) error {
	claims, err := a.parse(token, purposeVerify)
	if err != nil {
		return fmt.Errorf("%w: verification link is invalid or expired", service.ErrInvalidInput)
	}
	return a.userStore.MarkUserVerified(ctx, claims.Subject)
}

func (a *AuthManager) SignIn(ctx context.Context, req domain.SignInRequest) (domain.SignInResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return domain.SignInResponse{}, fmt.Errorf("%w: email and password are required", service.ErrInvalidInput)
	}
	user, err := a.userStore.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.SignInResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.SignInResponse{}, err
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return domain.SignInResponse{}, ErrInvalidCredentials
	}
	if !user.Verified {
		return domain.SignInResponse{}, ErrUnverified
	}

	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(*user, purposeLogin, expiresAt)
	if err != nil {
		return domain.SignInResponse{}, err
	}
	return domain.SignInResponse{
		Message:   "signed in",
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// VerifyToken resolves a session token to its caller. Every failure reads as
// ErrUnauthenticated.
func (a *AuthManager) VerifyToken(ctx context.Context, token string) (domain.Actor, error) {
	claims, err := a.parse(token, purposeLogin)
	if err != nil {
		return domain.Actor{}, err
	}
	revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		a.log.Warn("revocation lookup failed", zap.Error(err))
		return domain.Actor{}, ErrUnauthenticated
	}
	if revoked {
		return domain.Actor{}, ErrUnauthenticated
	}
	return domain.Actor{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (a *AuthManager) SignOut(ctx context.Context, actor domain.Actor) error {
	return a.revoked.Revoke(ctx, actor.TokenID, actor.ExpiresAt)
}

func (a *AuthManager) parse(token string, purpose string) (*sessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims := &sessionClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthenticated
	}
	if claims.Subject == "" || claims.Purpose != purpose {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

func (a *AuthManager) sign(user domain.User, purpose string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Email:   user.Email,
		Purpose: purpose,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
