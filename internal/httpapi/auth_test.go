package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"salonledger/backend/internal/cache"
	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/service"
	"salonledger/backend/internal/store"
	"salonledger/backend/internal/store/memory"
)

func newTestAuth(t *testing.T) (*AuthManager, *memory.Store) {
	t.Helper()
	repo := memory.New()
	return NewAuthManager("test-secret-key-with-enough-length", time.Hour, repo, cache.NewMemoryRevocationList(), nil), repo
}

func TestSignUpValidatesInput(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, _, err := auth.SignUp(ctx, domain.SignUpRequest{Email: "not-an-email", Password: "long-enough"})
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad email, got %v", err)
	}
	_, _, err = auth.SignUp(ctx, domain.SignUpRequest{Email: "stylist@salon.test", Password: "short"})
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Fatalf("expected invalid input for short password, got %v", err)
	}

	if _, _, err := auth.SignUp(ctx, domain.SignUpRequest{Email: "Stylist@Salon.test", Password: "long-enough"}); err != nil {
		t.Fatalf("sign up failed: %v", err)
	}
	_, _, err = auth.SignUp(ctx, domain.SignUpRequest{Email: "stylist@salon.test", Password: "long-enough"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestSignUpVerifySignIn(t *testing.T) {
	auth, repo := newTestAuth(t)
	ctx := context.Background()
	creds := domain.SignInRequest{Email: "stylist@salon.test", Password: "long-enough"}

	resp, verifyToken, err := auth.SignUp(ctx, domain.SignUpRequest{Email: creds.Email, Password: creds.Password})
	if err != nil {
		t.Fatalf("sign up failed: %v", err)
	}
	stored, err := repo.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	if stored.Verified || !isPasswordHash(stored.PasswordHash) {
		t.Fatalf("expected an unverified user with a bcrypt hash")
	}

	if _, err := auth.SignIn(ctx, creds); !errors.Is(err, ErrUnverified) {
		t.Fatalf("expected unverified error, got %v", err)
	}
	if _, err := auth.VerifyToken(ctx, verifyToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("verification token must not authenticate requests, got %v", err)
	}
	if err := auth.Verify(ctx, verifyToken); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	signedIn, err := auth.SignIn(ctx, creds)
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	actor, err := auth.VerifyToken(ctx, signedIn.Token)
	if err != nil {
		t.Fatalf("verify token failed: %v", err)
	}
	if actor.UserID != resp.UserID || actor.Email != creds.Email || actor.TokenID == "" {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if err := auth.Verify(ctx, signedIn.Token); !errors.Is(err, service.ErrInvalidInput) {
		t.Fatalf("session token must not verify accounts, got %v", err)
	}
}

func TestSignInRejectsUnknownEmailAndBadPassword(t *testing.T) {
	auth, repo := newTestAuth(t)
	ctx := context.Background()
	addVerifiedUser(t, repo, "owner@salon.test", "owner-pass-123")

	if _, err := auth.SignIn(ctx, domain.SignInRequest{Email: "ghost@salon.test", Password: "whatever1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
	if _, err := auth.SignIn(ctx, domain.SignInRequest{Email: "owner@salon.test", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
}

func TestVerifyTokenFailsClosed(t *testing.T) {
	auth, repo := newTestAuth(t)
	ctx := context.Background()
	addVerifiedUser(t, repo, "owner@salon.test", "owner-pass-123")
	user, _ := repo.GetUserByEmail(ctx, "owner@salon.test")

	expired := *auth
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.sign(*user, purposeLogin, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}

	other := NewAuthManager("another-secret-key-with-enough-len", time.Hour, repo, nil, nil)
	foreignToken, err := other.sign(*user, purposeLogin, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign foreign token: %v", err)
	}

	noneToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Purpose: purposeLogin,
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	for name, token := range map[string]string{
		"empty":     "",
		"malformed": "not.a.jwt",
		"expired":   expiredToken,
		"foreign":   foreignToken,
		"alg none":  noneToken,
	} {
		if _, err := auth.VerifyToken(ctx, token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("%s token: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	auth, repo := newTestAuth(t)
	ctx := context.Background()
	addVerifiedUser(t, repo, "owner@salon.test", "owner-pass-123")

	signedIn, err := auth.SignIn(ctx, domain.SignInRequest{Email: "owner@salon.test", Password: "owner-pass-123"})
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	actor, err := auth.VerifyToken(ctx, signedIn.Token)
	if err != nil {
		t.Fatalf("verify token failed: %v", err)
	}
	if err := auth.SignOut(ctx, actor); err != nil {
		t.Fatalf("sign out failed: %v", err)
	}
	if _, err := auth.VerifyToken(ctx, signedIn.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	_, token, err := api.auth.SignUp(context.Background(), domain.SignUpRequest{Email: "fresh@salon.test", Password: "long-enough"})
	if err != nil {
		t.Fatalf("sign up failed: %v", err)
	}

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/auth/verify?token=garbage", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad verification token, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/auth/verify?token="+token, nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	signIn(t, handler, "fresh@salon.test", "long-enough")
}

func TestVerifyPasswordRequiresHash(t *testing.T) {
	hash := mustHashPassword(t, "owner-pass-123")
	if !verifyPassword(hash, "owner-pass-123") {
		t.Fatalf("expected matching password to verify")
	}
	if verifyPassword("owner-pass-123", "owner-pass-123") {
		t.Fatalf("plain text stored passwords must never verify")
	}
	if verifyPassword(hash, "  ") {
		t.Fatalf("blank input must never verify")
	}
}
