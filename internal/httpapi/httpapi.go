package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/lock"
	"salonledger/backend/internal/service"
	"salonledger/backend/internal/store"
)

const (
	authCookie       = "auth-token"
	legacyAuthCookie = "token"
	maxBodyBytes     = 1 << 20
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	log           *zap.Logger
	allowedOrigin string
	secureCookies bool
	signInLimiter *attemptLimiter
	signUpLimiter *attemptLimiter
	csrfSecret    []byte
}

type Options struct {
	AllowedOrigin string
	SecureCookies bool
}

func New(svc *service.Service, auth *AuthManager, log *zap.Logger, opts Options) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		log:           log.Named("http"),
		allowedOrigin: opts.AllowedOrigin,
		secureCookies: opts.SecureCookies,
		signInLimiter: newAttemptLimiter(5, time.Minute),
		signUpLimiter: newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts tokens from the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(a.withSecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", a.handleSignUp)
			r.Get("/verify", a.handleVerify)
			r.Post("/signin", a.handleSignIn)
			r.Get("/csrf-token", a.handleCSRFToken)
			r.With(a.requireAuth).Post("/signout", a.handleSignOut)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Route("/packages", func(r chi.Router) {
				r.Get("/", a.handleListPackages)
				r.Post("/", a.handleCreatePackage)
				r.Put("/{id}", a.handleUpdatePackage)
				r.Delete("/{id}", a.handleDeletePackage)
			})

			r.Route("/bills", func(r chi.Router) {
				r.Get("/", a.handleListBills)
				r.Post("/", a.handleCreateBill)
				r.Get("/{id}", a.handleGetBill)
				r.Put("/{id}", a.handleUpdateBill)
				r.Delete("/{id}", a.handleDeleteBill)
				r.Get("/{id}/share", a.handleShareBill)
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", a.handleListInventory)
				r.Post("/", a.handleCreateInventory)
				r.Put("/{id}", a.handleUpdateInventory)
				r.Delete("/{id}", a.handleDeleteInventory)
			})

			r.Get("/dashboard/analytics", a.handleDashboard)
			r.Get("/reports/expenses", a.handleExpenseReport)
		})
	})

	return r
}

// requireAuth resolves the caller from the bearer header, falling back to
// the session cookie. Cookie sessions must also present a CSRF token on
// mutating requests.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := tokenFromRequest(r)
		if token == "" {
			a.writeError(w, http.StatusUnauthorized, ErrUnauthenticated)
			return
		}
		actor, err := a.auth.VerifyToken(r.Context(), token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, ErrUnauthenticated)
			return
		}
		if fromCookie && isMutating(r.Method) && !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
			a.writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func tokenFromRequest(r *http.Request) (string, bool) {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		if token := strings.TrimSpace(authorization[len("Bearer "):]); token != "" {
			return token, false
		}
	}
	for _, name := range []string{authCookie, legacyAuthCookie} {
		if cookie, err := r.Cookie(name); err == nil && strings.TrimSpace(cookie.Value) != "" {
			return strings.TrimSpace(cookie.Value), true
		}
	}
	return "", false
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := service.ActorFromContext(r.Context())
	return actor
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if !a.signUpLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many sign up attempts"))
		return
	}
	var req domain.SignUpRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, _, err := a.auth.SignUp(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Verify(r.Context(), r.URL.Query().Get("token")); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "email verified, you can sign in now"})
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if !a.signInLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many sign in attempts"))
		return
	}
	var req domain.SignInRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, err := a.auth.SignIn(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	expiresAt, _ := time.Parse(time.RFC3339, resp.ExpiresAt)
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    resp.Token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.SignOut(r.Context(), actorFrom(r)); err != nil {
		a.fail(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "signed out"})
}

func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrfToken": a.generateCSRFToken()})
}

func (a *API) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := a.service.ListPackages(r.Context(), actorFrom(r).UserID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (a *API) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req domain.PackageRequest
	if !a.decode(w, r, &req) {
		return
	}
	pkg, err := a.service.CreatePackage(r.Context(), actorFrom(r).UserID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Package created successfully",
		"id":      pkg.ID,
		"package": pkg,
	})
}

func (a *API) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	var req domain.PackageRequest
	if !a.decode(w, r, &req) {
		return
	}
	pkg, err := a.service.UpdatePackage(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Package updated successfully",
		"package": pkg,
	})
}

func (a *API) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeletePackage(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Package deleted successfully"})
}

func (a *API) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := a.service.ListBills(r.Context(), actorFrom(r).UserID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (a *API) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req domain.BillRequest
	if !a.decode(w, r, &req) {
		return
	}
	bill, err := a.service.CreateBill(r.Context(), actorFrom(r).UserID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.BillResponse{
		Message: "Bill created successfully",
		BillID:  bill.ID,
		Bill:    bill,
	})
}

func (a *API) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.service.GetBill(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
}

func (a *API) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var req domain.BillRequest
	if !a.decode(w, r, &req) {
		return
	}
	bill, err := a.service.UpdateBill(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.BillResponse{
		Message: "Bill updated successfully",
		BillID:  bill.ID,
		Bill:    bill,
	})
}

func (a *API) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteBill(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Bill deleted successfully"})
}

func (a *API) handleShareBill(w http.ResponseWriter, r *http.Request) {
	link, err := a.service.ShareBill(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (a *API) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListInventory(r.Context(), actorFrom(r).UserID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory": items})
}

func (a *API) handleCreateInventory(w http.ResponseWriter, r *http.Request) {
	var req domain.InventoryRequest
	if !a.decode(w, r, &req) {
		return
	}
	item, err := a.service.CreateInventoryItem(r.Context(), actorFrom(r).UserID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Inventory item added successfully",
		"id":      item.ID,
		"item":    item,
	})
}

func (a *API) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	var req domain.InventoryRequest
	if !a.decode(w, r, &req) {
		return
	}
	item, err := a.service.UpdateInventoryItem(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Inventory item updated successfully",
		"item":    item,
	})
}

func (a *API) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteInventoryItem(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Inventory item deleted successfully"})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	analytics, err := a.service.DashboardAnalytics(r.Context(), actorFrom(r).UserID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (a *API) handleExpenseReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := a.service.ExpenseReport(r.Context(), actorFrom(r).UserID, domain.ExpenseQuery{
		Period:    query.Get("period"),
		StartDate: query.Get("startDate"),
		EndDate:   query.Get("endDate"),
	})
	if err != nil {
		a.fail(w, err)
		return
	}

	filename := "expense-report-" + report.Period
	switch strings.ToLower(strings.TrimSpace(query.Get("format"))) {
	case "", "json":
		writeJSON(w, http.StatusOK, report)
	case "csv":
		body, err := expenseReportToCSV(*report, a.service.Location())
		if err != nil {
			a.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".csv"))
		_, _ = w.Write(body)
	case "xlsx":
		book, err := expenseReportToXLSX(*report, a.service.Location())
		if err != nil {
			a.fail(w, err)
			return
		}
		defer book.Close()
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".xlsx"))
		if err := book.Write(w); err != nil {
			a.log.Error("write xlsx export", zap.Error(err))
		}
	default:
		a.writeError(w, http.StatusBadRequest, errors.New("format must be one of: json, csv, xlsx"))
	}
}

func (a *API) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if isMutating(r.Method) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var maxErr *http.MaxBytesError
	if err := decoder.Decode(dest); err != nil {
		if errors.As(err, &maxErr) {
			return fmt.Errorf("body exceeds %d bytes", maxErr.Limit)
		}
		return err
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnverified):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrBillLocked):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrConflict), errors.Is(err, lock.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	a.writeError(w, statusFor(err), err)
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		a.log.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
