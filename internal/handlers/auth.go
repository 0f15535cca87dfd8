package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lionswap/accounts/config"
	"github.com/lionswap/accounts/internal/services"
	"github.com/lionswap/accounts/internal/session"
	"github.com/lionswap/accounts/internal/store"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultTokenTTL   = 24 * time.Hour
	sessionCookieName = "session_id"
	stateCookieName   = "oauth_state"
	stateCookieTTL    = 10 * time.Minute

	userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// AuthHandler provides Google OAuth2 sign-in, session and JWT
// endpoints. Sessions may be nil, in which case only bearer tokens
// authenticate requests.
type AuthHandler struct {
	accountService *services.AccountService
	sessions       session.Store
	oauthCfg       *oauth2.Config
	userinfoURL    string
	frontendURL    string
	secret         []byte
	tokenTTL       time.Duration
	secureCookies  bool
	logger         *zap.Logger
}

func NewAuthHandler(
	accountService *services.AccountService,
	sessions session.Store,
	cfg config.OAuthConfig,
	frontendURL string,
	jwtSecret string,
	logger *zap.Logger,
) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		accountService: accountService,
		sessions:       sessions,
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL:   userinfoEndpoint,
		frontendURL:   frontendURL,
		secret:        []byte(jwtSecret),
		tokenTTL:      defaultTokenTTL,
		secureCookies: strings.HasPrefix(cfg.RedirectURL, "https://"),
		logger:        logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(
	r chi.Router,
	accountService *services.AccountService,
	sessions session.Store,
	cfg config.OAuthConfig,
	frontendURL string,
	jwtSecret string,
	logger *zap.Logger,
) {
	handler := NewAuthHandler(accountService, sessions, cfg, frontendURL, jwtSecret, logger)

	r.Get("/google/login", handler.GoogleLogin)
	r.Get("/google/callback", handler.GoogleCallback)
	r.Get("/me", handler.Me)
	r.Post("/verify", handler.VerifyToken)
	r.Post("/logout", handler.Logout)
}

// GoogleLogin starts the OAuth2 authorization code flow. The state
// parameter is round-tripped via a short-lived cookie.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauthCfg.ClientID == "" || h.oauthCfg.ClientSecret == "" {
		writeError(w, http.StatusInternalServerError, "oauth2 configuration is incomplete")
		return
	}

	state := ksuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateCookieTTL.Seconds()),
	})

	http.Redirect(w, r, h.oauthCfg.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback finishes the code flow: exchange the code, fetch
// profile claims, resolve the account and establish a session.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "authorization code is required")
		return
	}

	token, err := h.oauthCfg.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth code exchange failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "authentication failed")
		return
	}

	claims, err := h.fetchClaims(r.Context(), token)
	if err != nil {
		h.logger.Warn("userinfo fetch failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "unable to retrieve user information")
		return
	}
	if claims.Sub == "" || claims.Email == "" {
		writeError(w, http.StatusBadRequest, "identity provider response is missing sub or email")
		return
	}

	account, err := h.accountService.GetOrCreateFromGoogle(r.Context(), claims)
	if err != nil {
		h.logger.Error("sign-in account resolution failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve account")
		return
	}

	if h.sessions != nil {
		sessionID, err := h.sessions.Create(r.Context(), account.ID)
		if err != nil {
			h.logger.Error("session creation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(session.TTL.Seconds()),
		})
	}

	signed, err := issueToken(account.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	http.Redirect(w, r, h.frontendURL+"#token="+signed, http.StatusFound)
}

// Me returns the signed-in account, authenticated by bearer token or
// session cookie.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, err := h.accountService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// VerifyRequest is the token verification payload.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse reports whether a token is valid and for whom.
type VerifyResponse struct {
	Valid  bool  `json:"valid"`
	UserID int64 `json:"user_id,omitempty"`
}

// VerifyToken validates a first-party JWT locally.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	subject, err := parseTokenSubject(req.Token, h.secret)
	if err != nil {
		writeJSON(w, http.StatusOK, VerifyResponse{Valid: false})
		return
	}
	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, VerifyResponse{Valid: false})
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Valid: true, UserID: userID})
}

// Logout removes the server-side session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			_ = h.sessions.Delete(r.Context(), cookie.Value)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) authenticate(r *http.Request) (int64, bool) {
	if tokenString, err := bearerToken(r); err == nil {
		subject, err := parseTokenSubject(tokenString, h.secret)
		if err == nil {
			if userID, err := strconv.ParseInt(subject, 10, 64); err == nil && userID > 0 {
				return userID, true
			}
		}
	}

	if h.sessions != nil {
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			if userID, err := h.sessions.Get(r.Context(), cookie.Value); err == nil {
				return userID, true
			}
		}
	}

	return 0, false
}

func (h *AuthHandler) fetchClaims(ctx context.Context, token *oauth2.Token) (services.GoogleClaims, error) {
	client := h.oauthCfg.Client(ctx, token)
	resp, err := client.Get(h.userinfoURL)
	if err != nil {
		return services.GoogleClaims{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.GoogleClaims{}, errors.New("userinfo endpoint returned " + strconv.Itoa(resp.StatusCode))
	}

	var payload struct {
		Sub     string `json:"sub"`
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return services.GoogleClaims{}, err
	}

	sub := payload.Sub
	if sub == "" {
		sub = payload.ID
	}
	return services.GoogleClaims{
		Sub:     sub,
		Email:   payload.Email,
		Name:    payload.Name,
		Picture: payload.Picture,
	}, nil
}

func issueToken(userID int64, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
