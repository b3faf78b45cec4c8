package api

import (
	"mime"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/contextkeys"
	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/middleware"
	"github.com/platinummonkey/appr/pkg/sso"
)

// MsgLocalAuthDisabled is returned by /auth/login when local auth is off
const MsgLocalAuthDisabled = "Local authentication is disabled"

// LoginRequest carries local credentials
type LoginRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8"`
	TenantID *uuid.UUID `json:"tenant_id"`
}

// RefreshRequest carries a refresh token for rotation or revocation
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SAMLCallbackRequest is the ACS body posted by the IdP
type SAMLCallbackRequest struct {
	SAMLResponse string  `json:"SAMLResponse" validate:"required"`
	RelayState   *string `json:"RelayState"`
}

// AuthorizeResponse starts an OIDC authorization code flow
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// AuthHandlers serves the /auth routes
type AuthHandlers struct {
	auth   *auth.Service
	oidc   *sso.OIDCService
	saml   *sso.SAMLService
	cfg    *config.Config
	access access
}

// NewAuthHandlers creates new auth handlers. oidc and saml may be nil, in
// which case their routes answer 503.
func NewAuthHandlers(authService *auth.Service, oidc *sso.OIDCService, saml *sso.SAMLService, cfg *config.Config, a access) *AuthHandlers {
	if cfg == nil {
		cfg = &config.Config{}
		cfg.Auth.LocalEnabled = true
	}
	return &AuthHandlers{auth: authService, oidc: oidc, saml: saml, cfg: cfg, access: a}
}

// RegisterRoutes registers all auth routes
func (h *AuthHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	r.Handle("/auth/me", h.access.authenticated(h.Me)).Methods(http.MethodGet)

	// SSO
	r.HandleFunc("/auth/oidc/authorize", h.OIDCAuthorize).Methods(http.MethodGet)
	r.HandleFunc("/auth/oidc/callback", h.OIDCCallback).Methods(http.MethodGet)
	r.HandleFunc("/auth/saml/metadata", h.SAMLMetadata).Methods(http.MethodGet)
	r.HandleFunc("/auth/saml/acs", h.SAMLACS).Methods(http.MethodPost)
}

// Login handles POST /auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Auth.LocalEnabled {
		httputil.WriteProblem(w, r, apperrors.Forbidden(MsgLocalAuthDisabled))
		return
	}
	var req LoginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	tokens, err := h.auth.Login(r.Context(), req.Email, req.Password, req.TenantID)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, tokens)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout. Unknown tokens are ignored.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Me handles GET /auth/me
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteData(w, principal(r))
}

// OIDCAuthorize handles GET /auth/oidc/authorize?redirect_uri=
func (h *AuthHandlers) OIDCAuthorize(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		httputil.WriteProblem(w, r, apperrors.Unavailable(sso.MsgSSODisabled))
		return
	}
	redirectURI, err := requiredQuery(r, "redirect_uri")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	state := sso.NewState()
	url, err := h.oidc.AuthorizationURL(r.Context(), state, redirectURI)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, AuthorizeResponse{AuthorizationURL: url, State: state})
}

// OIDCCallback handles GET /auth/oidc/callback?code=&state=&redirect_uri=
func (h *AuthHandlers) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		httputil.WriteProblem(w, r, apperrors.Unavailable(sso.MsgSSODisabled))
		return
	}
	var missing []apperrors.FieldError
	query := map[string]string{}
	for _, key := range []string{"code", "state", "redirect_uri"} {
		v, err := requiredQuery(r, key)
		if err != nil {
			missing = append(missing, missingQuery(key))
			continue
		}
		query[key] = v
	}
	if len(missing) > 0 {
		httputil.WriteProblem(w, r, apperrors.Validation(missing...))
		return
	}

	tokens, err := h.oidc.ExchangeCode(r.Context(), query["code"], query["state"], query["redirect_uri"], h.callbackTenant(r))
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, tokens)
}

// SAMLMetadata handles GET /auth/saml/metadata
func (h *AuthHandlers) SAMLMetadata(w http.ResponseWriter, r *http.Request) {
	if h.saml == nil {
		httputil.WriteProblem(w, r, apperrors.Unavailable(sso.MsgSAMLNotConfigured))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.saml.Metadata())
}

// SAMLACS handles POST /auth/saml/acs. IdPs post a form; JSON bodies are
// accepted as well.
func (h *AuthHandlers) SAMLACS(w http.ResponseWriter, r *http.Request) {
	if h.saml == nil {
		httputil.WriteProblem(w, r, apperrors.Unavailable(sso.MsgSAMLNotConfigured))
		return
	}

	var req SAMLCallbackRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			httputil.WriteProblem(w, r, apperrors.BadRequest("Invalid form body"))
			return
		}
		req.SAMLResponse = r.PostForm.Get("SAMLResponse")
		if err := httputil.Validate(&req); err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}
	} else if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	tokens, err := h.saml.ConsumeAssertion(r.Context(), req.SAMLResponse, h.callbackTenant(r))
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, tokens)
}

// callbackTenant is the tenant bound to the request, or the configured
// default tenant
func (h *AuthHandlers) callbackTenant(r *http.Request) uuid.UUID {
	if tenantID, ok := contextkeys.GetTenantID(r.Context()); ok {
		return tenantID
	}
	return h.cfg.App.DefaultTenantID
}

// principal returns the user stored by the Authenticator. Handlers behind
// access.require always have one.
func principal(r *http.Request) *auth.User {
	user, _ := middleware.CurrentUser(r.Context())
	return user
}

func requiredQuery(r *http.Request, key string) (string, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return "", apperrors.Validation(missingQuery(key))
	}
	return v, nil
}

func missingQuery(key string) apperrors.FieldError {
	return apperrors.FieldError{Loc: []string{"query", key}, Msg: "Field required", Type: "missing"}
}
