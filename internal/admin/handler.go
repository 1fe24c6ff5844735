package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/contactdesk/internal/auth"
	"github.com/2beens/contactdesk/internal/store"
	"github.com/2beens/contactdesk/internal/telemetry/metrics"
	"github.com/2beens/contactdesk/internal/telemetry/tracing"
	"github.com/2beens/contactdesk/internal/views"
	"github.com/2beens/contactdesk/pkg"
)

const (
	LoginPath     = "/admin/login"
	LogoutPath    = "/admin/logout"
	DashboardPath = "/admin"

	msgMissingCredentials = "Missing credentials"
	msgInvalidCredentials = "Invalid credentials"
	msgServerError        = "Server error"
)

var ErrMissingCredentials = errors.New("missing credentials")

type messagesLister interface {
	ListContactMessages(ctx context.Context) ([]*store.ContactMessage, error)
}

type Handler struct {
	authService    *auth.Service
	cookieCodec    *auth.CookieCodec
	messages       messagesLister
	renderer       *views.Renderer
	metricsManager *metrics.Manager
	storeTimeout   time.Duration
}

func NewHandler(
	authService *auth.Service,
	cookieCodec *auth.CookieCodec,
	messages messagesLister,
	renderer *views.Renderer,
	metricsManager *metrics.Manager,
	storeTimeout time.Duration,
) *Handler {
	return &Handler{
		authService:    authService,
		cookieCodec:    cookieCodec,
		messages:       messages,
		renderer:       renderer,
		metricsManager: metricsManager,
		storeTimeout:   storeTimeout,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	authGate func(next http.Handler) http.Handler,
) {
	mainRouter.HandleFunc(LoginPath, handler.handleLoginPage).Methods("GET").Name("login-page")
	mainRouter.HandleFunc(LoginPath, handler.handleLogin).Methods("POST").Name("login")
	mainRouter.HandleFunc(LogoutPath, handler.handleLogout).Methods("GET").Name("logout")
	mainRouter.Handle(DashboardPath, authGate(http.HandlerFunc(handler.handleDashboard))).Methods("GET").Name("dashboard")
}

func (handler *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.loginPage")
	defer span.End()

	handler.renderLogin(w, http.StatusOK, views.LoginPage{})
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.login")
	defer span.End()

	params, err := pkg.ReadParams(r, "username", "password")
	if err != nil {
		log.Errorf("login, read params: %s", err)
		handler.loginAttempt(metrics.LoginResultMissing)
		span.SetStatus(codes.Error, "read-params")
		handler.renderLogin(w, http.StatusBadRequest, views.LoginPage{Error: msgMissingCredentials})
		return
	}

	username, password := params["username"], params["password"]
	if err := checkCredentialsPresent(username, password); err != nil {
		handler.loginAttempt(metrics.LoginResultMissing)
		span.SetStatus(codes.Error, err.Error())
		handler.renderLogin(w, http.StatusBadRequest, views.LoginPage{Error: msgMissingCredentials})
		return
	}

	span.SetAttributes(attribute.String("admin.username", username))

	storeCtx, cancel := context.WithTimeout(ctx, handler.storeTimeout)
	defer cancel()

	sessionID, admin, err := handler.authService.Login(storeCtx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.Tracef("failed login attempt for user: %s", username)
			handler.loginAttempt(metrics.LoginResultInvalid)
			span.SetStatus(codes.Error, "invalid-credentials")
			handler.renderLogin(w, http.StatusUnauthorized, views.LoginPage{
				Error:    msgInvalidCredentials,
				Username: username,
			})
			return
		}

		log.Errorf("login failed for user %s: %s", username, err)
		handler.loginAttempt(metrics.LoginResultError)
		span.SetStatus(codes.Error, "login-error")
		span.RecordError(err)
		handler.renderLogin(w, http.StatusInternalServerError, views.LoginPage{Error: msgServerError})
		return
	}

	// a session the client came in with is replaced, not reused
	if oldSessionID, err := handler.cookieCodec.SessionID(r); err == nil {
		if err := handler.authService.Logout(storeCtx, oldSessionID); err != nil {
			log.Warnf("login, destroy previous session: %s", err)
		}
	}

	if err := handler.cookieCodec.SetCookie(w, sessionID); err != nil {
		log.Errorf("login, set session cookie: %s", err)
		handler.loginAttempt(metrics.LoginResultError)
		span.SetStatus(codes.Error, "set-cookie")
		handler.renderLogin(w, http.StatusInternalServerError, views.LoginPage{Error: msgServerError})
		return
	}

	log.Debugf("admin [%s] logged in", admin.Username)
	handler.loginAttempt(metrics.LoginResultSuccess)
	span.SetStatus(codes.Ok, "ok")
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.logout")
	defer span.End()

	if sessionID, err := handler.cookieCodec.SessionID(r); err == nil {
		storeCtx, cancel := context.WithTimeout(ctx, handler.storeTimeout)
		defer cancel()

		if err := handler.authService.Logout(storeCtx, sessionID); err != nil {
			log.Errorf("logout, destroy session: %s", err)
			span.RecordError(err)
		}
	}

	handler.cookieCodec.ClearCookie(w)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (handler *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "adminHandler.dashboard")
	defer span.End()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, handler.storeTimeout)
	defer cancel()

	messages, err := handler.messages.ListContactMessages(storeCtx)
	if err != nil {
		log.Errorf("dashboard, list contact messages: %s", err)
		span.SetStatus(codes.Error, "list-messages")
		span.RecordError(err)
		pkg.WriteResponse(w, pkg.ContentType.Text, msgServerError, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Int("messages.count", len(messages)))

	if err := handler.renderer.RenderDashboard(w, http.StatusOK, views.DashboardPage{
		Username: identity.Username,
		Messages: messages,
	}); err != nil {
		log.Errorf("dashboard, render: %s", err)
		pkg.WriteResponse(w, pkg.ContentType.Text, msgServerError, http.StatusInternalServerError)
	}
}

func (handler *Handler) renderLogin(w http.ResponseWriter, statusCode int, page views.LoginPage) {
	if err := handler.renderer.RenderLogin(w, statusCode, page); err != nil {
		log.Errorf("render login page: %s", err)
		pkg.WriteResponse(w, pkg.ContentType.Text, msgServerError, http.StatusInternalServerError)
	}
}

func (handler *Handler) loginAttempt(result string) {
	if handler.metricsManager != nil {
		handler.metricsManager.CounterLoginAttempts.WithLabelValues(result).Inc()
	}
}

func checkCredentialsPresent(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	return nil
}
