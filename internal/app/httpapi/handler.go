package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/wishbank/wishbank/internal/app"
	"github.com/wishbank/wishbank/internal/app/domain/tier"
	"github.com/wishbank/wishbank/internal/app/domain/user"
	"github.com/wishbank/wishbank/internal/app/domain/wish"
	"github.com/wishbank/wishbank/internal/app/metrics"
	"github.com/wishbank/wishbank/internal/app/services/ledger"
	"github.com/wishbank/wishbank/internal/app/services/payments"
	"github.com/wishbank/wishbank/internal/app/services/wishes"
	"github.com/wishbank/wishbank/internal/httputil"
	"github.com/wishbank/wishbank/internal/middleware"
	"github.com/wishbank/wishbank/pkg/logger"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Stripe-Signature"

const healthTimeout = 2 * time.Second

// Options tunes the HTTP surface.
type Options struct {
	// WishLimiter throttles POST /wish. Nil disables throttling.
	WishLimiter *middleware.RateLimiter
	CORSOrigins []string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

type wishRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

type wishResponse struct {
	Wish   wish.Wish   `json:"wish"`
	Avatar tier.Avatar `json:"avatar"`
}

type paymentIntentRequest struct {
	BundleID string `json:"bundleId"`
	UserID   string `json:"userId"`
}

type userResponse struct {
	User   user.User   `json:"user"`
	Wishes []wish.Wish `json:"wishes"`
}

// NewHandler returns the public HTTP API.
func NewHandler(application *app.Application, opts Options, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	router := mux.NewRouter()
	router.Use(metrics.InstrumentHandler)

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/webhook", h.webhook).Methods(http.MethodPost)
	router.HandleFunc("/create-payment-intent", h.createPaymentIntent).Methods(http.MethodPost)
	router.HandleFunc("/bundles", h.bundles).Methods(http.MethodGet)
	router.HandleFunc("/user/{id}", h.user).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	var wishHandler http.Handler = http.HandlerFunc(h.submitWish)
	if opts.WishLimiter != nil {
		wishHandler = opts.WishLimiter.Handler(wishHandler)
	}
	router.Handle("/wish", wishHandler).Methods(http.MethodPost)

	var root http.Handler = router
	root = middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(root)
	root = middleware.NewTracingMiddleware(log).Handler(root)
	return root
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.app.Healthy(ctx); err != nil {
		h.log.WithError(err).WithField("trace_id", middleware.TraceIDFromContext(r.Context())).Warn("health check failed")
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := httputil.ReadBody(r, httputil.DefaultBodyLimit)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.app.Payments.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	switch {
	case errors.Is(err, payments.ErrInvalidSignature):
		httputil.WriteError(w, http.StatusBadRequest, "invalid signature")
		return
	case err != nil:
		h.internalError(w, r, err)
		return
	}

	h.log.WithField("event_id", res.EventID).
		WithField("event_type", res.EventType).
		WithField("outcome", res.Outcome).
		Info("webhook processed")
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req paymentIntentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	secret, err := h.app.Payments.CreatePaymentIntent(r.Context(), req.BundleID, req.UserID)
	switch {
	case errors.Is(err, payments.ErrUnknownBundle), errors.Is(err, payments.ErrUserRequired):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, payments.ErrProvider):
		httputil.WriteError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	case err != nil:
		h.internalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"clientSecret": secret})
}

func (h *handler) bundles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"bundles": h.app.Payments.Bundles()})
}

func (h *handler) submitWish(w http.ResponseWriter, r *http.Request) {
	var req wishRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, avatar, err := h.app.Wishes.Submit(r.Context(), req.UserID, req.Text)
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		httputil.WriteError(w, http.StatusPaymentRequired, "No credits")
		return
	case errors.Is(err, wishes.ErrUserRequired):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.internalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wishResponse{Wish: created, Avatar: avatar})
}

func (h *handler) user(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	u, err := h.app.Ledger.Balance(r.Context(), id)
	switch {
	case errors.Is(err, ledger.ErrUserNotFound):
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		h.internalError(w, r, err)
		return
	}

	list, err := h.app.Wishes.ListForUser(r.Context(), id)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, userResponse{User: u, Wishes: list})
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.WithError(err).
		WithField("trace_id", middleware.TraceIDFromContext(r.Context())).
		WithField("method", r.Method).
		WithField("path", r.URL.Path).
		Error("request failed")
	httputil.WriteError(w, http.StatusInternalServerError, "internal error")
}
