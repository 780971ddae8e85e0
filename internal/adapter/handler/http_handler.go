package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type HTTPHandler struct {
	auth     *service.AuthService
	sessions *service.SessionRegistry
	catalog  *service.CatalogService
	checkout *service.CheckoutService
	log      logrus.FieldLogger
}

func NewHTTPHandler(
	auth *service.AuthService,
	sessions *service.SessionRegistry,
	catalog *service.CatalogService,
	checkout *service.CheckoutService,
	log logrus.FieldLogger,
) *HTTPHandler {
	return &HTTPHandler{
		auth:     auth,
		sessions: sessions,
		catalog:  catalog,
		checkout: checkout,
		log:      log.WithField("component", "http"),
	}
}

// Router registers every route on a traced gorilla/mux router.
func (h *HTTPHandler) Router(serviceName string) http.Handler {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware(serviceName))

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", h.SignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", h.SignIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", h.SignOut).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.withSession(h.Me)).Methods(http.MethodGet)

	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)
	api.HandleFunc("/categories", h.Categories).Methods(http.MethodGet)

	api.HandleFunc("/cart", h.withSession(h.GetCart)).Methods(http.MethodGet)
	api.HandleFunc("/cart/items", h.withSession(h.AddToCart)).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}", h.withSession(h.UpdateCartItem)).Methods(http.MethodPatch)
	api.HandleFunc("/cart/items/{id}", h.withSession(h.RemoveCartItem)).Methods(http.MethodDelete)
	api.HandleFunc("/cart/refresh", h.withSession(h.RefreshCart)).Methods(http.MethodPost)

	api.HandleFunc("/checkout", h.withSession(h.Checkout)).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.withSession(h.ListOrders)).Methods(http.MethodGet)

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token, user, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sessions.Open(r.Context(), token, user)

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: newUserResponse(user)})
}

func (h *HTTPHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token, user, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sessions.Open(r.Context(), token, user)

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: newUserResponse(user)})
}

// SignOut always succeeds for a missing or unknown token.
func (h *HTTPHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.auth.SignOut(r.Context(), token); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.sessions.Close(r.Context(), token)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request, s *service.Session) {
	user := s.Auth.Current()
	if user == nil {
		h.writeError(w, r, service.ErrNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		return
	}

	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

type sessionHandlerFunc func(http.ResponseWriter, *http.Request, *service.Session)

// withSession resolves the bearer token to a live session before calling next.
func (h *HTTPHandler) withSession(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Acquire(r.Context(), bearerToken(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next(w, r, s)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// statusFor maps service and domain errors to an HTTP status and a client
// message. Unmapped errors are internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidQuantity):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest, "cart is empty"
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, domain.ErrCartItemNotFound):
		return http.StatusNotFound, "cart item not found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient stock"
	case errors.Is(err, domain.ErrStockConflict):
		return http.StatusConflict, "stock changed, retry"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).WithError(err).Error("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
