package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rl1809/storefront/internal/core/service"
)

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request, s *service.Session) {
	writeJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request, s *service.Session) {
	var req AddToCartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "product_id is required"})
		return
	}

	if err := s.Cart.AddToCart(r.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

// UpdateCartItem sets a quantity; zero or less removes the item.
func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request, s *service.Session) {
	var req UpdateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.Cart.UpdateQuantity(r.Context(), mux.Vars(r)["id"], req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request, s *service.Session) {
	if err := s.Cart.RemoveFromCart(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

func (h *HTTPHandler) RefreshCart(w http.ResponseWriter, r *http.Request, s *service.Session) {
	s.Cart.Refresh(r.Context())
	writeJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

// Checkout takes the request id from the body, falling back to the
// Idempotency-Key header.
func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request, s *service.Session) {
	var req CheckoutRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("Idempotency-Key")
	}

	order, err := h.checkout.Checkout(r.Context(), s, req.RequestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(*order))
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request, s *service.Session) {
	user := s.Auth.Current()
	if user == nil {
		h.writeError(w, r, service.ErrNotAuthenticated)
		return
	}

	orders, err := h.checkout.ListOrders(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

