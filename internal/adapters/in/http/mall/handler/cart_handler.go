// internal/adapters/in/http/mall/handler/cart_handler.go
package mallHandler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"thriftmall/internal/adapters/in/http/middleware"
	usecase "thriftmall/internal/application/usecase"
	cartdom "thriftmall/internal/domain/cart"
)

// CartHandler serves Mall cart endpoints for the signed-in user.
type CartHandler struct {
	uc *usecase.CartUsecase
}

func NewCartHandler(uc *usecase.CartUsecase) http.Handler {
	return &CartHandler{uc: uc}
}

func (h *CartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := strings.TrimRight(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}

	log.Printf("[mall_cart_handler] enter method=%s path=%q configured=%t\n", r.Method, path, h.uc != nil)

	if h.uc == nil {
		log.Printf("[mall_cart_handler] exit status=500 reason=cart handler uc is nil elapsed=%s\n", time.Since(start))
		writeErr(w, http.StatusInternalServerError, "cart handler is not configured")
		return
	}

	uid, ok := middleware.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	isCart := hasSuffixAny(path, "/mall/me/cart")
	isMerge := hasSuffixAny(path, "/mall/me/cart/merge")
	isItems := hasSuffixAny(path, "/mall/me/cart/items")

	switch {
	case isCart && r.Method == http.MethodGet:
		h.handleGet(w, r, uid, start)
	case isCart && r.Method == http.MethodPut:
		h.handleReplace(w, r, uid, start)
	case isCart && r.Method == http.MethodDelete:
		h.handleClear(w, r, uid, start)
	case isMerge && r.Method == http.MethodPost:
		h.handleMerge(w, r, uid, start)
	case isItems && r.Method == http.MethodPost:
		h.handleAddItem(w, r, uid, start)
	case isItems && r.Method == http.MethodPut:
		h.handleSetItemQty(w, r, uid, start)
	case isItems && r.Method == http.MethodDelete:
		h.handleRemoveItem(w, r, uid, start)
	case isCart || isMerge || isItems:
		methodNotAllowed(w)
	default:
		log.Printf("[mall_cart_handler] exit status=404 method=%s path=%q elapsed=%s\n", r.Method, path, time.Since(start))
		notFound(w)
	}
}

// -------------------------
// handlers
// -------------------------

func (h *CartHandler) handleGet(w http.ResponseWriter, r *http.Request, uid string, start time.Time) {
	c, err := h.uc.Get(r.Context(), uid)
	if err != nil {
		h.writeCartErr(w, "GET", uid, "load your cart", err)
		return
	}
	log.Printf("[mall_cart_handler] GET ok uid=%s vendors=%d elapsed=%s\n", maskUID(uid), len(c), time.Since(start))
	writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

func (h *CartHandler) handleReplace(w http.ResponseWriter, r *http.Request, uid string, start time.Time) {
	var req cartReq
	if err := readJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	c, dropped, err := h.uc.Replace(r.Context(), uid, req.Cart)
	if err != nil {
		h.writeCartErr(w, "PUT", uid, "save your cart", err)
		return
	}
	log.Printf("[mall_cart_handler] PUT ok uid=%s vendors=%d dropped=%d elapsed=%s\n", maskUID(uid), len(c), len(dropped), time.Since(start))
	writeJSON(w, http.StatusOK, cartResponse{Cart: c, Dropped: dropped})
}

func (h *CartHandler) handleMerge(w http.ResponseWriter, r *http.Request, uid string, start time.Time) {
	var req cartReq
	if err := readJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(w, "invalid json body")
		return
	}

	out, err := h.uc.FetchAndMerge(r.Context(), uid, req.Cart)
	if err != nil {
		if errors.Is(err, cartdom.ErrStoreUnavailable) {
			// 端末側のカートは消させない
			log.Printf("[mall_cart_handler] POST merge exit status=503 uid=%s err=%v\n", maskUID(uid), err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":      "store_unavailable",
				"message":    "Could not sync your cart right now. Please retry later.",
				"clearLocal": false,
			})
			return
		}
		h.writeCartErr(w, "POST merge", uid, "sync your cart", err)
		return
	}

	log.Printf("[mall_cart_handler] POST merge ok uid=%s conflicts=%d dropped=%d elapsed=%s\n",
		maskUID(uid), len(out.Conflicts), len(out.Dropped), time.Since(start))
	writeJSON(w, http.StatusOK, out)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request, uid string, start time.Time) {
	var req cartItemReq
	if err := readJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	vendorID := strings.TrimSpace(req.VendorID)
	if vendorID == "" || req.Item.ProductRef() == "" {
		badRequest(w, "vendorId and item.productId are required")
		return
	}

	c, key, err := h.uc.AddItem(r.Context(), uid, vendorID, req.VendorName, req.Item)
	if err != nil {
		h.writeCartErr(w, "POST add-item", uid, "save your cart", err)
		return
	}
	log.Printf("[mall_cart_handler] POST add-item ok uid=%s vendor=%s key=%q elapsed=%s\n", maskUID(uid), vendorID, key, time.Since(start))
	writeJSON(w, http.StatusOK, cartResponse{Cart: c, Key: key})
}

func (h *CartHandler) handleSetItemQty(w http.ResponseWriter, r *http.Request, uid string, start time.Time) {
	var req cartItemReq
	if err := readJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	vendorID, key := strings.TrimSpace(req.VendorID), strings.TrimSpace(req.Key)
	if vendorID == "" || key == "" {
		badRequest(w, "vendorId and key are required")
		return
	}

	c, err := h.uc.SetItemQty(r.Context(), uid, vendorID, key, req.Quantity)
	if err != nil {
		h.writeCartErr(w, "PUT set-qty", uid, "save your cart", err)
		return
	}
	log.Printf("[mall_cart_handler] PUT set-qty ok uid=%s vendor=%s key=%q qty=%d elapsed=%s\n", maskUID(uid), vendorID, key, req.Quantity, time.Since(start))
	writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request, uid string, start time.Time) {
	// query (?vendorId=&key=) を優先し、無ければ body を読む
	vendorID := strings.TrimSpace(r.URL.Query().Get("vendorId"))
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if vendorID == "" || key == "" {
		var req cartItemReq
		if err := readJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			badRequest(w, "invalid json body")
			return
		}
		vendorID, key = strings.TrimSpace(req.VendorID), strings.TrimSpace(req.Key)
	}
	if vendorID == "" || key == "" {
		badRequest(w, "vendorId and key are required")
		return
	}

	c, err := h.uc.RemoveItem(r.Context(), uid, vendorID, key)
	if err != nil {
		h.writeCartErr(w, "DELETE remove-item", uid, "save your cart", err)
		return
	}
	log.Printf("[mall_cart_handler] DELETE remove-item ok uid=%s vendor=%s key=%q elapsed=%s\n", maskUID(uid), vendorID, key, time.Since(start))
	writeJSON(w, http.StatusOK, cartResponse{Cart: c})
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request, uid string, start time.Time) {
	if err := h.uc.Clear(r.Context(), uid); err != nil {
		h.writeCartErr(w, "DELETE clear", uid, "clear your cart", err)
		return
	}
	log.Printf("[mall_cart_handler] DELETE clear ok uid=%s elapsed=%s\n", maskUID(uid), time.Since(start))
	writeJSON(w, http.StatusOK, cartResponse{Cart: cartdom.Cart{}})
}

func (h *CartHandler) writeCartErr(w http.ResponseWriter, op, uid, what string, err error) {
	log.Printf("[mall_cart_handler] %s uc error uid=%s err=%v\n", op, maskUID(uid), err)
	switch {
	case errors.Is(err, usecase.ErrCartInvalidArgument),
		errors.Is(err, cartdom.ErrInvalidCart),
		errors.Is(err, cartdom.ErrInvalidItem):
		badRequest(w, err.Error())
	case errors.Is(err, usecase.ErrCartNotFound):
		notFound(w)
	case errors.Is(err, cartdom.ErrStoreUnavailable):
		writeUnavailable(w, what)
	default:
		writeErr(w, http.StatusInternalServerError, "internal_server_error")
	}
}

// -------------------------
// DTO
// -------------------------

type cartReq struct {
	Cart cartdom.Cart `json:"cart"`
}

type cartItemReq struct {
	VendorID   string           `json:"vendorId"`
	VendorName string           `json:"vendorName"`
	Key        string           `json:"key"`
	Quantity   int              `json:"quantity"`
	Item       cartdom.LineItem `json:"item"`
}

type cartResponse struct {
	Cart    cartdom.Cart                `json:"cart"`
	Key     string                      `json:"key,omitempty"`
	Dropped []cartdom.MalformedLineItem `json:"dropped,omitempty"`
}
