package mallHandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thriftmall/internal/adapters/in/http/middleware"
	"thriftmall/internal/adapters/out/memory"
	usecase "thriftmall/internal/application/usecase"
	cartdom "thriftmall/internal/domain/cart"
)

func newCartHandler(t *testing.T) (http.Handler, *memory.CartRepository) {
	t.Helper()
	repo := memory.NewCartRepository()
	return NewCartHandler(usecase.NewCartUsecase(repo, nil)), repo
}

func authed(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(middleware.WithUID(r.Context(), "user-123456"))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestCartHandler_GetAbsentCartIsEmpty(t *testing.T) {
	h, _ := newCartHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/mall/me/cart", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var got cartResponse
	decode(t, rec, &got)
	assert.Empty(t, got.Cart)
}

func TestCartHandler_RequiresUser(t *testing.T) {
	h, _ := newCartHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mall/me/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartHandler_MergePersistsAndClearsLocal(t *testing.T) {
	h, repo := newCartHandler(t)
	require.NoError(t, repo.Save(t.Context(), "user-123456", cartdom.Cart{
		"v1": {VendorName: "Thrift Corner", Products: map[string]cartdom.LineItem{
			"v1-p1-M-Red": {ID: "p1", Quantity: 1, SelectedSize: "M", SelectedColor: "Red"},
		}},
	}))

	body := `{"cart":{"v1":{"vendorName":"Thrift Corner","products":{
		"v1-p1-M-Red":{"id":"p1","quantity":2,"selectedSize":"M","selectedColor":"Red","imageUrl":"x"},
		"broken":{"name":"no id","quantity":1}}}}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPost, "/mall/me/cart/merge", body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got usecase.MergeOutcome
	decode(t, rec, &got)
	assert.True(t, got.ClearLocal)
	assert.Equal(t, 3, got.Merged["v1"].Products["v1-p1-M-Red"].Quantity)
	require.Len(t, got.Conflicts, 1)
	assert.Equal(t, cartdom.ConflictQuantitySummed, got.Conflicts[0].How)
	require.Len(t, got.Dropped, 1)

	stored, err := repo.GetByUserID(t.Context(), "user-123456")
	require.NoError(t, err)
	assert.Equal(t, 3, stored["v1"].Products["v1-p1-M-Red"].Quantity)
}

func TestCartHandler_MergeSaveFailureKeepsLocal(t *testing.T) {
	h, repo := newCartHandler(t)
	repo.Fail = func(op string) error {
		if op == "save" {
			return errors.New("deadline exceeded")
		}
		return nil
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPost, "/mall/me/cart/merge",
		`{"cart":{"v1":{"products":{"k":{"productId":"p1","quantity":1}}}}}`))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var got map[string]any
	decode(t, rec, &got)
	assert.Equal(t, false, got["clearLocal"])
	assert.NotContains(t, rec.Body.String(), "deadline exceeded")
}

func TestCartHandler_ItemLifecycle(t *testing.T) {
	h, repo := newCartHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPost, "/mall/me/cart/items",
		`{"vendorId":"v1","vendorName":"Thrift Corner","item":{"productId":"p1","name":"Blazer","quantity":1,"selectedSize":"M"}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var added cartResponse
	decode(t, rec, &added)
	assert.Equal(t, "v1-p1-M", added.Key)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPut, "/mall/me/cart/items", `{"vendorId":"v1","key":"v1-p1-M","quantity":4}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, _ := repo.GetByUserID(t.Context(), "user-123456")
	assert.Equal(t, 4, stored["v1"].Products["v1-p1-M"].Quantity)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPut, "/mall/me/cart/items", `{"vendorId":"v1","key":"missing","quantity":4}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodDelete, "/mall/me/cart/items?vendorId=v1&key=v1-p1-M", ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, _ = repo.GetByUserID(t.Context(), "user-123456")
	assert.Empty(t, stored)
}

func TestCartHandler_AddItemValidation(t *testing.T) {
	h, _ := newCartHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPost, "/mall/me/cart/items", `{"vendorId":"v1","item":{"name":"no id"}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPost, "/mall/me/cart/items", `{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHandler_ReplaceAndClear(t *testing.T) {
	h, repo := newCartHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPut, "/mall/me/cart",
		`{"cart":{"v1":{"vendorName":"Thrift Corner","products":{"a":{"productId":"p1","quantity":0},"bad":{"name":"x"}}}}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got cartResponse
	decode(t, rec, &got)
	assert.Equal(t, 1, got.Cart["v1"].Products["a"].Quantity)
	assert.Len(t, got.Dropped, 1)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodDelete, "/mall/me/cart", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := repo.GetByUserID(t.Context(), "user-123456")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestCartHandler_LoadFailureIs503(t *testing.T) {
	h, repo := newCartHandler(t)
	repo.Fail = func(string) error { return errors.New("unavailable") }

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/mall/me/cart", ""))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please retry later")
}

func TestCartHandler_RoutingFallbacks(t *testing.T) {
	h, _ := newCartHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPatch, "/mall/me/cart", ""))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/mall/me/cart/unknown", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
