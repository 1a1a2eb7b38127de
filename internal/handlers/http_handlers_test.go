package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"lotteryd/internal/notify"
	"lotteryd/internal/services"
	"lotteryd/internal/store"
)

const testAdminToken = "test-admin-token"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	service := services.NewLedgerService(st, notify.NewLogNotifier(), services.Policy{
		TicketPrice:         decimal.NewFromInt(1),
		MaxPurchaseQuantity: 100,
		CommissionRate:      decimal.RequireFromString("0.1"),
		CommissionThreshold: 2,
	})

	h := NewHTTPHandler(service, testAdminToken)
	r := gin.New()
	h.RegisterPublicRoutes(r)
	admin := r.Group("/admin")
	admin.Use(h.AdminMiddleware())
	h.RegisterAdminRoutes(admin)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminHeader() map[string]string {
	return map[string]string{"X-Admin-Token": testAdminToken}
}

func TestRegisterAndPurchaseFlow(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/participants",
		gin.H{"id": "u1", "displayName": "Alice"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("register: unexpected status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/participants/u1/purchases",
		gin.H{"quantity": 3}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("purchase: unexpected status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/participants/u1/purchases", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pending list: unexpected status %d", w.Code)
	}
	var pendingResp struct {
		Pending int `json:"pending"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &pendingResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if pendingResp.Pending != 3 {
		t.Errorf("unexpected pending count: got=%d want=3", pendingResp.Pending)
	}

	w = doJSON(t, r, http.MethodPost, "/admin/participants/u1/confirm", nil, adminHeader())
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: unexpected status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/participants/u1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get participant: unexpected status %d", w.Code)
	}
	var participant struct {
		TicketCount int `json:"ticketCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &participant); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if participant.TicketCount != 3 {
		t.Errorf("unexpected ticket count: got=%d want=3", participant.TicketCount)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	r := newTestRouter(t)

	t.Run("unknown participant is 404", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/participants/ghost", nil, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("unexpected status: got=%d want=404", w.Code)
		}
	})

	t.Run("invalid quantity is 400", func(t *testing.T) {
		doJSON(t, r, http.MethodPost, "/participants",
			gin.H{"id": "u1", "displayName": "Alice"}, nil)

		w := doJSON(t, r, http.MethodPost, "/participants/u1/purchases",
			gin.H{"quantity": 101}, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("unexpected status: got=%d want=400", w.Code)
		}
	})

	t.Run("nothing pending is 409", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/admin/participants/u1/confirm", nil, adminHeader())
		if w.Code != http.StatusConflict {
			t.Errorf("unexpected status: got=%d want=409", w.Code)
		}
	})

	t.Run("invalid address is 400", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPut, "/participants/u1/wallet",
			gin.H{"address": "nope"}, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("unexpected status: got=%d want=400", w.Code)
		}
	})

	t.Run("empty draw is 409", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/admin/draws/run", nil, adminHeader())
		if w.Code != http.StatusConflict {
			t.Errorf("unexpected status: got=%d want=409", w.Code)
		}
	})
}

func TestAdminMiddleware(t *testing.T) {
	r := newTestRouter(t)

	t.Run("missing token rejected", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/admin/draws/run", nil, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("unexpected status: got=%d want=401", w.Code)
		}
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/admin/draws/run", nil,
			map[string]string{"X-Admin-Token": "wrong"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("unexpected status: got=%d want=401", w.Code)
		}
	})
}

func TestDrawEndpoint(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/participants", gin.H{"id": "u1", "displayName": "Alice"}, nil)
	doJSON(t, r, http.MethodPost, "/participants/u1/purchases", gin.H{"quantity": 2}, nil)
	doJSON(t, r, http.MethodPost, "/admin/participants/u1/confirm", nil, adminHeader())

	w := doJSON(t, r, http.MethodPost, "/admin/draws/run?date=2026-09-01", nil, adminHeader())
	if w.Code != http.StatusOK {
		t.Fatalf("draw: unexpected status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/admin/draws/run?date=2026-09-01", nil, adminHeader())
	if w.Code != http.StatusConflict {
		t.Errorf("re-draw: unexpected status %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/draws", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("draw history: unexpected status %d", w.Code)
	}
	var history struct {
		Draws []struct {
			Date     string `json:"date"`
			WinnerID string `json:"winnerId"`
		} `json:"draws"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(history.Draws) != 1 || history.Draws[0].WinnerID != "u1" {
		t.Errorf("unexpected draw history: %+v", history.Draws)
	}
}
