package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reservation-service/apperrors"
	"reservation-service/controllers"
	"reservation-service/middleware"
	"reservation-service/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Mock services ---

type mockReservationService struct {
	reserveFn  func(ctx context.Context, userID string, bookID uint, days int) (*models.ReserveResult, error)
	cancelFn   func(ctx context.Context, userID string, id uuid.UUID) (*models.CancelResult, error)
	processFn  func(ctx context.Context, bookID uint, days int) (*models.QueueResult, error)
	listFn     func(ctx context.Context, userID string, page, limit int) (*models.ListReservationsResponse, error)
	positionFn func(ctx context.Context, userID string, bookID uint) (*models.QueuePositionResponse, error)
	leaveFn    func(ctx context.Context, userID string, bookID uint) error
}

func (m *mockReservationService) Reserve(ctx context.Context, userID string, bookID uint, days int) (*models.ReserveResult, error) {
	return m.reserveFn(ctx, userID, bookID, days)
}
func (m *mockReservationService) Cancel(ctx context.Context, userID string, id uuid.UUID) (*models.CancelResult, error) {
	return m.cancelFn(ctx, userID, id)
}
func (m *mockReservationService) ProcessQueue(ctx context.Context, bookID uint, days int) (*models.QueueResult, error) {
	return m.processFn(ctx, bookID, days)
}
func (m *mockReservationService) ListReservations(ctx context.Context, userID string, page, limit int) (*models.ListReservationsResponse, error) {
	return m.listFn(ctx, userID, page, limit)
}
func (m *mockReservationService) QueuePosition(ctx context.Context, userID string, bookID uint) (*models.QueuePositionResponse, error) {
	return m.positionFn(ctx, userID, bookID)
}
func (m *mockReservationService) LeaveQueue(ctx context.Context, userID string, bookID uint) error {
	return m.leaveFn(ctx, userID, bookID)
}

type mockCustomerService struct {
	profileFn func(ctx context.Context, userID string) (*models.Customer, error)
	chargeFn  func(ctx context.Context, userID string, amount int64) (*models.Customer, error)
	upgradeFn func(ctx context.Context, userID string, tier models.Tier) (*models.Customer, error)
}

func (m *mockCustomerService) GetProfile(ctx context.Context, userID string) (*models.Customer, error) {
	return m.profileFn(ctx, userID)
}
func (m *mockCustomerService) ChargeWallet(ctx context.Context, userID string, amount int64) (*models.Customer, error) {
	return m.chargeFn(ctx, userID, amount)
}
func (m *mockCustomerService) UpgradeSubscription(ctx context.Context, userID string, tier models.Tier) (*models.Customer, error) {
	return m.upgradeFn(ctx, userID, tier)
}

// --- Helpers ---

func setupRouter(rs *mockReservationService, cs *mockCustomerService) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserContextKey, "user-test-id")
		c.Next()
	})

	rc := controllers.NewReservationController(rs)
	cc := controllers.NewCustomerController(cs)
	ac := controllers.NewAdminController(rs)

	r.POST("/reservations", rc.Reserve)
	r.GET("/reservations", rc.ListReservations)
	r.DELETE("/reservations/:id", rc.Cancel)
	r.GET("/reservations/queue/:book_id", rc.QueuePosition)
	r.DELETE("/reservations/queue/:book_id", rc.LeaveQueue)
	r.GET("/customers/me", cc.GetProfile)
	r.POST("/customers/me/wallet", cc.ChargeWallet)
	r.POST("/customers/me/subscription", cc.UpgradeSubscription)
	r.POST("/admin/books/:id/process-queue", ac.ProcessQueue)
	return r
}

func send(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// --- Tests ---

func TestReserve_InstantReturns201(t *testing.T) {
	rs := &mockReservationService{
		reserveFn: func(_ context.Context, userID string, bookID uint, days int) (*models.ReserveResult, error) {
			assert.Equal(t, "user-test-id", userID)
			assert.Equal(t, uint(3), bookID)
			assert.Equal(t, 2, days)
			start := time.Now()
			return &models.ReserveResult{
				Outcome: models.OutcomeInstant,
				BookID:  bookID,
				Reservation: &models.Reservation{
					ID: uuid.New(), BookID: bookID, StartTime: start, EndTime: start.Add(48 * time.Hour),
					Price: 2000, Status: models.StatusActive,
				},
			}, nil
		},
	}
	w := send(setupRouter(rs, nil), http.MethodPost, "/reservations", gin.H{"book_id": 3, "days": 2})

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "instant", resp["outcome"])
	assert.NotNil(t, resp["reservation"])
}

func TestReserve_QueuedReturns202(t *testing.T) {
	rs := &mockReservationService{
		reserveFn: func(_ context.Context, _ string, bookID uint, _ int) (*models.ReserveResult, error) {
			return &models.ReserveResult{Outcome: models.OutcomeQueued, Position: 4, BookID: bookID}, nil
		},
	}
	w := send(setupRouter(rs, nil), http.MethodPost, "/reservations", gin.H{"book_id": 3, "days": 2})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, float64(4), decode(t, w)["position"])
}

func TestReserve_BadRequest(t *testing.T) {
	w := send(setupRouter(&mockReservationService{}, nil), http.MethodPost, "/reservations", gin.H{"book_id": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReserve_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"policy", apperrors.PolicyDenied(apperrors.ReasonTierIneligible, "free tier", nil), http.StatusForbidden, "policy_denied"},
		{"funds", apperrors.InsufficientFunds(3000, 100), http.StatusPaymentRequired, "insufficient_funds"},
		{"missing book", apperrors.NotFound("book"), http.StatusNotFound, "not_found"},
		{"conflict", apperrors.Conflict(nil), http.StatusConflict, "conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := &mockReservationService{
				reserveFn: func(context.Context, string, uint, int) (*models.ReserveResult, error) { return nil, tt.err },
			}
			w := send(setupRouter(rs, nil), http.MethodPost, "/reservations", gin.H{"book_id": 1, "days": 1})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.kind, decode(t, w)["kind"])
		})
	}
}

func TestCancel(t *testing.T) {
	id := uuid.New()
	rs := &mockReservationService{
		cancelFn: func(_ context.Context, _ string, got uuid.UUID) (*models.CancelResult, error) {
			assert.Equal(t, id, got)
			return &models.CancelResult{ReservationID: got.String(), Refund: 3000}, nil
		},
	}
	r := setupRouter(rs, nil)

	w := send(r, http.MethodDelete, "/reservations/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3000), decode(t, w)["refund"])

	w = send(r, http.MethodDelete, "/reservations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReservations_PassesPaging(t *testing.T) {
	rs := &mockReservationService{
		listFn: func(_ context.Context, _ string, page, limit int) (*models.ListReservationsResponse, error) {
			return &models.ListReservationsResponse{Reservations: []models.Reservation{}, Page: page, Limit: limit}, nil
		},
	}
	w := send(setupRouter(rs, nil), http.MethodGet, "/reservations?page=2&limit=5", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(2), resp["page"])
	assert.Equal(t, float64(5), resp["limit"])
}

func TestQueueEndpoints(t *testing.T) {
	rs := &mockReservationService{
		positionFn: func(_ context.Context, _ string, bookID uint) (*models.QueuePositionResponse, error) {
			return &models.QueuePositionResponse{BookID: bookID, Position: 2, Length: 5}, nil
		},
		leaveFn: func(context.Context, string, uint) error { return apperrors.NotFound("queue entry") },
	}
	r := setupRouter(rs, nil)

	w := send(r, http.MethodGet, "/reservations/queue/7", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["position"])

	w = send(r, http.MethodDelete, "/reservations/queue/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodGet, "/reservations/queue/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCustomerEndpoints(t *testing.T) {
	cs := &mockCustomerService{
		profileFn: func(_ context.Context, userID string) (*models.Customer, error) {
			return &models.Customer{UserID: userID, SubscriptionTier: models.TierPlus, WalletBalance: 500}, nil
		},
		chargeFn: func(_ context.Context, userID string, amount int64) (*models.Customer, error) {
			return &models.Customer{UserID: userID, WalletBalance: 500 + amount}, nil
		},
		upgradeFn: func(_ context.Context, _ string, tier models.Tier) (*models.Customer, error) {
			return nil, apperrors.InvalidTransition("premium", string(tier))
		},
	}
	r := setupRouter(nil, cs)

	w := send(r, http.MethodGet, "/customers/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodPost, "/customers/me/wallet", gin.H{"amount": 1000})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"wallet_balance":1500`)

	w = send(r, http.MethodPost, "/customers/me/wallet", gin.H{"amount": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/customers/me/wallet", gin.H{"amount": models.MaxTopUp + 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/customers/me/subscription", gin.H{"tier": "gold"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/customers/me/subscription", gin.H{"tier": "plus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_transition", decode(t, w)["kind"])
}

func TestAdminProcessQueue(t *testing.T) {
	var gotDays int
	rs := &mockReservationService{
		processFn: func(_ context.Context, bookID uint, days int) (*models.QueueResult, error) {
			gotDays = days
			return &models.QueueResult{Outcome: models.QueueWaiting, BookID: bookID}, nil
		},
	}
	r := setupRouter(rs, nil)

	w := send(r, http.MethodPost, "/admin/books/12/process-queue", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, gotDays)
	assert.Equal(t, "waiting", decode(t, w)["outcome"])

	w = send(r, http.MethodPost, "/admin/books/12/process-queue", gin.H{"days": 3})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, gotDays)
}
