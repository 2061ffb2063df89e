package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"homecare-booking/internal/adaptor"
	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository/memory"
	"homecare-booking/internal/gateway"
	"homecare-booking/internal/usecase"
	"homecare-booking/pkg/cache"
	"homecare-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

type recordingNotifier struct {
	mu       sync.Mutex
	bookings []uuid.UUID
}

func (n *recordingNotifier) BookingCreated(_ context.Context, b *entity.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bookings = append(n.bookings, b.ID)
	return nil
}

type routesSuite struct {
	suite.Suite
	clock    *clockwork.FakeClock
	store    *memory.Store
	notifier *recordingNotifier
	app      *App

	patient, nurse, otherNurse, admin uuid.UUID
	tokens                            map[uuid.UUID]string
}

func TestRoutes(t *testing.T) {
	suite.Run(t, new(routesSuite))
}

func (s *routesSuite) SetupTest() {
	s.clock = clockwork.NewFakeClockAt(t0)
	repo, store := memory.NewRepository(s.clock)
	s.store = store
	s.notifier = &recordingNotifier{}
	s.tokens = make(map[uuid.UUID]string)

	config := &utils.Config{
		Payment: utils.PaymentConfig{
			Currency:      "usd",
			SuccessURL:    "https://app.test/billing/ok",
			CancelURL:     "https://app.test/billing/cancel",
			WebhookSecret: "whsec_routes",
		},
		Subscription: utils.SubscriptionConfig{TrialDays: 14},
	}
	s.app = Wiring(repo, config, usecase.Collaborators{
		Clock:    s.clock,
		Gateway:  gateway.NewSandboxGateway(zap.NewNop()),
		Notifier: s.notifier,
		Cache:    cache.NewMemoryCache(time.Minute, s.clock),
	}, zap.NewNop())

	rate := int64(100)
	s.patient = s.addUser(entity.RolePatient, nil)
	s.nurse = s.addUser(entity.RoleNurse, &rate)
	s.otherNurse = s.addUser(entity.RoleNurse, &rate)
	s.admin = s.addUser(entity.RoleAdmin, nil)
}

func (s *routesSuite) addUser(role entity.UserRole, rate *int64) uuid.UUID {
	id := uuid.New()
	s.store.PutUser(&entity.User{
		Base:       entity.Base{ID: id, CreatedAt: t0, UpdatedAt: t0},
		Email:      string(role) + "-" + id.String()[:8] + "@homecare.test",
		FullName:   string(role),
		Role:       role,
		HourlyRate: rate,
		IsActive:   true,
	})
	token := uuid.New()
	s.store.PutSession(&entity.Session{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: t0},
		UserID:     id,
		Token:      token,
		ExpiresAt:  t0.Add(30 * 24 * time.Hour),
	})
	s.tokens[id] = token.String()
	return id
}

func (s *routesSuite) activeSubscription(nurseID uuid.UUID, limit, used int) {
	end := t0.Add(usecase.BillingPeriod)
	s.store.PutSubscription(&entity.NurseSubscription{
		Base:         entity.Base{ID: uuid.New(), CreatedAt: t0, UpdatedAt: t0},
		NurseID:      nurseID,
		Plan:         "basic",
		Status:       entity.SubscriptionStatusActive,
		Currency:     "usd",
		BookingLimit: limit,
		BookingsUsed: used,
		StartDate:    &t0,
		EndDate:      &end,
	})
}

func (s *routesSuite) do(method, path string, as uuid.UUID, body any, header ...string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := s.tokens[as]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, req)

	var env envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *routesSuite) createBooking(nurseID *uuid.UUID) string {
	body := map[string]any{
		"service_type": "wound care",
		"scheduled_at": t0.Add(24 * time.Hour),
		"address":      "12 Harbour Road",
	}
	if nurseID != nil {
		body["nurse_id"] = nurseID.String()
	}
	rec, env := s.do(http.MethodPost, "/api/bookings", s.patient, body)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var b struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &b))
	s.Equal("PENDING", b.Status)
	return b.ID
}

func (s *routesSuite) TestHealth() {
	rec, env := s.do(http.MethodGet, "/health", uuid.Nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.True(env.Status)
}

func (s *routesSuite) TestBookingsRequireSession() {
	rec, env := s.do(http.MethodGet, "/api/bookings", uuid.Nil, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(env.Status)
}

func (s *routesSuite) TestFullVisitOverHTTP() {
	s.activeSubscription(s.nurse, 10, 0)
	id := s.createBooking(&s.nurse)
	s.Equal([]uuid.UUID{uuid.MustParse(id)}, s.notifier.bookings)

	steps := []struct {
		path   string
		as     uuid.UUID
		status string
	}{
		{"/accept", s.nurse, "CONFIRMED"},
		{"/arrival", s.nurse, "IN_PROGRESS"},
		{"/confirm-arrival", s.patient, "IN_PROGRESS"},
		{"/start-service", s.nurse, "IN_PROGRESS"},
	}
	for _, step := range steps {
		s.clock.Advance(time.Minute)
		rec, env := s.do(http.MethodPost, "/api/bookings/"+id+step.path, step.as, nil)
		s.Require().Equal(http.StatusOK, rec.Code, step.path+": "+rec.Body.String())
		var b struct {
			Status string `json:"status"`
		}
		s.Require().NoError(json.Unmarshal(env.Data, &b))
		s.Equal(step.status, b.Status, step.path)
	}

	s.clock.Advance(47 * time.Minute)
	rec, env := s.do(http.MethodPost, "/api/bookings/"+id+"/stop-service", s.nurse, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var done struct {
		Status         string `json:"status"`
		ActualDuration int    `json:"actual_duration"`
		ActualCost     int64  `json:"actual_cost"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &done))
	s.Equal("COMPLETED", done.Status)
	s.Equal(47, done.ActualDuration)
	s.Equal(int64(78), done.ActualCost)

	rec, _ = s.do(http.MethodPost, "/api/bookings/"+id+"/stop-service", s.nurse, nil)
	s.Equal(http.StatusPreconditionFailed, rec.Code)
}

func (s *routesSuite) TestAcceptWithoutSubscriptionIsPaymentRequired() {
	id := s.createBooking(&s.nurse)

	rec, env := s.do(http.MethodPost, "/api/bookings/"+id+"/accept", s.nurse, nil)
	s.Require().Equal(http.StatusPaymentRequired, rec.Code)

	var decision struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &decision))
	s.False(decision.Allowed)
	s.Equal(usecase.ReasonNoActiveSubscription, decision.Reason)
}

func (s *routesSuite) TestWrongNurseIsForbidden() {
	s.activeSubscription(s.otherNurse, 10, 0)
	id := s.createBooking(&s.nurse)

	rec, _ := s.do(http.MethodPost, "/api/bookings/"+id+"/accept", s.otherNurse, nil)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *routesSuite) TestPatientCannotConfirm() {
	id := s.createBooking(&s.nurse)

	rec, _ := s.do(http.MethodPatch, "/api/bookings/"+id+"/status", s.patient, map[string]string{"status": "CONFIRMED"})
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *routesSuite) TestUpdateStatusValidation() {
	id := s.createBooking(&s.nurse)

	rec, env := s.do(http.MethodPatch, "/api/bookings/"+id+"/status", s.patient, map[string]string{"status": "PAUSED"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(string(env.Errors), "Status")
}

func (s *routesSuite) TestCreateBookingValidation() {
	rec, env := s.do(http.MethodPost, "/api/bookings", s.patient, map[string]any{"service_type": "x"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(string(env.Errors), "Address")

	rec, _ = s.do(http.MethodPost, "/api/bookings", s.patient, []byte("{"))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *routesSuite) TestInvalidBookingID() {
	rec, _ := s.do(http.MethodGet, "/api/bookings/not-a-uuid", s.patient, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *routesSuite) TestGetUnknownBooking() {
	rec, _ := s.do(http.MethodGet, "/api/bookings/"+uuid.NewString(), s.patient, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *routesSuite) TestListBookingsScopedToCaller() {
	s.createBooking(&s.nurse)
	s.createBooking(nil)

	rec, env := s.do(http.MethodGet, "/api/bookings?per_page=1", s.patient, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var page struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			Total   int64 `json:"total"`
			HasNext bool  `json:"has_next"`
		} `json:"pagination"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &page))
	s.Len(page.Data, 1)
	s.Equal(int64(2), page.Pagination.Total)
	s.True(page.Pagination.HasNext)

	_, env = s.do(http.MethodGet, "/api/bookings", s.otherNurse, nil)
	s.Require().NoError(json.Unmarshal(env.Data, &page))
	s.Empty(page.Data)
}

func (s *routesSuite) TestResolveArrivalIsAdminOnly() {
	id := s.createBooking(&s.nurse)

	rec, _ := s.do(http.MethodPost, "/api/admin/bookings/"+id+"/resolve-arrival", s.nurse, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/admin/bookings/"+id+"/resolve-arrival", s.admin, nil)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *routesSuite) TestArrivalWindowExpiredIsUnprocessable() {
	s.activeSubscription(s.nurse, 10, 0)
	id := s.createBooking(&s.nurse)

	rec, _ := s.do(http.MethodPost, "/api/bookings/"+id+"/arrival", s.nurse, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	s.clock.Advance(usecase.ArrivalConfirmationWindow + time.Second)
	rec, _ = s.do(http.MethodPost, "/api/bookings/"+id+"/confirm-arrival", s.patient, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/admin/bookings/"+id+"/resolve-arrival", s.admin, nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *routesSuite) TestSubscriptionRoutesAreForNurses() {
	rec, _ := s.do(http.MethodGet, "/api/subscriptions/status", s.patient, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec, env := s.do(http.MethodGet, "/api/subscriptions/plans", uuid.Nil, nil)
	s.Equal(http.StatusOK, rec.Code)
	var plans []struct {
		Name string `json:"name"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &plans))
	s.Len(plans, 3)
}

func (s *routesSuite) TestTrialThenQuota() {
	rec, _ := s.do(http.MethodPost, "/api/subscriptions/trial", s.nurse, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = s.do(http.MethodPost, "/api/subscriptions/trial", s.nurse, nil)
	s.Equal(http.StatusPreconditionFailed, rec.Code)

	rec, env := s.do(http.MethodGet, "/api/subscriptions/quota", s.nurse, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var quota struct {
		Allowed   bool `json:"allowed"`
		Remaining *int `json:"remaining"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &quota))
	s.True(quota.Allowed)
	s.Require().NotNil(quota.Remaining)
	s.Equal(10, *quota.Remaining)
}

func (s *routesSuite) TestCheckoutThenSignedWebhookActivates() {
	rec, env := s.do(http.MethodPost, "/api/subscriptions/checkout", s.nurse, map[string]string{"plan": "growth"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var checkout struct {
		Subscription struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"subscription"`
		CheckoutURL string `json:"checkout_url"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &checkout))
	s.Equal("PENDING", checkout.Subscription.Status)
	s.Contains(checkout.CheckoutURL, "session_id=sbx_")

	body := []byte(`{"id":"evt_1","event":"payment.succeeded","data":{"subscription_id":"` +
		checkout.Subscription.ID + `","transaction_id":"txn_1","amount":5900}}`)

	rec, _ = s.do(http.MethodPost, "/api/webhooks/payment", uuid.Nil, body, adaptor.SignatureHeader, "deadbeef")
	s.Equal(http.StatusUnauthorized, rec.Code)

	signature := usecase.SignPayload("whsec_routes", body)
	rec, env = s.do(http.MethodPost, "/api/webhooks/payment", uuid.Nil, body, adaptor.SignatureHeader, signature)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Outcome string `json:"outcome"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.Equal(usecase.WebhookApplied, result.Outcome)

	rec, env = s.do(http.MethodPost, "/api/webhooks/payment", uuid.Nil, body, adaptor.SignatureHeader, signature)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.Equal(usecase.WebhookDuplicate, result.Outcome)

	rec, env = s.do(http.MethodGet, "/api/subscriptions/status", s.nurse, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var status struct {
		Subscription struct {
			Plan   string `json:"plan"`
			Status string `json:"status"`
		} `json:"subscription"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &status))
	s.Equal("growth", status.Subscription.Plan)
	s.Equal("ACTIVE", status.Subscription.Status)
}
