package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/prolean/ProleanBack/internal/access"
	"github.com/prolean/ProleanBack/internal/models"
	"github.com/prolean/ProleanBack/internal/services"
)

type stubEnrollmentService struct {
	studentResult *models.StudentProfile
	balanceResult *models.StudentBalance
	err           error
	lastOp        string
	lastStudentID int64
	lastIDs       []int64
	lastAmount    float64
}

func (s *stubEnrollmentService) record(op string, studentID int64, ids []int64) (*models.StudentProfile, error) {
	s.lastOp = op
	s.lastStudentID = studentID
	s.lastIDs = ids
	return s.studentResult, s.err
}

func (s *stubEnrollmentService) Authorize(_ context.Context, _ access.Principal, studentID int64, ids []int64) (*models.StudentProfile, error) {
	return s.record("authorize", studentID, ids)
}

func (s *stubEnrollmentService) Revoke(_ context.Context, _ access.Principal, studentID int64, ids []int64) (*models.StudentProfile, error) {
	return s.record("revoke", studentID, ids)
}

func (s *stubEnrollmentService) Set(_ context.Context, _ access.Principal, studentID int64, ids []int64) (*models.StudentProfile, error) {
	return s.record("set", studentID, ids)
}

func (s *stubEnrollmentService) AuthorizeAllActive(_ context.Context, _ access.Principal, studentID int64) (*models.StudentProfile, error) {
	return s.record("authorize-all", studentID, nil)
}

func (s *stubEnrollmentService) RecordPayment(_ context.Context, _ access.Principal, studentID int64, amount float64) (*models.StudentProfile, error) {
	s.lastAmount = amount
	return s.record("payment", studentID, nil)
}

func (s *stubEnrollmentService) GetBalance(_ context.Context, _ access.Principal, studentID int64) (*models.StudentBalance, error) {
	s.lastOp = "balance"
	s.lastStudentID = studentID
	return s.balanceResult, s.err
}

func newTestEnrollmentHandler(service *stubEnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

func TestEnrollmentMutationsRouteToService(t *testing.T) {
	service := &stubEnrollmentService{studentResult: &models.StudentProfile{ID: 11, TotalAmountDue: 1500}}
	handler := newTestEnrollmentHandler(service)
	admin := adminPrincipal()
	app := newTestApp(&admin)
	app.Post("/api/v1/enrollment/:studentId/authorize", handler.Authorize)
	app.Post("/api/v1/enrollment/:studentId/revoke", handler.Revoke)
	app.Post("/api/v1/enrollment/:studentId/set", handler.Set)
	app.Post("/api/v1/enrollment/:studentId/authorize-all", handler.AuthorizeAll)

	cases := []struct {
		path string
		body string
		op   string
	}{
		{"/api/v1/enrollment/11/authorize", `{"training_ids":[1,2]}`, "authorize"},
		{"/api/v1/enrollment/11/revoke", `{"training_ids":[2]}`, "revoke"},
		{"/api/v1/enrollment/11/set", `{"training_ids":[]}`, "set"},
		{"/api/v1/enrollment/11/authorize-all", "", "authorize-all"},
	}
	for _, tc := range cases {
		resp, payload := doJSON(t, app, http.MethodPost, tc.path, tc.body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (%v)", tc.path, resp.StatusCode, payload)
		}
		if service.lastOp != tc.op || service.lastStudentID != 11 {
			t.Fatalf("%s: unexpected call %s/%d", tc.path, service.lastOp, service.lastStudentID)
		}
	}
}

func TestAuthorizeRequiresTrainingIDs(t *testing.T) {
	service := &stubEnrollmentService{}
	handler := newTestEnrollmentHandler(service)
	admin := adminPrincipal()
	app := newTestApp(&admin)
	app.Post("/api/v1/enrollment/:studentId/authorize", handler.Authorize)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/enrollment/11/authorize", `{"training_ids":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if service.lastOp != "" {
		t.Fatalf("service should not be called")
	}
}

func TestRecordPaymentValidatesAmount(t *testing.T) {
	service := &stubEnrollmentService{studentResult: &models.StudentProfile{ID: 11}}
	handler := newTestEnrollmentHandler(service)
	admin := adminPrincipal()
	app := newTestApp(&admin)
	app.Post("/api/v1/enrollment/:studentId/payment", handler.RecordPayment)

	for _, body := range []string{`{}`, `{"amount_paid": -5}`} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/enrollment/11/payment", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
	}

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/enrollment/11/payment", `{"amount_paid": 700.5}`)
	if resp.StatusCode != http.StatusOK || service.lastAmount != 700.5 {
		t.Fatalf("expected payment of 700.5, got %d %v", resp.StatusCode, service.lastAmount)
	}
}

func TestBalanceOfAnotherStudentIsDenied(t *testing.T) {
	service := &stubEnrollmentService{err: services.ErrForbidden}
	handler := newTestEnrollmentHandler(service)
	student := studentPrincipal(30, 3)
	app := newTestApp(&student)
	app.Get("/api/v1/enrollment/:studentId/balance", handler.GetBalance)

	resp, payload := doJSON(t, app, http.MethodGet, "/api/v1/enrollment/4/balance", "")
	if resp.StatusCode != http.StatusForbidden || payload["error"] != "access denied" {
		t.Fatalf("expected 403, got %d %v", resp.StatusCode, payload)
	}
}

func TestBalanceReportsSignedRemaining(t *testing.T) {
	service := &stubEnrollmentService{balanceResult: &models.StudentBalance{
		StudentID: 3, TotalAmountDue: 1000, AmountPaid: 1200, AmountRemaining: -200, Currency: "MAD",
	}}
	handler := newTestEnrollmentHandler(service)
	student := studentPrincipal(30, 3)
	app := newTestApp(&student)
	app.Get("/api/v1/enrollment/:studentId/balance", handler.GetBalance)

	resp, payload := doJSON(t, app, http.MethodGet, "/api/v1/enrollment/3/balance", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	balance, _ := payload["balance"].(map[string]any)
	if balance["amount_remaining"] != float64(-200) || balance["currency"] != "MAD" {
		t.Fatalf("unexpected balance %v", payload["balance"])
	}
}
