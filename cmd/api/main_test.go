package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"fleetflow/access"
	"fleetflow/dispute"
	"fleetflow/identity"
	"fleetflow/ride"
	"fleetflow/tenancy"
)

type stubIdentity struct {
	ident identity.Identity
	err   error
}

func (s *stubIdentity) Register(_ context.Context, _ identity.RegisterRequest) (*identity.User, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubIdentity) Login(_ context.Context, _ identity.LoginRequest) (identity.LoginResult, error) {
	return identity.LoginResult{}, fmt.Errorf("not implemented")
}

func (s *stubIdentity) VerifyToken(token string) (identity.Identity, error) {
	if s.err != nil {
		return identity.Identity{}, s.err
	}
	if token != "good-token" {
		return identity.Identity{}, fmt.Errorf("bad token")
	}
	return s.ident, nil
}

type stubResolver struct {
	scope access.Scope
	err   error
}

func (s *stubResolver) Resolve(_ context.Context, _ identity.Identity) (access.Scope, error) {
	return s.scope, s.err
}

type stubRides struct {
	submitRec     ride.PartRide
	submitErr     error
	transitionRec ride.PartRide
	transitionErr error
	listRecs      []ride.PartRide
	listErr       error
	week          ride.WeekApproval
	weekErr       error
	summary       ride.WeekSummary
	summaryErr    error
}

func (s *stubRides) Submit(_ context.Context, _ access.Scope, _ ride.SubmitParams) (ride.PartRide, error) {
	return s.submitRec, s.submitErr
}

func (s *stubRides) Transition(_ context.Context, _ string, _ ride.TransitionAction, _ access.Scope) (ride.PartRide, error) {
	return s.transitionRec, s.transitionErr
}

func (s *stubRides) List(_ context.Context, _ access.Scope) ([]ride.PartRide, error) {
	return s.listRecs, s.listErr
}

func (s *stubRides) WeekApprovalByID(_ context.Context, _ string) (ride.WeekApproval, error) {
	return s.week, s.weekErr
}

func (s *stubRides) ComputeWeekSummary(_ context.Context, _ string) (ride.WeekSummary, error) {
	return s.summary, s.summaryErr
}

type stubDisputes struct {
	openRec    dispute.Record
	openErr    error
	comment    dispute.Comment
	commentErr error
	resolveRec dispute.Record
	resolveErr error
	comments   []dispute.Comment
	listErr    error
}

func (s *stubDisputes) Open(_ context.Context, _ string, _ access.Scope, _ string) (dispute.Record, error) {
	return s.openRec, s.openErr
}

func (s *stubDisputes) AddComment(_ context.Context, _, _, _ string, _ access.Scope) (dispute.Comment, error) {
	return s.comment, s.commentErr
}

func (s *stubDisputes) Resolve(_ context.Context, _ string, _ float64, _ ride.Status, _ access.Scope) (dispute.Record, error) {
	return s.resolveRec, s.resolveErr
}

func (s *stubDisputes) Comments(_ context.Context, _ string, _ access.Scope) ([]dispute.Comment, error) {
	return s.comments, s.listErr
}

type stubTenants struct {
	companies []tenancy.Company
	clients   []tenancy.Client
	drivers   []tenancy.Driver
	driver    tenancy.Driver
	driverErr error
	createErr error
}

func (s *stubTenants) CreateCompany(_ context.Context, _ access.Scope, name string) (tenancy.Company, error) {
	if s.createErr != nil {
		return tenancy.Company{}, s.createErr
	}
	return tenancy.Company{ID: "co-new", Name: name}, nil
}

func (s *stubTenants) ListCompanies(_ context.Context, _ access.Scope) ([]tenancy.Company, error) {
	return s.companies, nil
}

func (s *stubTenants) CreateClient(_ context.Context, _ access.Scope, params tenancy.CreateClientParams) (tenancy.Client, error) {
	if s.createErr != nil {
		return tenancy.Client{}, s.createErr
	}
	return tenancy.Client{ID: "cl-new", CompanyID: params.CompanyID, Name: params.Name}, nil
}

func (s *stubTenants) ListClients(_ context.Context, _ access.Scope) ([]tenancy.Client, error) {
	return s.clients, nil
}

func (s *stubTenants) ListDrivers(_ context.Context, _ access.Scope) ([]tenancy.Driver, error) {
	return s.drivers, nil
}

func (s *stubTenants) DriverByID(_ context.Context, _ string) (tenancy.Driver, error) {
	return s.driver, s.driverErr
}

func newTestServer(t *testing.T, rides rideService, disputes disputeService, scope access.Scope) *Server {
	t.Helper()
	return &Server{
		logger:   zap.NewNop(),
		identity: &stubIdentity{ident: identity.Identity{UserID: "user-1", Role: scope.Role}},
		resolver: &stubResolver{scope: scope},
		rides:    rides,
		disputes: disputes,
		tenants:  &stubTenants{},
	}
}

func driverTestScope() access.Scope {
	return access.Scope{Role: identity.RoleDriver, OwnedDriverID: "drv-1"}
}

func TestHandleSubmitRide_Success(t *testing.T) {
	driverID := "drv-1"
	rides := &stubRides{
		submitRec: ride.PartRide{
			ID:       "r1",
			DriverID: &driverID,
			ClientID: "cl-1",
			Date:     time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			Status:   ride.StatusPendingAdmin,
		},
	}
	server := newTestServer(t, rides, &stubDisputes{}, driverTestScope())

	body := `{"client_id":"cl-1","date":"2026-08-24","year":2026,"week_nr":35,"period_nr":9,"decimal_hours":8.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/rides", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp rideResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "r1" || resp.Status != "pending_admin" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleSubmitRide_MissingToken(t *testing.T) {
	server := newTestServer(t, &stubRides{}, &stubDisputes{}, driverTestScope())

	req := httptest.NewRequest(http.MethodPost, "/api/rides", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleApprove_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"conflict", ride.ErrConflict, http.StatusConflict},
		{"invalid transition", ride.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"forbidden", ride.ErrForbidden, http.StatusForbidden},
		{"not found", ride.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		server := newTestServer(t, &stubRides{transitionErr: tc.err}, &stubDisputes{}, access.Scope{Role: identity.RoleCustomerAdmin})

		req := httptest.NewRequest(http.MethodPost, "/api/rides/r1/approve", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()

		server.routes().ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestHandleWeekSummary_GuardDeniesForeignDriver(t *testing.T) {
	rides := &stubRides{
		week: ride.WeekApproval{ID: "wk-1", DriverID: "drv-9", Year: 2026, WeekNr: 35},
	}
	server := newTestServer(t, rides, &stubDisputes{}, driverTestScope())

	req := httptest.NewRequest(http.MethodGet, "/api/weeks/wk-1/summary", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleWeekSummary_Success(t *testing.T) {
	rides := &stubRides{
		week: ride.WeekApproval{ID: "wk-1", DriverID: "drv-1", Year: 2026, WeekNr: 35},
		summary: ride.WeekSummary{
			Status:     ride.SummaryAllApprovedRejected,
			TotalHours: 40,
			Forecasted: 900,
			Counts:     map[ride.Status]int{ride.StatusAccepted: 5},
		},
	}
	server := newTestServer(t, rides, &stubDisputes{}, driverTestScope())

	req := httptest.NewRequest(http.MethodGet, "/api/weeks/wk-1/summary", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp weekSummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "all_approved_or_rejected" || resp.TotalHours != 40 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.Counts["accepted"] != 5 {
		t.Fatalf("unexpected counts: %v", resp.Counts)
	}
}

func TestHandleCreateCompany_ForbiddenMapsTo403(t *testing.T) {
	server := newTestServer(t, &stubRides{}, &stubDisputes{}, access.Scope{Role: identity.RoleCustomerAccountant})
	server.tenants = &stubTenants{createErr: tenancy.ErrForbidden}

	req := httptest.NewRequest(http.MethodPost, "/api/companies", strings.NewReader(`{"name":"Haulage"}`))
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleListDrivers_Success(t *testing.T) {
	companyID := "co-1"
	server := newTestServer(t, &stubRides{}, &stubDisputes{}, access.Scope{Role: identity.RoleCustomerAdmin})
	server.tenants = &stubTenants{drivers: []tenancy.Driver{{ID: "drv-1", UserID: "user-1", CompanyID: &companyID}}}

	req := httptest.NewRequest(http.MethodGet, "/api/drivers", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp []driverResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "drv-1" || resp[0].CompanyID == nil || *resp[0].CompanyID != companyID {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleResolveDispute_ConflictStates(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not open", dispute.ErrNotOpen, http.StatusConflict},
		{"invalid outcome", dispute.ErrInvalidOutcome, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		server := newTestServer(t, &stubRides{}, &stubDisputes{resolveErr: tc.err}, access.Scope{Role: identity.RoleCustomerAdmin, Unrestricted: true})

		body := `{"correction_hours":2.5,"outcome":"accepted"}`
		req := httptest.NewRequest(http.MethodPost, "/api/disputes/d1/resolve", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()

		server.routes().ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}
