package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fleetflow/access"
	"fleetflow/dispute"
	"fleetflow/identity"
	"fleetflow/ride"
	"fleetflow/tenancy"
)

type identityService interface {
	Register(ctx context.Context, req identity.RegisterRequest) (*identity.User, error)
	Login(ctx context.Context, req identity.LoginRequest) (identity.LoginResult, error)
	VerifyToken(token string) (identity.Identity, error)
}

type scopeResolver interface {
	Resolve(ctx context.Context, ident identity.Identity) (access.Scope, error)
}

type rideService interface {
	Submit(ctx context.Context, scope access.Scope, params ride.SubmitParams) (ride.PartRide, error)
	Transition(ctx context.Context, rideID string, action ride.TransitionAction, scope access.Scope) (ride.PartRide, error)
	List(ctx context.Context, scope access.Scope) ([]ride.PartRide, error)
	WeekApprovalByID(ctx context.Context, weekApprovalID string) (ride.WeekApproval, error)
	ComputeWeekSummary(ctx context.Context, weekApprovalID string) (ride.WeekSummary, error)
}

type disputeService interface {
	Open(ctx context.Context, rideID string, scope access.Scope, openedByUserID string) (dispute.Record, error)
	AddComment(ctx context.Context, disputeID, authorID, body string, scope access.Scope) (dispute.Comment, error)
	Resolve(ctx context.Context, disputeID string, correctionHours float64, outcome ride.Status, scope access.Scope) (dispute.Record, error)
	Comments(ctx context.Context, disputeID string, scope access.Scope) ([]dispute.Comment, error)
}

type tenancyService interface {
	CreateCompany(ctx context.Context, scope access.Scope, name string) (tenancy.Company, error)
	ListCompanies(ctx context.Context, scope access.Scope) ([]tenancy.Company, error)
	CreateClient(ctx context.Context, scope access.Scope, params tenancy.CreateClientParams) (tenancy.Client, error)
	ListClients(ctx context.Context, scope access.Scope) ([]tenancy.Client, error)
	ListDrivers(ctx context.Context, scope access.Scope) ([]tenancy.Driver, error)
	DriverByID(ctx context.Context, driverID string) (tenancy.Driver, error)
}

// Server is the thin JSON shell over the domain services. Every request
// authenticates, resolves its scope once, and dispatches; all authorization
// decisions live in the domain packages.
type Server struct {
	logger   *zap.Logger
	identity identityService
	resolver scopeResolver
	rides    rideService
	disputes disputeService
	tenants  tenancyService
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/companies", s.withScope(s.handleListCompanies))
	mux.HandleFunc("POST /api/companies", s.withScope(s.handleCreateCompany))
	mux.HandleFunc("GET /api/clients", s.withScope(s.handleListClients))
	mux.HandleFunc("POST /api/clients", s.withScope(s.handleCreateClient))
	mux.HandleFunc("GET /api/drivers", s.withScope(s.handleListDrivers))
	mux.HandleFunc("GET /api/rides", s.withScope(s.handleListRides))
	mux.HandleFunc("POST /api/rides", s.withScope(s.handleSubmitRide))
	mux.HandleFunc("POST /api/rides/{id}/approve", s.withScope(s.handleApproveRide))
	mux.HandleFunc("POST /api/rides/{id}/reject", s.withScope(s.handleRejectRide))
	mux.HandleFunc("POST /api/rides/{id}/dispute", s.withScope(s.handleOpenDispute))
	mux.HandleFunc("GET /api/disputes/{id}/comments", s.withScope(s.handleListComments))
	mux.HandleFunc("POST /api/disputes/{id}/comments", s.withScope(s.handleAddComment))
	mux.HandleFunc("POST /api/disputes/{id}/resolve", s.withScope(s.handleResolveDispute))
	mux.HandleFunc("GET /api/weeks/{id}/summary", s.withScope(s.handleWeekSummary))
	return mux
}

type requestContext struct {
	Identity identity.Identity
	Scope    access.Scope
}

type scopedHandler func(w http.ResponseWriter, r *http.Request, rc requestContext)

// withScope authenticates the request and resolves the actor's scope. Scope
// resolution happens on every request; associations may have changed since
// the last call and stale scope would be a security defect.
func (s *Server) withScope(next scopedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		ident, err := s.identity.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		scope, err := s.resolver.Resolve(r.Context(), ident)
		if err != nil {
			if errors.Is(err, access.ErrProfileNotFound) {
				// List endpoints still render, carrying a deny-all scope that
				// reports the distinct no-profile reason.
				scope = access.ScopeWithoutProfile(ident.Role)
			} else {
				s.writeDomainError(w, err)
				return
			}
		}

		next(w, r, requestContext{Identity: ident, Scope: scope})
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req identity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	user, err := s.identity.Register(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: string(user.Role)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req identity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := s.identity.Login(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		User:  userResponse{ID: result.User.ID, Email: result.User.Email, FullName: result.User.FullName, Role: string(result.User.Role)},
	})
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request, rc requestContext) {
	companies, err := s.tenants.ListCompanies(r.Context(), rc.Scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]companyResponse, 0, len(companies))
	for _, c := range companies {
		out = append(out, companyResponse{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

type createCompanyRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request, rc requestContext) {
	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	company, err := s.tenants.CreateCompany(r.Context(), rc.Scope, req.Name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, companyResponse{ID: company.ID, Name: company.Name})
}

type createClientRequest struct {
	CompanyID    string  `json:"company_id"`
	Name         string  `json:"name"`
	ContactEmail *string `json:"contact_email,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request, rc requestContext) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	client, err := s.tenants.CreateClient(r.Context(), rc.Scope, tenancy.CreateClientParams{
		CompanyID:    req.CompanyID,
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clientResponse{ID: client.ID, CompanyID: client.CompanyID, Name: client.Name})
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request, rc requestContext) {
	drivers, err := s.tenants.ListDrivers(r.Context(), rc.Scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]driverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, driverResponse{ID: d.ID, UserID: d.UserID, CompanyID: d.CompanyID})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request, rc requestContext) {
	clients, err := s.tenants.ListClients(r.Context(), rc.Scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientResponse{ID: c.ID, CompanyID: c.CompanyID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request, rc requestContext) {
	rides, err := s.rides.List(r.Context(), rc.Scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]rideResponse, 0, len(rides))
	for _, rec := range rides {
		out = append(out, toRideResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

type submitRideRequest struct {
	DriverID      string  `json:"driver_id,omitempty"`
	CompanyID     *string `json:"company_id,omitempty"`
	ClientID      string  `json:"client_id"`
	Date          string  `json:"date"`
	Year          int     `json:"year"`
	WeekNr        int     `json:"week_nr"`
	PeriodNr      int     `json:"period_nr"`
	DecimalHours  float64 `json:"decimal_hours"`
	HourlyRate    float64 `json:"hourly_rate"`
	Allowance     float64 `json:"allowance"`
	Reimbursement float64 `json:"reimbursement"`
	Fee           float64 `json:"fee"`
}

func (s *Server) handleSubmitRide(w http.ResponseWriter, r *http.Request, rc requestContext) {
	var req submitRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	rec, err := s.rides.Submit(r.Context(), rc.Scope, ride.SubmitParams{
		DriverID:      req.DriverID,
		CompanyID:     req.CompanyID,
		ClientID:      req.ClientID,
		Date:          date,
		Year:          req.Year,
		WeekNr:        req.WeekNr,
		PeriodNr:      req.PeriodNr,
		DecimalHours:  req.DecimalHours,
		HourlyRate:    req.HourlyRate,
		Allowance:     req.Allowance,
		Reimbursement: req.Reimbursement,
		Fee:           req.Fee,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRideResponse(rec))
}

func (s *Server) handleApproveRide(w http.ResponseWriter, r *http.Request, rc requestContext) {
	s.transition(w, r, rc, ride.ActionApprove)
}

func (s *Server) handleRejectRide(w http.ResponseWriter, r *http.Request, rc requestContext) {
	s.transition(w, r, rc, ride.ActionReject)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, rc requestContext, action ride.TransitionAction) {
	rec, err := s.rides.Transition(r.Context(), r.PathValue("id"), action, rc.Scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRideResponse(rec))
}

func (s *Server) handleOpenDispute(w http.ResponseWriter, r *http.Request, rc requestContext) {
	rec, err := s.disputes.Open(r.Context(), r.PathValue("id"), rc.Scope, rc.Identity.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeResponse(rec))
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request, rc requestContext) {
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	c, err := s.disputes.AddComment(r.Context(), r.PathValue("id"), rc.Identity.UserID, req.Body, rc.Scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request, rc requestContext) {
	comments, err := s.disputes.Comments(r.Context(), r.PathValue("id"), rc.Scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type resolveRequest struct {
	CorrectionHours float64 `json:"correction_hours"`
	Outcome         string  `json:"outcome"`
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request, rc requestContext) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	rec, err := s.disputes.Resolve(r.Context(), r.PathValue("id"), req.CorrectionHours, ride.Status(req.Outcome), rc.Scope)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeResponse(rec))
}

func (s *Server) handleWeekSummary(w http.ResponseWriter, r *http.Request, rc requestContext) {
	weekID := r.PathValue("id")
	wa, err := s.rides.WeekApprovalByID(r.Context(), weekID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	target := access.Target{DriverID: wa.DriverID}
	if driver, err := s.tenants.DriverByID(r.Context(), wa.DriverID); err == nil && driver.CompanyID != nil {
		target.CompanyID = *driver.CompanyID
	}
	if decision := access.CheckAccess(rc.Scope, target); !decision.Allowed {
		writeError(w, http.StatusForbidden, string(decision.Reason))
		return
	}

	summary, err := s.rides.ComputeWeekSummary(r.Context(), weekID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	counts := make(map[string]int, len(summary.Counts))
	for status, n := range summary.Counts {
		counts[string(status)] = n
	}
	writeJSON(w, http.StatusOK, weekSummaryResponse{
		WeekApprovalID: weekID,
		DriverID:       wa.DriverID,
		Year:           wa.Year,
		WeekNr:         wa.WeekNr,
		Status:         string(summary.Status),
		TotalHours:     summary.TotalHours,
		Forecasted:     summary.Forecasted,
		Counts:         counts,
	})
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, access.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, access.ErrProfileNotFound):
		writeError(w, http.StatusForbidden, "no profile for role")
	case errors.Is(err, ride.ErrForbidden), errors.Is(err, dispute.ErrForbidden),
		errors.Is(err, tenancy.ErrForbidden):
		writeError(w, http.StatusForbidden, "out of scope")
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, tenancy.ErrNotFound), errors.Is(err, identity.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ride.ErrInvalidTransition), errors.Is(err, dispute.ErrInvalidOutcome),
		errors.Is(err, tenancy.ErrCompanyMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ride.ErrConflict), errors.Is(err, dispute.ErrAlreadyOpen),
		errors.Is(err, dispute.ErrDisputeClosed), errors.Is(err, dispute.ErrNotOpen),
		errors.Is(err, identity.ErrDuplicateEmail), errors.Is(err, tenancy.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type companyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type clientResponse struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

type driverResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	CompanyID *string `json:"company_id,omitempty"`
}

type rideResponse struct {
	ID              string   `json:"id"`
	DriverID        *string  `json:"driver_id,omitempty"`
	CompanyID       *string  `json:"company_id,omitempty"`
	ClientID        string   `json:"client_id"`
	WeekApprovalID  *string  `json:"week_approval_id,omitempty"`
	Date            string   `json:"date"`
	Status          string   `json:"status"`
	DecimalHours    float64  `json:"decimal_hours"`
	CorrectionHours *float64 `json:"correction_hours,omitempty"`
	Forecast        float64  `json:"forecast"`
}

func toRideResponse(rec ride.PartRide) rideResponse {
	return rideResponse{
		ID:              rec.ID,
		DriverID:        rec.DriverID,
		CompanyID:       rec.CompanyID,
		ClientID:        rec.ClientID,
		WeekApprovalID:  rec.WeekApprovalID,
		Date:            rec.Date.Format("2006-01-02"),
		Status:          string(rec.Status),
		DecimalHours:    rec.DecimalHours,
		CorrectionHours: rec.CorrectionHours,
		Forecast:        rec.Forecast(),
	}
}

type disputeResponse struct {
	ID              string   `json:"id"`
	PartRideID      string   `json:"part_ride_id"`
	Status          string   `json:"status"`
	CorrectionHours *float64 `json:"correction_hours,omitempty"`
	ClosedAt        *string  `json:"closed_at,omitempty"`
}

func toDisputeResponse(rec dispute.Record) disputeResponse {
	resp := disputeResponse{
		ID:              rec.ID,
		PartRideID:      rec.PartRideID,
		Status:          string(rec.Status),
		CorrectionHours: rec.CorrectionHours,
	}
	if rec.ClosedAt != nil {
		closed := rec.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &closed
	}
	return resp
}

type commentResponse struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func toCommentResponse(c dispute.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

type weekSummaryResponse struct {
	WeekApprovalID string         `json:"week_approval_id"`
	DriverID       string         `json:"driver_id"`
	Year           int            `json:"year"`
	WeekNr         int            `json:"week_nr"`
	Status         string         `json:"status"`
	TotalHours     float64        `json:"total_hours"`
	Forecasted     float64        `json:"forecasted"`
	Counts         map[string]int `json:"counts"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
