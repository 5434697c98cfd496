package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"serviceflow/auth"
	"serviceflow/billing"
	"serviceflow/catalog"
	"serviceflow/issue"
	"serviceflow/request"
	"serviceflow/vendordir"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "userID"
	ctxKeyRole   ctxKey = "role"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	Refresh(ctx context.Context, tokenString string) (auth.LoginResult, error)
	VerifyToken(tokenString string) (auth.Claims, error)
}

type requestService interface {
	Create(ctx context.Context, params request.CreateParams) (request.Request, error)
	GetByCode(ctx context.Context, code string) (request.Request, error)
	List(ctx context.Context, params request.ListParams) ([]request.Request, error)
	Delete(ctx context.Context, code string, actorRole auth.Role) error
	AssignVendors(ctx context.Context, params request.AssignParams) (request.AssignResult, error)
	ReportStatus(ctx context.Context, params request.ReportParams) (request.Status, error)
	Cancel(ctx context.Context, params request.CancelParams) (request.CancelResult, error)
}

type vendorService interface {
	Register(ctx context.Context, params vendordir.RegisterParams) (vendordir.Profile, error)
	Lookup(ctx context.Context, id string) (vendordir.Profile, error)
	List(ctx context.Context, limit int) ([]vendordir.Profile, error)
	Deactivate(ctx context.Context, id string) (vendordir.Profile, error)
}

type catalogService interface {
	List(ctx context.Context, limit int) ([]catalog.Category, error)
}

type issueService interface {
	List(ctx context.Context, ownerID, requestID string) ([]issue.Record, error)
	Create(ctx context.Context, ownerID, requestID, subject string) (issue.Record, error)
	Resolve(ctx context.Context, ownerID, issueID string) (issue.Record, error)
}

type billingService interface {
	Issue(ctx context.Context, params billing.IssueParams) (billing.Bill, error)
	GetByCode(ctx context.Context, code string) (billing.Bill, error)
	ListForCustomer(ctx context.Context, customerID string, limit int) ([]billing.Bill, error)
	MarkPaid(ctx context.Context, code string) (billing.Bill, error)
}

// Server holds the HTTP layer. Handlers translate between JSON payloads and
// the domain services; all policy decisions live in the services themselves.
type Server struct {
	authService    authService
	requestService requestService
	vendorService  vendorService
	catalogService catalogService
	issueService   issueService
	billingService billingService
}

// Routes builds the API mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("/api/categories", s.requireAuth(s.handleCategories))
	mux.HandleFunc("/api/vendors", s.requireAuth(s.handleVendors))
	mux.HandleFunc("/api/vendors/", s.requireAuth(s.handleVendorDetail))
	mux.HandleFunc("/api/requests", s.requireAuth(s.handleRequests))
	mux.HandleFunc("/api/requests/", s.requireAuth(s.handleRequestDetail))
	mux.HandleFunc("/api/issues", s.requireAuth(s.handleIssues))
	mux.HandleFunc("/api/issues/", s.requireAuth(s.handleIssueDetail))
	mux.HandleFunc("/api/bills", s.requireAuth(s.handleBills))
	mux.HandleFunc("/api/bills/", s.requireAuth(s.handleBillDetail))
	return mux
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxKeyRole, claims.Role)
		next(w, r.WithContext(ctx))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyUserID).(string)
	return id
}

func userRole(r *http.Request) auth.Role {
	role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
	return role
}

// --- auth ---

type userResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Phone     string `json:"phone"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Code:      u.Code,
		Phone:     u.Phone,
		FullName:  u.FullName,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicatePhone):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrInactiveAccount):
			writeError(w, http.StatusForbidden, "account disabled")
		default:
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{Token: result.Token, User: toUserResponse(result.User)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	result, err := s.authService.Refresh(r.Context(), body.Token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid token")
		case errors.Is(err, auth.ErrInactiveAccount):
			writeError(w, http.StatusForbidden, "account disabled")
		default:
			writeError(w, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{Token: result.Token, User: toUserResponse(result.User)})
}

// --- catalog ---

type categoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	categories, err := s.catalogService.List(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list categories failed")
		return
	}

	items := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		items = append(items, categoryResponse{
			ID:        c.ID,
			Name:      c.Name,
			Active:    c.Active,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, listPayload[categoryResponse]{Items: items, Total: len(items)})
}

// --- vendors ---

type vendorResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Mobile    string `json:"mobile"`
	Category  string `json:"category"`
	UserID    string `json:"userId,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
}

func toVendorResponse(p vendordir.Profile) vendorResponse {
	return vendorResponse{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		Mobile:    p.Mobile,
		Category:  p.Category,
		UserID:    p.UserID,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		profiles, err := s.vendorService.List(r.Context(), queryLimit(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list vendors failed")
			return
		}
		items := make([]vendorResponse, 0, len(profiles))
		for _, p := range profiles {
			items = append(items, toVendorResponse(p))
		}
		writeJSON(w, http.StatusOK, listPayload[vendorResponse]{Items: items, Total: len(items)})

	case http.MethodPost:
		if !isStaffOrAdmin(userRole(r)) {
			writeError(w, http.StatusForbidden, "staff role required")
			return
		}
		var body struct {
			Name     string `json:"name"`
			Mobile   string `json:"mobile"`
			Category string `json:"category"`
			UserID   string `json:"userId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		profile, err := s.vendorService.Register(r.Context(), vendordir.RegisterParams{
			Name:     body.Name,
			Mobile:   body.Mobile,
			Category: body.Category,
			UserID:   body.UserID,
		})
		if err != nil {
			if errors.Is(err, vendordir.ErrDuplicateMobile) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, toVendorResponse(profile))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleVendorDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/vendors/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid vendor path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := s.vendorService.Lookup(r.Context(), id)
		if err != nil {
			if errors.Is(err, vendordir.ErrNotFound) {
				writeError(w, http.StatusNotFound, "vendor not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "lookup vendor failed")
			return
		}
		writeJSON(w, http.StatusOK, toVendorResponse(profile))

	case http.MethodDelete:
		if !isStaffOrAdmin(userRole(r)) {
			writeError(w, http.StatusForbidden, "staff role required")
			return
		}
		profile, err := s.vendorService.Deactivate(r.Context(), id)
		if err != nil {
			if errors.Is(err, vendordir.ErrNotFound) {
				writeError(w, http.StatusNotFound, "vendor not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "deactivate vendor failed")
			return
		}
		writeJSON(w, http.StatusOK, toVendorResponse(profile))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- requests ---

type assignmentResponse struct {
	ID            string   `json:"id"`
	VendorID      string   `json:"vendorId"`
	VendorName    string   `json:"vendorName"`
	VendorContact string   `json:"vendorContact"`
	Items         []string `json:"items"`
	Status        string   `json:"status"`
}

type requestResponse struct {
	ID          string               `json:"id"`
	Code        string               `json:"code"`
	RequesterID string               `json:"requesterId"`
	Items       []string             `json:"items"`
	ScheduledAt string               `json:"scheduledAt,omitempty"`
	Status      string               `json:"status"`
	Assignments []assignmentResponse `json:"assignments"`
	CreatedAt   string               `json:"createdAt"`
}

func toRequestResponse(req request.Request) requestResponse {
	resp := requestResponse{
		ID:          req.ID,
		Code:        req.Code,
		RequesterID: req.RequesterID,
		Items:       req.Items,
		Status:      string(req.Status),
		Assignments: make([]assignmentResponse, 0, len(req.Assignments)),
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
	}
	if req.ScheduledAt != nil {
		resp.ScheduledAt = req.ScheduledAt.Format(time.RFC3339)
	}
	for _, a := range req.Assignments {
		resp.Assignments = append(resp.Assignments, assignmentResponse{
			ID:            a.ID,
			VendorID:      a.VendorID,
			VendorName:    a.VendorName,
			VendorContact: a.VendorContact,
			Items:         a.Items,
			Status:        string(a.Status),
		})
	}
	return resp
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRequests(w, r)
	case http.MethodPost:
		s.handleCreateRequest(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.requestService.List(r.Context(), request.ListParams{
		ActorID:   userID(r),
		ActorRole: userRole(r),
		Limit:     queryLimit(r),
	})
	if err != nil {
		writeRequestError(w, err)
		return
	}

	items := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		items = append(items, toRequestResponse(req))
	}
	writeJSON(w, http.StatusOK, listPayload[requestResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Items        []string `json:"items"`
		ScheduleDate string   `json:"scheduleDate"`
		ScheduleTime string   `json:"scheduleTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	created, err := s.requestService.Create(r.Context(), request.CreateParams{
		RequesterID:  userID(r),
		ActorRole:    userRole(r),
		Items:        body.Items,
		ScheduleDate: body.ScheduleDate,
		ScheduleTime: body.ScheduleTime,
	})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (s *Server) handleRequestDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	code, action, _ := strings.Cut(rest, "/")
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid request path")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			req, err := s.requestService.GetByCode(r.Context(), code)
			if err != nil {
				writeRequestError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toRequestResponse(req))
		case http.MethodDelete:
			if err := s.requestService.Delete(r.Context(), code, userRole(r)); err != nil {
				writeRequestError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}

	case "assignments":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleAssign(w, r, code)

	case "report":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleReport(w, r, code)

	case "cancel":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleCancel(w, r, code)

	default:
		writeError(w, http.StatusNotFound, "unknown request action")
	}
}

type assignEntryBody struct {
	VendorID string   `json:"vendorId"`
	Items    []string `json:"items"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request, code string) {
	var body struct {
		Entries []assignEntryBody `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	entries := make([]request.AssignEntry, 0, len(body.Entries))
	for _, e := range body.Entries {
		entries = append(entries, request.AssignEntry{VendorID: e.VendorID, Items: e.Items})
	}

	result, err := s.requestService.AssignVendors(r.Context(), request.AssignParams{
		Code:      code,
		ActorRole: userRole(r),
		Entries:   entries,
	})
	if err != nil {
		writeRequestError(w, err)
		return
	}

	skipped := make([]map[string]string, 0, len(result.Skipped))
	for _, sk := range result.Skipped {
		skipped = append(skipped, map[string]string{"vendorId": sk.VendorID, "reason": string(sk.Reason)})
	}
	writeJSON(w, http.StatusOK, struct {
		Status  string              `json:"status"`
		Applied []string            `json:"applied"`
		Skipped []map[string]string `json:"skipped"`
	}{Status: string(result.RequestStatus), Applied: result.Applied, Skipped: skipped})
}

// handleReport never takes a vendor id from the payload; the acting vendor is
// the one bound to the authenticated account.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, code string) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	status, err := s.requestService.ReportStatus(r.Context(), request.ReportParams{
		Code:      code,
		ActorID:   userID(r),
		ActorRole: userRole(r),
		NewStatus: request.AssignmentStatus(body.Status),
	})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, code string) {
	var body struct {
		VendorIDs []string `json:"vendorIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.requestService.Cancel(r.Context(), request.CancelParams{
		Code:      code,
		ActorID:   userID(r),
		ActorRole: userRole(r),
		VendorIDs: body.VendorIDs,
	})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status   string   `json:"status"`
		Notified []string `json:"notified"`
	}{Status: string(result.RequestStatus), Notified: result.NotifiedVendorIDs})
}

func writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, request.ErrNotFound), errors.Is(err, request.ErrAssignmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, request.ErrForbidden), errors.Is(err, request.ErrNotAssigned):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, request.ErrConflict),
		errors.Is(err, request.ErrDuplicateVendor),
		errors.Is(err, request.ErrWithinCutoffWindow):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, request.ErrNoItems),
		errors.Is(err, request.ErrPartialSchedule),
		errors.Is(err, request.ErrInvalidReportStatus),
		errors.Is(err, request.ErrEmptyCoveredItems),
		errors.Is(err, request.ErrItemNotRequested),
		errors.Is(err, request.ErrScheduleNotSet):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "request operation failed")
	}
}

// --- issues ---

type issueResponse struct {
	ID         string `json:"id"`
	RequestID  string `json:"requestId"`
	Subject    string `json:"subject"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

func toIssueResponse(rec issue.Record) issueResponse {
	resp := issueResponse{
		ID:        rec.ID,
		RequestID: rec.RequestID,
		Subject:   rec.Subject,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.ResolvedAt != nil {
		resp.ResolvedAt = rec.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.issueService.List(r.Context(), userID(r), r.URL.Query().Get("requestId"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list issues failed")
			return
		}
		items := make([]issueResponse, 0, len(records))
		for _, rec := range records {
			items = append(items, toIssueResponse(rec))
		}
		writeJSON(w, http.StatusOK, listPayload[issueResponse]{Items: items, Total: len(items)})

	case http.MethodPost:
		var body struct {
			RequestID string `json:"requestId"`
			Subject   string `json:"subject"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		rec, err := s.issueService.Create(r.Context(), userID(r), body.RequestID, body.Subject)
		if err != nil {
			if errors.Is(err, issue.ErrForbidden) {
				writeError(w, http.StatusNotFound, "request not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "create issue failed")
			return
		}
		writeJSON(w, http.StatusCreated, toIssueResponse(rec))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleIssueDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/issues/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid issue path")
		return
	}
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rec, err := s.issueService.Resolve(r.Context(), userID(r), id)
	if err != nil {
		switch {
		case errors.Is(err, issue.ErrBadStatus):
			writeError(w, http.StatusBadRequest, "issue already resolved")
		case errors.Is(err, issue.ErrForbidden):
			writeError(w, http.StatusNotFound, "issue not found")
		default:
			writeError(w, http.StatusInternalServerError, "resolve issue failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, toIssueResponse(rec))
}

// --- bills ---

type billResponse struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	RequestCode  string `json:"requestCode"`
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	VendorID     string `json:"vendorId"`
	VendorName   string `json:"vendorName"`
	Description  string `json:"description"`
	Amount       int64  `json:"amount"`
	GSTPercent   int64  `json:"gstPercent"`
	GSTAmount    int64  `json:"gstAmount"`
	TotalAmount  int64  `json:"totalAmount"`
	Status       string `json:"status"`
	IssuedAt     string `json:"issuedAt"`
	PaidAt       string `json:"paidAt,omitempty"`
}

func toBillResponse(b billing.Bill) billResponse {
	resp := billResponse{
		ID:           b.ID,
		Code:         b.Code,
		RequestCode:  b.RequestCode,
		CustomerID:   b.CustomerID,
		CustomerName: b.CustomerName,
		VendorID:     b.VendorID,
		VendorName:   b.VendorName,
		Description:  b.Description,
		Amount:       b.Amount,
		GSTPercent:   b.GSTPercent,
		GSTAmount:    b.GSTAmount,
		TotalAmount:  b.TotalAmount,
		Status:       string(b.Status),
		IssuedAt:     b.IssuedAt.Format(time.RFC3339),
	}
	if b.PaidAt != nil {
		resp.PaidAt = b.PaidAt.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customerID := userID(r)
		if isStaffOrAdmin(userRole(r)) {
			if q := r.URL.Query().Get("customerId"); q != "" {
				customerID = q
			}
		}
		bills, err := s.billingService.ListForCustomer(r.Context(), customerID, queryLimit(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list bills failed")
			return
		}
		items := make([]billResponse, 0, len(bills))
		for _, b := range bills {
			items = append(items, toBillResponse(b))
		}
		writeJSON(w, http.StatusOK, listPayload[billResponse]{Items: items, Total: len(items)})

	case http.MethodPost:
		if !isStaffOrAdmin(userRole(r)) {
			writeError(w, http.StatusForbidden, "staff role required")
			return
		}
		var body struct {
			RequestCode  string `json:"requestCode"`
			CustomerID   string `json:"customerId"`
			CustomerName string `json:"customerName"`
			VendorID     string `json:"vendorId"`
			VendorName   string `json:"vendorName"`
			Description  string `json:"description"`
			Amount       int64  `json:"amount"`
			GSTPercent   int64  `json:"gstPercent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		bill, err := s.billingService.Issue(r.Context(), billing.IssueParams{
			RequestCode:  body.RequestCode,
			CustomerID:   body.CustomerID,
			CustomerName: body.CustomerName,
			VendorID:     body.VendorID,
			VendorName:   body.VendorName,
			Description:  body.Description,
			Amount:       body.Amount,
			GSTPercent:   body.GSTPercent,
		})
		if err != nil {
			switch {
			case errors.Is(err, billing.ErrInvalidAmount), errors.Is(err, billing.ErrInvalidGST):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, billing.ErrDuplicateCode):
				writeError(w, http.StatusConflict, err.Error())
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusCreated, toBillResponse(bill))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBillDetail(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/api/bills/")
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid bill path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		bill, err := s.billingService.GetByCode(r.Context(), code)
		if err != nil {
			if errors.Is(err, billing.ErrNotFound) {
				writeError(w, http.StatusNotFound, "bill not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "get bill failed")
			return
		}
		if !isStaffOrAdmin(userRole(r)) && bill.CustomerID != userID(r) {
			writeError(w, http.StatusNotFound, "bill not found")
			return
		}
		writeJSON(w, http.StatusOK, toBillResponse(bill))

	case http.MethodPatch:
		if !isStaffOrAdmin(userRole(r)) {
			writeError(w, http.StatusForbidden, "staff role required")
			return
		}
		bill, err := s.billingService.MarkPaid(r.Context(), code)
		if err != nil {
			if errors.Is(err, billing.ErrNotFound) {
				writeError(w, http.StatusNotFound, "bill not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "mark bill paid failed")
			return
		}
		writeJSON(w, http.StatusOK, toBillResponse(bill))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- helpers ---

type listPayload[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func isStaffOrAdmin(role auth.Role) bool {
	return role == auth.RoleStaff || role == auth.RoleAdmin
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 100
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
