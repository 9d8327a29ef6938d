package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/vigilwaf/vigil/internal/adapter/outbound/memory"
	"github.com/vigilwaf/vigil/internal/domain/controlplane"
)

// fakeStore is a minimal in-memory outbound.EventStore for handler tests;
// only the methods exercised by these tests do real work.
type fakeStore struct {
	users       map[string]controlplane.User
	signatures  []controlplane.CustomSignature
	nextID      int64
	restrictions []controlplane.Restriction
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]controlplane.User)}
}

func (s *fakeStore) CreateUser(ctx context.Context, u controlplane.User) (int64, error) {
	s.nextID++
	u.ID = s.nextID
	s.users[u.Username] = u
	return u.ID, nil
}
func (s *fakeStore) UserByUsername(ctx context.Context, username string) (controlplane.User, error) {
	u, ok := s.users[username]
	if !ok {
		return controlplane.User{}, http.ErrNoCookie
	}
	return u, nil
}
func (s *fakeStore) InsertWAFLog(ctx context.Context, log controlplane.WAFLog) (int64, error) {
	return 1, nil
}
func (s *fakeStore) Logs(ctx context.Context, limit, offset int) ([]controlplane.WAFLog, error) {
	return nil, nil
}
func (s *fakeStore) Alerts(ctx context.Context, status, severity string) ([]controlplane.Alert, error) {
	return nil, nil
}
func (s *fakeStore) AcknowledgeAlert(ctx context.Context, id int64) error { return nil }
func (s *fakeStore) CreateRestriction(ctx context.Context, r controlplane.Restriction) (int64, error) {
	s.nextID++
	r.ID = s.nextID
	s.restrictions = append(s.restrictions, r)
	return r.ID, nil
}
func (s *fakeStore) RestrictionMatch(ctx context.Context, restrictionType, value string) (bool, error) {
	for _, r := range s.restrictions {
		if string(r.Type) == restrictionType && r.Value == value {
			return true, nil
		}
	}
	return false, nil
}
func (s *fakeStore) Restrictions(ctx context.Context) ([]controlplane.Restriction, error) {
	return s.restrictions, nil
}
func (s *fakeStore) DeleteRestriction(ctx context.Context, id int64) error { return nil }
func (s *fakeStore) CreateCustomSignature(ctx context.Context, name, expression string) (int64, error) {
	s.nextID++
	s.signatures = append(s.signatures, controlplane.CustomSignature{ID: s.nextID, Name: name, Expression: expression, Enabled: true})
	return s.nextID, nil
}
func (s *fakeStore) CustomSignatures(ctx context.Context) ([]controlplane.CustomSignature, error) {
	return s.signatures, nil
}
func (s *fakeStore) SetCustomSignatureEnabled(ctx context.Context, id int64, enabled bool) error {
	for i := range s.signatures {
		if s.signatures[i].ID == id {
			s.signatures[i].Enabled = enabled
		}
	}
	return nil
}
func (s *fakeStore) CreatePatchingReport(ctx context.Context, wafLogID int64, reportJSON string) (int64, error) {
	return 1, nil
}
func (s *fakeStore) PatchingReport(ctx context.Context, id int64) (controlplane.PatchingReport, error) {
	return controlplane.PatchingReport{ID: id, ReportJSON: `{"attack_type":"SQLi"}`}, nil
}
func (s *fakeStore) CreateSuspiciousUserProfile(ctx context.Context, identifier, notes string) (int64, error) {
	return 1, nil
}
func (s *fakeStore) CreateWhitelistEntry(ctx context.Context, pattern, reason string) (int64, error) {
	return 1, nil
}
func (s *fakeStore) InsertSysLog(ctx context.Context, log controlplane.SysLog) (int64, error) {
	return 1, nil
}
func (s *fakeStore) SysLogs(ctx context.Context, limit int) ([]controlplane.SysLog, error) {
	return nil, nil
}
func (s *fakeStore) Close() error { return nil }

func newTestHandlerWithUser(t *testing.T, role controlplane.Role) (*Handler, string) {
	t.Helper()
	store := newFakeStore()
	hash, err := argon2id.CreateHash("correct-password", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("CreateHash: %v", err)
	}
	store.users["alice"] = controlplane.User{ID: 1, Username: "alice", PasswordHash: hash, Role: role}

	sessions := memory.NewSessionStore()
	h := New(store, nil, sessions, WithSessionTTL(time.Minute))
	return h, "correct-password"
}

func TestHandleLoginSuccess(t *testing.T) {
	h, password := newTestHandlerWithUser(t, controlplane.RoleAdmin)
	body, _ := json.Marshal(loginRequest{Username: "alice", Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.handleLogin(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a non-empty token")
	}
	if resp.Role != controlplane.RoleAdmin {
		t.Fatalf("expected admin role, got %q", resp.Role)
	}
}

func TestHandleLoginRejectsWrongPassword(t *testing.T) {
	h, _ := newTestHandlerWithUser(t, controlplane.RoleUser)
	body, _ := json.Marshal(loginRequest{Username: "alice", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.handleLogin(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireRoleRejectsInsufficientRole(t *testing.T) {
	h, password := newTestHandlerWithUser(t, controlplane.RoleUser)

	loginBody, _ := json.Marshal(loginRequest{Username: "alice", Password: password})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(loginBody))
	loginRR := httptest.NewRecorder()
	h.handleLogin(loginRR, loginReq)
	var resp loginResponse
	_ = json.Unmarshal(loginRR.Body.Bytes(), &resp)

	mux := h.Routes()
	req := httptest.NewRequest(http.MethodPost, "/api/restrictions", bytes.NewReader([]byte(`{"type":"ip","value":"1.2.3.4"}`)))
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user role on admin route, got %d", rr.Code)
	}
}

func TestRequireRoleRejectsMissingToken(t *testing.T) {
	h, _ := newTestHandlerWithUser(t, controlplane.RoleAdmin)
	mux := h.Routes()
	req := httptest.NewRequest(http.MethodGet, "/api/restrictions", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCustomSignatureLifecycle(t *testing.T) {
	h, password := newTestHandlerWithUser(t, controlplane.RoleAdmin)

	loginBody, _ := json.Marshal(loginRequest{Username: "alice", Password: password})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(loginBody))
	loginRR := httptest.NewRecorder()
	h.handleLogin(loginRR, loginReq)
	var login loginResponse
	_ = json.Unmarshal(loginRR.Body.Bytes(), &login)

	mux := h.Routes()

	createReq := httptest.NewRequest(http.MethodPost, "/api/signatures",
		bytes.NewReader([]byte(`{"name":"block-admin-path","expression":"path.contains(\"/admin\")"}`)))
	createReq.Header.Set("Authorization", "Bearer "+login.Token)
	createRR := httptest.NewRecorder()
	mux.ServeHTTP(createRR, createReq)
	if createRR.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", createRR.Code, createRR.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/signatures", nil)
	listReq.Header.Set("Authorization", "Bearer "+login.Token)
	listRR := httptest.NewRecorder()
	mux.ServeHTTP(listRR, listReq)
	if listRR.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listRR.Code)
	}
	var sigs []controlplane.CustomSignature
	if err := json.Unmarshal(listRR.Body.Bytes(), &sigs); err != nil {
		t.Fatalf("decode signatures: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Name != "block-admin-path" {
		t.Fatalf("expected one signature, got %+v", sigs)
	}
}
