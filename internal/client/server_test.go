package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-portal/internal/api/dto"
	"github.com/spec-kit/grievance-portal/internal/domain"
)

var (
	baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	student = domain.Identity{ID: "stu-1", Name: "Asha", Email: "asha@uni.edu", Role: domain.RoleStudent}
	faculty = domain.Identity{ID: "fac-1", Name: "Dr. Rao", Email: "rao@uni.edu", Role: domain.RoleFaculty}
	admin   = domain.Identity{ID: "adm-1", Name: "Admin", Email: "admin@uni.edu", Role: domain.RoleAdmin}
	root    = domain.Identity{ID: "sup-1", Name: "Root", Email: "root@uni.edu", Role: domain.RoleSuperAdmin}
)

// fakeBackend serves the grievance API from memory.
type fakeBackend struct {
	mu         sync.Mutex
	accounts   map[string]domain.Identity
	passwords  map[string]string
	grievances []domain.Grievance
	nextID     int64
	files      map[int64][]byte
	lastForm   map[string]string
	listCalls  int
	failUpdate bool
	rejectAll  bool
}

func newFakeBackend(t *testing.T, seed ...domain.Grievance) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{
		accounts:   map[string]domain.Identity{},
		passwords:  map[string]string{},
		grievances: append([]domain.Grievance(nil), seed...),
		nextID:     100,
		files:      map[int64][]byte{},
	}
	for _, identity := range []domain.Identity{student, faculty, admin, root} {
		b.accounts[identity.Email] = identity
		b.passwords[identity.Email] = "secret1"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/grievances/login", b.login)
	mux.HandleFunc("/api/grievances/getAll", b.authed(b.list))
	mux.HandleFunc("/api/grievances/add", b.authed(b.add))
	mux.HandleFunc("/api/grievances/update/", b.authed(b.update))
	mux.HandleFunc("/api/grievances/download/", b.authed(b.download))
	mux.HandleFunc("/api/grievances/users", b.authed(b.users))
	mux.HandleFunc("/api/grievances/users/", b.authed(b.userAction))
	mux.HandleFunc("/api/grievances/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "mail server down"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) listCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

func (b *fakeBackend) setFailUpdate(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failUpdate = fail
}

func (b *fakeBackend) setRejectAll(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectAll = reject
}

// upload returns the stored file of id and the last submitted form.
func (b *fakeBackend) upload(id int64) ([]byte, map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[id], b.lastForm
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	body := dto.ErrorBody{}
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	identity, ok := b.accounts[req.Email]
	passwordOK := b.passwords[req.Email] == req.Password
	b.mu.Unlock()
	if !ok || !passwordOK {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	if req.Role != "" && !strings.EqualFold(req.Role, string(identity.Role)) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Role mismatch: you are registered as "+string(identity.Role))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": dto.AuthResponse{
		User:      dto.NewIdentityResponse(identity),
		Token:     "token-" + identity.ID,
		ExpiresAt: baseTime.Add(time.Hour),
	}})
}

func (b *fakeBackend) authed(next func(http.ResponseWriter, *http.Request, domain.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer token-")
		b.mu.Lock()
		var principal *domain.Identity
		for _, identity := range b.accounts {
			if identity.ID == token && !b.rejectAll {
				found := identity
				principal = &found
			}
		}
		b.mu.Unlock()
		if principal != nil {
			next(w, r, *principal)
			return
		}
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
	}
}

func (b *fakeBackend) list(w http.ResponseWriter, _ *http.Request, _ domain.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	writeJSON(w, http.StatusOK, map[string]any{"data": dto.NewGrievanceResponses(b.grievances)})
}

func (b *fakeBackend) add(w http.ResponseWriter, r *http.Request, principal domain.Identity) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastForm = map[string]string{}
	for key, values := range r.MultipartForm.Value {
		b.lastForm[key] = values[0]
	}
	category, _ := domain.ParseCategory(r.FormValue("category"))
	g := domain.Grievance{
		ID:            b.nextID,
		SubmitterID:   principal.ID,
		SubmitterName: principal.Name,
		Category:      category,
		Description:   r.FormValue("description"),
		Status:        domain.StatusPending,
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}
	if file, header, err := r.FormFile("file"); err == nil {
		data, _ := io.ReadAll(file)
		_ = file.Close()
		b.files[g.ID] = data
		g.Attachment = &domain.Attachment{FileName: header.Filename, ContentType: r.FormValue("fileType")}
	}
	b.nextID++
	b.grievances = append(b.grievances, g)
	writeJSON(w, http.StatusCreated, map[string]any{"data": dto.NewGrievanceResponse(g)})
}

func (b *fakeBackend) update(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/grievances/update/"), 10, 64)
	var req dto.UpdateGrievanceRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failUpdate {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "database unavailable")
		return
	}
	for i := range b.grievances {
		if b.grievances[i].ID == id {
			status, _ := domain.ParseStatus(req.Status)
			b.grievances[i].Status = status
			if req.ResolutionNotes != nil {
				b.grievances[i].ResolutionNotes = req.ResolutionNotes
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": dto.NewGrievanceResponse(b.grievances[i])})
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Grievance not found")
}

func (b *fakeBackend) download(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/grievances/download/"), 10, 64)
	b.mu.Lock()
	data, ok := b.files[id]
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Attachment not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
	_, _ = w.Write(data)
}

func (b *fakeBackend) users(w http.ResponseWriter, _ *http.Request, _ domain.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := make([]domain.Identity, 0, len(b.accounts))
	for _, identity := range b.accounts {
		list = append(list, identity)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": dto.NewIdentityResponses(list)})
}

func (b *fakeBackend) userAction(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/grievances/users/"), "/role")
	b.mu.Lock()
	defer b.mu.Unlock()
	for email, identity := range b.accounts {
		if identity.ID != id {
			continue
		}
		if r.Method == http.MethodDelete {
			delete(b.accounts, email)
			writeJSON(w, http.StatusOK, map[string]any{"data": dto.MessageResponse{Message: "User deleted successfully"}})
			return
		}
		var req dto.ChangeRoleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		identity.Role, _ = domain.ParseRole(req.Role)
		b.accounts[email] = identity
		writeJSON(w, http.StatusOK, map[string]any{"data": dto.MessageResponse{Message: "Role updated"}})
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
}

func newTestSession(t *testing.T, srv *httptest.Server) (*API, *SessionStore, *memory.Storage) {
	t.Helper()
	kv := memory.New()
	t.Cleanup(func() { _ = kv.Close() })
	api := NewAPI(srv.URL+"/api/grievances", 2*time.Second, zap.NewNop())
	return api, NewSessionStore(kv, api), kv
}
