package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ausschreibungen/db"
	"ausschreibungen/internal/attach"
	"ausschreibungen/internal/audit"
	"ausschreibungen/internal/auth"
	"ausschreibungen/internal/folders"
	"ausschreibungen/internal/handlers"
	"ausschreibungen/internal/handlers/testutils"
	"ausschreibungen/models"
)

// MockStorage implements StorageInterface in memory and captures audit rows.
type MockStorage struct {
	records map[int]*models.Ausschreibung
	nextID  int
	user    *models.User

	auditEntries []*models.AuditEntry
	auditErr     error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{records: map[int]*models.Ausschreibung{}, nextID: 1}
}

func (m *MockStorage) ListAusschreibungen(ctx context.Context, limit int) ([]models.Ausschreibung, error) {
	out := []models.Ausschreibung{}
	for _, a := range m.records {
		out = append(out, *a)
	}
	return out, nil
}

func (m *MockStorage) GetAusschreibung(ctx context.Context, id int) (*models.Ausschreibung, error) {
	a, ok := m.records[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MockStorage) CreateAusschreibung(ctx context.Context, a *models.Ausschreibung) error {
	a.ID = m.nextID
	m.nextID++
	a.CreatedAt = time.Now()
	cp := *a
	m.records[a.ID] = &cp
	return nil
}

func (m *MockStorage) UpdateAusschreibung(ctx context.Context, id int, u models.AusschreibungUpdate) (*models.Ausschreibung, error) {
	a, ok := m.records[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Ort != nil {
		a.Ort = u.Ort
	}
	if u.Bearbeiter != nil {
		a.Bearbeiter = u.Bearbeiter
	}
	if u.Abgegeben != nil {
		a.Abgegeben = *u.Abgegeben
	}
	if u.Abgabefrist != nil {
		a.Abgabefrist = u.Abgabefrist
	}
	if u.Verzeichnis != nil {
		a.Verzeichnis = u.Verzeichnis
	}
	now := time.Now()
	a.UpdatedAt = &now
	cp := *a
	return &cp, nil
}

func (m *MockStorage) UpdateVerzeichnis(ctx context.Context, id int, path string) error {
	a, ok := m.records[id]
	if !ok {
		return db.ErrNotFound
	}
	a.Verzeichnis = &path
	return nil
}

func (m *MockStorage) DeleteAusschreibung(ctx context.Context, id int) error {
	if _, ok := m.records[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *MockStorage) OrderedColumns(ctx context.Context) ([]string, error) {
	return []string{"id", "abgabefrist", "name", "verzeichnis"}, nil
}

func (m *MockStorage) GetKPIs(ctx context.Context) (*db.KPIs, error) {
	return &db.KPIs{Total: len(m.records), Open: 1}, nil
}

func (m *MockStorage) GetByMonth(ctx context.Context) ([]db.MonthCount, error) {
	return []db.MonthCount{{Monat: "2025-03-01", N: 2}}, nil
}

func (m *MockStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, db.ErrNotFound
	}
	return m.user, nil
}

func (m *MockStorage) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	if m.auditErr != nil {
		return m.auditErr
	}
	e.At = time.Now()
	m.auditEntries = append(m.auditEntries, e)
	return nil
}

func (m *MockStorage) QueryAudit(ctx context.Context, f db.AuditFilter, limit, offset int) ([]models.AuditEntry, int64, error) {
	out := []models.AuditEntry{}
	for _, e := range m.auditEntries {
		out = append(out, *e)
	}
	return out, int64(len(out)), nil
}

func (m *MockStorage) ExportAudit(ctx context.Context, f db.AuditFilter, max int) ([]models.AuditEntry, error) {
	out := []models.AuditEntry{}
	for _, e := range m.auditEntries {
		out = append(out, *e)
	}
	return out, nil
}

func (m *MockStorage) auditActions() []string {
	var actions []string
	for _, e := range m.auditEntries {
		actions = append(actions, e.Action)
	}
	return actions
}

func newTestHandler(t *testing.T, store *MockStorage) (*handlers.Handler, string) {
	t.Helper()
	base := t.TempDir()
	locks := attach.NewPathLock()
	h := handlers.NewHandler(
		store,
		attach.NewStore(locks),
		folders.NewBinder(base, locks, nil),
		audit.NewRecorder(store, nil),
		auth.NewService("test-secret", time.Hour),
		1000,
		nil,
	)
	return h, base
}

func withActor(req *http.Request, role string) *http.Request {
	actor := &auth.Actor{UserID: 1, Email: "tester@example.com", Role: role}
	return req.WithContext(auth.WithActor(req.Context(), actor))
}

func seedRecord(store *MockStorage, id int, name string, verzeichnis *string) {
	store.records[id] = &models.Ausschreibung{ID: id, Name: name, Verzeichnis: verzeichnis, CreatedAt: time.Now()}
	if id >= store.nextID {
		store.nextID = id + 1
	}
}

func TestListAusschreibungenHandler(t *testing.T) {
	store := NewMockStorage()
	seedRecord(store, 1, "Tender X", nil)
	h, _ := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/ausschreibungen", nil)
	w := httptest.NewRecorder()
	h.ListAusschreibungenHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "Tender X")
}

func TestCreateAusschreibungAllocatesFolderFromID(t *testing.T) {
	store := NewMockStorage()
	h, base := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/ausschreibungen",
		strings.NewReader(`{"name": "Tender X"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.CreateAusschreibungHandler(w, withActor(req, auth.RoleVertrieb))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created models.Ausschreibung
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	require.NotZero(t, created.ID)
	require.NotNil(t, created.Verzeichnis)
	require.Equal(t, filepath.Join(base, strconv.Itoa(created.ID)), *created.Verzeichnis)

	info, err := os.Stat(*created.Verzeichnis)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.Equal(t, []string{"create"}, store.auditActions())
}

func TestCreateAusschreibungFolderConflict(t *testing.T) {
	store := NewMockStorage()
	h, base := newTestHandler(t, store)

	first := httptest.NewRequest(http.MethodPost, "/api/ausschreibungen",
		strings.NewReader(`{"name": "First", "ordnername": "Project A"}`))
	w := httptest.NewRecorder()
	h.CreateAusschreibungHandler(w, withActor(first, auth.RoleVertrieb))
	require.Equal(t, http.StatusCreated, w.Result().StatusCode)

	// Same folder name again without consent: distinguishable conflict.
	second := httptest.NewRequest(http.MethodPost, "/api/ausschreibungen",
		strings.NewReader(`{"name": "Second", "ordnername": "Project A"}`))
	w = httptest.NewRecorder()
	h.CreateAusschreibungHandler(w, withActor(second, auth.RoleVertrieb))
	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)
	body, _ := io.ReadAll(res.Body)
	require.Contains(t, string(body), "folder_exists")

	// Explicit reuse shares the folder.
	third := httptest.NewRequest(http.MethodPost, "/api/ausschreibungen",
		strings.NewReader(`{"name": "Third", "ordnername": "Project A", "useExisting": true}`))
	w = httptest.NewRecorder()
	h.CreateAusschreibungHandler(w, withActor(third, auth.RoleVertrieb))
	res = w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created models.Ausschreibung
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	require.NotNil(t, created.Verzeichnis)
	require.Equal(t, filepath.Join(base, "Project_A"), *created.Verzeichnis)
}

func TestCreateAusschreibungRequiresName(t *testing.T) {
	store := NewMockStorage()
	h, _ := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/ausschreibungen",
		strings.NewReader(`{"ort": "Berlin"}`))
	w := httptest.NewRecorder()
	h.CreateAusschreibungHandler(w, withActor(req, auth.RoleVertrieb))
	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	require.Empty(t, store.records)
}

func TestCreateUnusableOrdnernameSkipsConflictCheck(t *testing.T) {
	store := NewMockStorage()
	h, base := newTestHandler(t, store)

	// "***" sanitizes to nothing and falls back to the record id; a stray
	// base/0 folder must not turn that into a conflict.
	require.NoError(t, os.Mkdir(filepath.Join(base, "0"), 0o755))

	req := httptest.NewRequest(http.MethodPost, "/api/ausschreibungen",
		strings.NewReader(`{"name": "Tender X", "ordnername": "***"}`))
	w := httptest.NewRecorder()
	h.CreateAusschreibungHandler(w, withActor(req, auth.RoleVertrieb))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created models.Ausschreibung
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	require.NotNil(t, created.Verzeichnis)
	require.Equal(t, filepath.Join(base, strconv.Itoa(created.ID)), *created.Verzeichnis)
}

func TestAuditFailureDoesNotBlockMutation(t *testing.T) {
	store := NewMockStorage()
	store.auditErr = errors.New("audit db down")
	h, _ := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/ausschreibungen",
		strings.NewReader(`{"name": "Tender X"}`))
	w := httptest.NewRecorder()
	h.CreateAusschreibungHandler(w, withActor(req, auth.RoleVertrieb))

	require.Equal(t, http.StatusCreated, w.Result().StatusCode)
	require.Len(t, store.records, 1)
}

func TestUpdateAusschreibungHandler(t *testing.T) {
	store := NewMockStorage()
	seedRecord(store, 5, "Old Name", nil)
	h, _ := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodPatch, "/api/ausschreibungen/5",
		strings.NewReader(`{"name": "New Name"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w := httptest.NewRecorder()
	h.UpdateAusschreibungHandler(w, withActor(req, auth.RoleVertrieb))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "New Name", store.records[5].Name)

	require.Equal(t, []string{"update"}, store.auditActions())
	entry := store.auditEntries[0]
	require.Contains(t, string(entry.Before), "Old Name")
	require.Contains(t, string(entry.After), "New Name")
}

func TestUpdateMovesFolderBeforeRowUpdate(t *testing.T) {
	store := NewMockStorage()
	h, base := newTestHandler(t, store)

	src := filepath.Join(base, "5")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "report.pdf"), []byte("%PDF"), 0o644))
	seedRecord(store, 5, "Tender X", &src)

	req := httptest.NewRequest(http.MethodPatch, "/api/ausschreibungen/5",
		strings.NewReader(`{"ordnername": "renamed"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w := httptest.NewRecorder()
	h.UpdateAusschreibungHandler(w, withActor(req, auth.RoleVertrieb))

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, filepath.Join(base, "renamed"), *store.records[5].Verzeichnis)

	data, err := os.ReadFile(filepath.Join(base, "renamed", "report.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(data))
}

func TestUpdateRenameConflictLeavesRecordUntouched(t *testing.T) {
	store := NewMockStorage()
	h, base := newTestHandler(t, store)

	src := filepath.Join(base, "5")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "taken"), 0o755))
	seedRecord(store, 5, "Tender X", &src)

	req := httptest.NewRequest(http.MethodPatch, "/api/ausschreibungen/5",
		strings.NewReader(`{"ordnername": "taken"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w := httptest.NewRecorder()
	h.UpdateAusschreibungHandler(w, withActor(req, auth.RoleVertrieb))

	require.Equal(t, http.StatusConflict, w.Result().StatusCode)
	require.Equal(t, src, *store.records[5].Verzeichnis)
	_, err := os.Stat(src)
	require.NoError(t, err)
	require.Empty(t, store.auditEntries)
}

func TestUpdateAusschreibungNotFound(t *testing.T) {
	store := NewMockStorage()
	h, _ := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodPatch, "/api/ausschreibungen/99",
		strings.NewReader(`{"name": "x"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"id": "99"})
	w := httptest.NewRecorder()
	h.UpdateAusschreibungHandler(w, withActor(req, auth.RoleVertrieb))
	require.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestDeleteAusschreibungRemovesRowAndFolder(t *testing.T) {
	store := NewMockStorage()
	h, base := newTestHandler(t, store)

	folder := filepath.Join(base, "5")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "f.txt"), []byte("x"), 0o644))
	seedRecord(store, 5, "Doomed", &folder)

	req := httptest.NewRequest(http.MethodDelete, "/api/ausschreibungen/5", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w := httptest.NewRecorder()
	h.DeleteAusschreibungHandler(w, withActor(req, auth.RoleAdmin))

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.NotContains(t, store.records, 5)
	_, err := os.Stat(folder)
	require.True(t, os.IsNotExist(err))

	// A missing folder lists as empty, not as an error.
	entries, err := attach.NewStore(nil).List(folder)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.Equal(t, []string{"delete"}, store.auditActions())
	require.Contains(t, string(store.auditEntries[0].Before), "Doomed")
}

func TestVerzeichnisListMissingFolder(t *testing.T) {
	store := NewMockStorage()
	seedRecord(store, 7, "No Folder Yet", nil)
	h, _ := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/verzeichnis/7", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "7"})
	w := httptest.NewRecorder()
	h.VerzeichnisHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out struct {
		Folder  string         `json:"folder"`
		Entries []attach.Entry `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Equal(t, "7", out.Folder)
	require.Empty(t, out.Entries)
}

func uploadRequest(t *testing.T, id string, names []string, contents []string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, name := range names {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(contents[i]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/verzeichnis/"+id, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testutils.WithChiURLParams(req, map[string]string{"id": id})
}

func TestUploadSuffixesCollisions(t *testing.T) {
	store := NewMockStorage()
	seedRecord(store, 5, "Tender X", nil)
	h, base := newTestHandler(t, store)

	req := uploadRequest(t, "5", []string{"a.txt", "a.txt"}, []string{"first", "second"})
	w := httptest.NewRecorder()
	h.UploadHandler(w, withActor(req, auth.RoleVertrieb))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out struct {
		Saved  []string `json:"saved"`
		Errors []any    `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Equal(t, []string{"a.txt", "a (1).txt"}, out.Saved)
	require.Empty(t, out.Errors)

	// Both contents are independently retrievable and distinct.
	data, err := os.ReadFile(filepath.Join(base, "5", "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "first", string(data))
	data, err = os.ReadFile(filepath.Join(base, "5", "a (1).txt"))
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	// The first upload healed the missing stored path.
	require.NotNil(t, store.records[5].Verzeichnis)
	require.Equal(t, filepath.Join(base, "5"), *store.records[5].Verzeichnis)
}

func TestStreamFile(t *testing.T) {
	store := NewMockStorage()
	seedRecord(store, 5, "Tender X", nil)
	h, base := newTestHandler(t, store)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "5"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "5", "report.pdf"), []byte("%PDF-1.4"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/api/verzeichnis/5?name=report.pdf", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w := httptest.NewRecorder()
	h.VerzeichnisHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "application/pdf", res.Header.Get("Content-Type"))
	require.Contains(t, res.Header.Get("Content-Disposition"), "attachment")
	body, _ := io.ReadAll(res.Body)
	require.Equal(t, "%PDF-1.4", string(body))

	// Inline disposition on request.
	req = httptest.NewRequest(http.MethodGet, "/api/verzeichnis/5?name=report.pdf&inline=1", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w = httptest.NewRecorder()
	h.VerzeichnisHandler(w, req)
	require.Contains(t, w.Result().Header.Get("Content-Disposition"), "inline")

	// Unknown file is a not_found, not a crash.
	req = httptest.NewRequest(http.MethodGet, "/api/verzeichnis/5?name=nope.bin", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w = httptest.NewRecorder()
	h.VerzeichnisHandler(w, req)
	require.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestDeleteFileHandler(t *testing.T) {
	store := NewMockStorage()
	seedRecord(store, 5, "Tender X", nil)
	h, base := newTestHandler(t, store)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "5"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "5", "gone.txt"), []byte("x"), 0o644))

	req := httptest.NewRequest(http.MethodDelete, "/api/verzeichnis/5?name=gone.txt", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w := httptest.NewRecorder()
	h.DeleteFileHandler(w, withActor(req, auth.RoleViewer))

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	_, err := os.Stat(filepath.Join(base, "5", "gone.txt"))
	require.True(t, os.IsNotExist(err))
	require.Equal(t, []string{"delete"}, store.auditActions())
}

func TestDeleteFileRejectsAnonymous(t *testing.T) {
	store := NewMockStorage()
	h, _ := newTestHandler(t, store)

	gate := h.RequireAuth(http.HandlerFunc(h.DeleteFileHandler))
	req := httptest.NewRequest(http.MethodDelete, "/api/verzeichnis/5?name=x.txt", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "5"})
	w := httptest.NewRecorder()
	gate.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestRequireWriterGate(t *testing.T) {
	store := NewMockStorage()
	h, _ := newTestHandler(t, store)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	gate := h.RequireWriter(ok)

	req := httptest.NewRequest(http.MethodPost, "/api/ausschreibungen", nil)
	w := httptest.NewRecorder()
	gate.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)

	w = httptest.NewRecorder()
	gate.ServeHTTP(w, withActor(httptest.NewRequest(http.MethodPost, "/api/ausschreibungen", nil), auth.RoleViewer))
	require.Equal(t, http.StatusForbidden, w.Result().StatusCode)

	w = httptest.NewRecorder()
	gate.ServeHTTP(w, withActor(httptest.NewRequest(http.MethodPost, "/api/ausschreibungen", nil), auth.RoleVertrieb))
	require.Equal(t, http.StatusNoContent, w.Result().StatusCode)
}

func TestAuditHandlersAdminOnly(t *testing.T) {
	store := NewMockStorage()
	h, _ := newTestHandler(t, store)

	gate := h.RequireAdmin(http.HandlerFunc(h.AuditQueryHandler))
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/audit", nil), auth.RoleVertrieb)
	w := httptest.NewRecorder()
	gate.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Result().StatusCode)

	req = withActor(httptest.NewRequest(http.MethodGet, "/api/audit", nil), auth.RoleAdmin)
	w = httptest.NewRecorder()
	gate.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestAuditExportWritesBOMAndRecordsExport(t *testing.T) {
	store := NewMockStorage()
	h, _ := newTestHandler(t, store)

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/audit/export", nil), auth.RoleAdmin)
	w := httptest.NewRecorder()
	h.AuditExportHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/csv; charset=utf-8", res.Header.Get("Content-Type"))
	require.Contains(t, res.Header.Get("Content-Disposition"), "audit_")

	body, _ := io.ReadAll(res.Body)
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))

	require.Equal(t, []string{"export"}, store.auditActions())
}

func TestLoginHandler(t *testing.T) {
	hash, err := auth.HashPassword("geheim123")
	require.NoError(t, err)

	store := NewMockStorage()
	store.user = &models.User{ID: 3, Email: "admin@example.com", Role: auth.RoleAdmin, PasswordHash: hash}
	h, _ := newTestHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"email": "admin@example.com", "password": "geheim123"}`))
	w := httptest.NewRecorder()
	h.LoginHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.NotEmpty(t, out.Token)

	// Wrong password: rejected, but the attempt is still audited.
	req = httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"email": "admin@example.com", "password": "falsch"}`))
	w = httptest.NewRecorder()
	h.LoginHandler(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)

	require.Equal(t, []string{"login", "login"}, store.auditActions())
	require.Contains(t, string(store.auditEntries[0].After), `"success":true`)
	require.Contains(t, string(store.auditEntries[1].After), `"success":false`)
}

func TestKPIsHandler(t *testing.T) {
	store := NewMockStorage()
	seedRecord(store, 1, "A", nil)
	h, _ := newTestHandler(t, store)

	w := httptest.NewRecorder()
	h.KPIsHandler(w, httptest.NewRequest(http.MethodGet, "/api/kpis", nil))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, _ := io.ReadAll(res.Body)
	require.Contains(t, string(body), `"total":1`)
}

func TestColumnsHandler(t *testing.T) {
	store := NewMockStorage()
	h, _ := newTestHandler(t, store)

	w := httptest.NewRecorder()
	h.ColumnsHandler(w, httptest.NewRequest(http.MethodGet, "/api/ausschreibungen/columns", nil))

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var cols []string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&cols))
	require.Equal(t, "id", cols[0])
}
