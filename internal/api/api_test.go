package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nexusacademy/inscriptio/internal/config"
	"github.com/nexusacademy/inscriptio/internal/export"
	"github.com/nexusacademy/inscriptio/internal/ingest"
	"github.com/nexusacademy/inscriptio/internal/model"
	"github.com/nexusacademy/inscriptio/internal/repository"
)

const adminKey = "plusULTRA2k1"

type fakeBlobs struct {
	objects map[string][]byte
	urlErr  error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) ProofURL(ctx context.Context, key string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://cdn.test/preuves/" + key, nil
}

func newTestServer(t *testing.T) (http.Handler, *repository.Memory, *fakeBlobs) {
	return newTestServerWithFormat(t, config.ResponseJSON)
}

func newTestServerWithFormat(t *testing.T, format config.ResponseFormat) (http.Handler, *repository.Memory, *fakeBlobs) {
	t.Helper()
	cfg := &config.Config{
		AdminKey:       adminKey,
		MaxFileSize:    10 << 20,
		StaticDir:      t.TempDir(),
		ResponseFormat: format,
	}
	mem := repository.NewMemory()
	blobs := newFakeBlobs()
	formPipeline := ingest.New(blobs, mem, ingest.Policy{RequireProof: true, TrackStatus: true})
	apiPipeline := ingest.New(blobs, mem, ingest.Policy{RequireCohort: true, TrackStatus: true})
	engine := export.NewEngine(mem)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, formPipeline, apiPipeline, engine, blobs, logger)
	return srv.Routes(), mem, blobs
}

// pngBytes is a fake 3KB proof: a PNG signature followed by padding, enough
// for content-type sniffing.
func pngBytes() []byte {
	data := make([]byte, 3<<10)
	copy(data, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	return data
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestFormationSubmitEndToEnd(t *testing.T) {
	handler, mem, blobs := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"name":     "Alice",
		"whatsapp": "+1555",
		"cohorte":  "Jan",
	}, "proof-upload", "recu.png", pngBytes())
	req := httptest.NewRequest(http.MethodPost, "/formation", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	subs, err := mem.List(context.Background(), "", false)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Alice", subs[0].Nom)
	assert.Equal(t, model.StatusPending, subs[0].Status)
	require.NotNil(t, subs[0].ProofKey)
	assert.Equal(t, pngBytes(), blobs.objects[*subs[0].ProofKey])

	// The new row is visible in the cohort listing.
	req = httptest.NewRequest(http.MethodGet, "/api/inscrits?cohorte=Jan", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alice")

	// And in the spreadsheet export.
	req = httptest.NewRequest(http.MethodGet, "/api/export/excel?cohorte=Jan", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="inscriptions_Jan.xlsx"`, rec.Header().Get("Content-Disposition"))
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Jan")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[1][1])
}

func TestFormationSubmitMissingProof(t *testing.T) {
	handler, mem, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"nom":      "Alice",
		"whatsapp": "+1555",
	}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/formation", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "preuve de paiement")

	subs, err := mem.List(context.Background(), "", false)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestFormationSubmitMissingFields(t *testing.T) {
	handler, _, _ := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"whatsapp": "+1555",
	}, "proof-upload", "recu.png", pngBytes())
	req := httptest.NewRequest(http.MethodPost, "/formation", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "nom")
}

func TestAdminRequiresKey(t *testing.T) {
	handler, mem, _ := newTestServer(t)
	seed(t, mem, "Alice", "Jan")

	req := httptest.NewRequest(http.MethodGet, "/admin?cle=wrong", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Alice")
}

func TestAdminListsWithProofURLs(t *testing.T) {
	handler, mem, _ := newTestServer(t)
	key := "preuve_Alice_1700000000.png"
	sub := model.Submission{ID: "1", Nom: "Alice", Whatsapp: "+1555", Cohorte: "Jan", ProofKey: &key}
	require.NoError(t, mem.Insert(context.Background(), &sub))

	req := httptest.NewRequest(http.MethodGet, "/admin?cle="+adminKey, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alice")
	assert.Contains(t, rec.Body.String(), "https://cdn.test/preuves/"+key)
}

func TestRegisterRequiresCohorte(t *testing.T) {
	handler, mem, _ := newTestServer(t)

	payload := `{"nom":"Dupont","prenom":"Alice","whatsapp":"+1555"}`
	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cohorte")

	subs, err := mem.List(context.Background(), "", false)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestRegisterCreatesSubmission(t *testing.T) {
	handler, mem, _ := newTestServer(t)

	payload := `{"nom":"Dupont","prenom":"Alice","whatsapp":"+1555","id_be":"BE-7","cohorte":"Jan"}`
	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Success bool             `json:"success"`
		Data    model.Submission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Dupont Alice", resp.Data.Nom)
	assert.Equal(t, "Jan", resp.Data.Cohorte)

	subs, err := mem.List(context.Background(), "Jan", false)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Nil(t, subs[0].ProofKey)
}

func TestInscritsRequiresCohorte(t *testing.T) {
	handler, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/inscrits", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInscritsFilterExcludesOtherCohorts(t *testing.T) {
	handler, mem, _ := newTestServer(t)
	seed(t, mem, "Alice", "Jan")
	seed(t, mem, "Bob", "Fev")

	req := httptest.NewRequest(http.MethodGet, "/api/inscrits?cohorte=Fev", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bob")
	assert.NotContains(t, rec.Body.String(), "Alice")
}

func TestCohortesEnumeratesLabels(t *testing.T) {
	handler, mem, _ := newTestServer(t)
	seed(t, mem, "Alice", "Jan")
	seed(t, mem, "Bob", "Fev")
	seed(t, mem, "Chloé", "Jan")

	req := httptest.NewRequest(http.MethodGet, "/api/cohortes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var labels []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &labels))
	assert.Equal(t, []string{"Jan", "Fev"}, labels)
}

func TestExportRequiresCohorte(t *testing.T) {
	handler, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/export/excel", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// failingStore simulates a record store whose every query fails.
type failingStore struct{}

func (failingStore) List(ctx context.Context, cohorte string, ascending bool) ([]model.Submission, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) DistinctCohortes(ctx context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestAdminDegradesToEmptyListOnQueryFailure(t *testing.T) {
	cfg := &config.Config{
		AdminKey:       adminKey,
		MaxFileSize:    10 << 20,
		StaticDir:      t.TempDir(),
		ResponseFormat: config.ResponseJSON,
	}
	mem := repository.NewMemory()
	blobs := newFakeBlobs()
	formPipeline := ingest.New(blobs, mem, ingest.Policy{RequireProof: true})
	apiPipeline := ingest.New(blobs, mem, ingest.Policy{RequireCohort: true})
	engine := export.NewEngine(failingStore{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(cfg, formPipeline, apiPipeline, engine, blobs, logger).Routes()

	req := httptest.NewRequest(http.MethodGet, "/admin?cle="+adminKey, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Inscriptions []model.Submission `json:"inscriptions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Inscriptions)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAdminKeepsRowWhenProofURLFails(t *testing.T) {
	handler, mem, blobs := newTestServer(t)
	blobs.urlErr = errors.New("presign failed")
	key := "preuve_Alice_1700000000.png"
	sub := model.Submission{ID: "1", Nom: "Alice", Whatsapp: "+1555", Cohorte: "Jan", ProofKey: &key}
	require.NoError(t, mem.Insert(context.Background(), &sub))

	req := httptest.NewRequest(http.MethodGet, "/admin?cle="+adminKey, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alice")
	assert.NotContains(t, rec.Body.String(), "preuve_url")
}

func TestFormationSubmitRedirectFlavor(t *testing.T) {
	handler, _, _ := newTestServerWithFormat(t, config.ResponseRedirect)

	body, contentType := multipartBody(t, map[string]string{
		"nom":      "Alice",
		"whatsapp": "+1555",
	}, "proof-upload", "recu.png", pngBytes())
	req := httptest.NewRequest(http.MethodPost, "/formation", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/formation", location.Path)
	assert.Equal(t, msgSuccess, location.Query().Get("message"))
	assert.Empty(t, location.Query().Get("error"))
}

func TestFormationSubmitRedirectFlavorCarriesError(t *testing.T) {
	handler, mem, _ := newTestServerWithFormat(t, config.ResponseRedirect)

	body, contentType := multipartBody(t, map[string]string{
		"nom":      "Alice",
		"whatsapp": "+1555",
	}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/formation", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, msgProofMissing, location.Query().Get("error"))

	subs, err := mem.List(context.Background(), "", false)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func seed(t *testing.T, mem *repository.Memory, nom, cohorte string) {
	t.Helper()
	sub := model.Submission{
		ID: nom, Nom: nom, Whatsapp: "+1555", Cohorte: cohorte,
		Status: model.StatusPending,
	}
	require.NoError(t, mem.Insert(context.Background(), &sub))
}
