package pharmacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova-emr/clinova/internal/patients"
)

type gatedPatients struct {
	known map[string]bool
}

func (g gatedPatients) Lookup(ctx context.Context, patientID string) (patients.Identity, error) {
	if !g.known[patientID] {
		return patients.Identity{}, patients.ErrNotFound
	}
	return patients.Identity{PatientID: patientID, Surname: "Okafor", OtherNames: "Amaka"}, nil
}

func newTestServer(t *testing.T, repo *memoryRepo) *httptest.Server {
	t.Helper()
	renderer := &stubRenderer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := gatedPatients{known: map[string]bool{"PAT-001": true}}
	svc := NewService(repo, dir, repoItems{repo: repo}, renderer, nil, logger)
	handler := NewHandler(logger, svc, dir)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func patchEmpty(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateDispensationEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Paracetamol 500mg", "10.00", 50)
	srv := newTestServer(t, repo)

	resp := postJSON(t, srv.URL+"/patients/PAT-001/pharmacy/", `{
		"medication_name": "Malaria pack",
		"drug_orders": [{"drug_id": 1, "quantity": 2}]
	}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rec DispensationRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "PAT-001", rec.PatientID)
	assert.Equal(t, "20", rec.Total.String())
	assert.False(t, rec.Paid)
	require.Len(t, rec.Lines, 1)
	assert.Equal(t, "Paracetamol 500mg", rec.Lines[0].ItemName)
}

func TestCreateDispensationUnknownPatient(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Paracetamol 500mg", "10.00", 50)
	srv := newTestServer(t, repo)

	resp := postJSON(t, srv.URL+"/patients/PAT-404/pharmacy/", `{
		"medication_name": "x",
		"drug_orders": [{"drug_id": 1, "quantity": 1}]
	}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInsufficientStockProblemPayload(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Paracetamol 500mg", "10.00", 3)
	srv := newTestServer(t, repo)

	resp := postJSON(t, srv.URL+"/patients/PAT-001/pharmacy/", `{
		"medication_name": "x",
		"drug_orders": [{"drug_id": 1, "quantity": 10}]
	}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem struct {
		Title string `json:"title"`
		Meta  struct {
			DrugID    int64 `json:"drug_id"`
			Available int   `json:"available"`
			Requested int   `json:"requested"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "Insufficient Stock", problem.Title)
	assert.EqualValues(t, 1, problem.Meta.DrugID)
	assert.Equal(t, 3, problem.Meta.Available)
	assert.Equal(t, 10, problem.Meta.Requested)
}

func TestUpdateRejectsLineItemEdits(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Paracetamol 500mg", "10.00", 50)
	srv := newTestServer(t, repo)

	resp := postJSON(t, srv.URL+"/patients/PAT-001/pharmacy/", `{
		"medication_name": "x",
		"drug_orders": [{"drug_id": 1, "quantity": 1}]
	}`)
	var rec DispensationRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/patients/PAT-001/pharmacy/%d", srv.URL, rec.ID),
		bytes.NewBufferString(`{"drug_orders": [{"drug_id": 1, "quantity": 99}]}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "fixed at creation")
}

func TestMarkPaidEndpointTwice(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Paracetamol 500mg", "10.00", 50)
	srv := newTestServer(t, repo)

	resp := postJSON(t, srv.URL+"/patients/PAT-001/pharmacy/", `{
		"medication_name": "x",
		"drug_orders": [{"drug_id": 1, "quantity": 1}]
	}`)
	var rec DispensationRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()

	payURL := fmt.Sprintf("%s/patients/PAT-001/pharmacy/%d/mark-as-paid", srv.URL, rec.ID)

	resp = patchEmpty(t, payURL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var paid DispensationRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&paid))
	resp.Body.Close()
	assert.True(t, paid.Paid)

	resp = patchEmpty(t, payURL)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "already marked as paid")
}

func TestDownloadReceiptEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Paracetamol 500mg", "10.00", 50)
	srv := newTestServer(t, repo)

	resp := postJSON(t, srv.URL+"/patients/PAT-001/pharmacy/", `{
		"medication_name": "x",
		"drug_orders": [{"drug_id": 1, "quantity": 1}]
	}`)
	var rec DispensationRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()

	receiptURL := fmt.Sprintf("%s/patients/PAT-001/pharmacy/%d/download-receipt", srv.URL, rec.ID)

	// Unpaid records have no receipt.
	resp, err := http.Get(receiptURL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = patchEmpty(t, fmt.Sprintf("%s/patients/PAT-001/pharmacy/%d/mark-as-paid", srv.URL, rec.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(receiptURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
}

func TestWalkInSaleEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(1, "Paracetamol 500mg", "10.00", 50)
	srv := newTestServer(t, repo)

	resp := postJSON(t, srv.URL+"/walkin-sale", `{
		"customer_name": "John Doe",
		"drug_orders": [{"drug_id": 1, "quantity": 2}]
	}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "receipt_WALKIN-")
	require.Equal(t, 48, repo.stock[1])
}
