package export

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova-emr/clinova/internal/pharmacy"
)

func testReceiptData() pharmacy.ReceiptData {
	return pharmacy.ReceiptData{
		PatientName: "Okafor, Amaka",
		PatientID:   "PAT-001",
		Record: pharmacy.DispensationRecord{
			ID:        42,
			PatientID: "PAT-001",
			Lines: []pharmacy.LineItem{
				{ItemID: 1, ItemName: "Paracetamol 500mg", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
				{ItemID: 2, ItemName: "Amoxicillin 250mg", Quantity: 3, UnitPrice: decimal.RequireFromString("5.00")},
			},
			Total: decimal.RequireFromString("35.00"),
			Paid:  true,
		},
		GeneratedAt: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestRenderDispensation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")

		require.NoError(t, r.ParseMultipartForm(10<<20))

		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()

		htmlContent, err := io.ReadAll(file)
		require.NoError(t, err)

		html := string(htmlContent)
		assert.Contains(t, html, "Okafor, Amaka")
		assert.Contains(t, html, "Paracetamol 500mg")
		assert.Contains(t, html, "35.00")
		assert.Contains(t, html, "PAID")

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("MOCK-PDF-CONTENT"))
	}))
	defer srv.Close()

	exporter, err := NewReceiptExporter(srv.URL, srv.Client())
	require.NoError(t, err)

	pdfBytes, err := exporter.RenderDispensation(context.Background(), testReceiptData())
	require.NoError(t, err)
	assert.Equal(t, "MOCK-PDF-CONTENT", string(pdfBytes))
}

func TestRenderWalkIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))

		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()

		htmlContent, err := io.ReadAll(file)
		require.NoError(t, err)

		html := string(htmlContent)
		assert.Contains(t, html, "WALKIN-20250314-ab12cd34")
		assert.Contains(t, html, "INV-20250314-ab12cd34")
		assert.Contains(t, html, "John Doe")
		assert.Contains(t, html, "2.50")

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("MOCK-PDF-CONTENT"))
	}))
	defer srv.Close()

	exporter, err := NewReceiptExporter(srv.URL, srv.Client())
	require.NoError(t, err)

	data := pharmacy.WalkInReceiptData{
		Sale: pharmacy.WalkInSaleRecord{
			ReceiptNumber: "WALKIN-20250314-ab12cd34",
			InvoiceNumber: "INV-20250314-ab12cd34",
			CustomerName:  "John Doe",
			Lines: []pharmacy.LineItem{
				{ItemID: 2, ItemName: "Vitamin C", Quantity: 1, UnitPrice: decimal.RequireFromString("2.50")},
			},
			Total: decimal.RequireFromString("2.50"),
		},
		GeneratedAt: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
	}

	pdfBytes, err := exporter.RenderWalkIn(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "MOCK-PDF-CONTENT", string(pdfBytes))
}

func TestRenderEmptyEndpoint(t *testing.T) {
	exporter, err := NewReceiptExporter("", nil)
	require.NoError(t, err)

	_, err = exporter.RenderDispensation(context.Background(), testReceiptData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint required")
}

func TestRenderGotenbergError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Invalid HTML"))
	}))
	defer srv.Close()

	exporter, err := NewReceiptExporter(srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = exporter.RenderDispensation(context.Background(), testReceiptData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gotenberg response 400")
}
