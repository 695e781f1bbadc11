// Package export renders pharmacy receipts to PDF through Gotenberg.
package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinova-emr/clinova/internal/pharmacy"
	"github.com/clinova-emr/clinova/web"
)

// ReceiptExporter wraps Gotenberg interactions for receipt PDF generation.
type ReceiptExporter struct {
	Endpoint  string
	Client    *http.Client
	templates *template.Template
}

// NewReceiptExporter creates a ReceiptExporter with parsed templates.
func NewReceiptExporter(endpoint string, client *http.Client) (*ReceiptExporter, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("January 2, 2006")
		},
		"formatDatePtr": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return ""
			}
			return t.Format("January 2, 2006")
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006 15:04")
		},
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
	}

	tpl, err := template.New("receipts").Funcs(funcMap).ParseFS(
		web.Templates,
		"templates/reports/receipt_pdf.html",
		"templates/reports/walkin_receipt_pdf.html",
	)
	if err != nil {
		return nil, fmt.Errorf("parse receipt templates: %w", err)
	}

	return &ReceiptExporter{
		Endpoint:  endpoint,
		Client:    client,
		templates: tpl,
	}, nil
}

// RenderDispensation renders the patient dispensation receipt.
func (e *ReceiptExporter) RenderDispensation(ctx context.Context, data pharmacy.ReceiptData) ([]byte, error) {
	return e.convert(ctx, "receipt_pdf.html", data, "receipt.html")
}

// RenderWalkIn renders the walk-in sale receipt.
func (e *ReceiptExporter) RenderWalkIn(ctx context.Context, data pharmacy.WalkInReceiptData) ([]byte, error) {
	return e.convert(ctx, "walkin_receipt_pdf.html", data, "walkin-receipt.html")
}

func (e *ReceiptExporter) convert(ctx context.Context, templateName string, data any, filename string) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("receipt exporter not initialized")
	}
	endpoint := strings.TrimRight(e.Endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("gotenberg endpoint required")
	}
	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	html, err := e.buildHTML(templateName, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, err
	}

	// A5 portrait suits counter receipts better than letter.
	fields := map[string]string{
		"paperWidth":   "5.8",
		"paperHeight":  "8.3",
		"marginTop":    "0.4",
		"marginBottom": "0.4",
		"marginLeft":   "0.4",
		"marginRight":  "0.4",
		"waitDelay":    "100",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("gotenberg response %d: %s", resp.StatusCode, string(data))
	}

	return io.ReadAll(resp.Body)
}

func (e *ReceiptExporter) buildHTML(name string, data any) (string, error) {
	if e.templates == nil {
		return "", fmt.Errorf("templates not initialized")
	}
	buf := &bytes.Buffer{}
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
