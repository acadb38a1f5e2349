package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apierrors "vidgate/internal/errors"
	"vidgate/pkg/contracts/domain"
)

// maxDocumentBytes bounds the size of a collection read from the document service.
const maxDocumentBytes = 8 << 20

// HTTPDocument keeps the collection as one JSON document on a generic
// key-value document service. GET returns the document, PUT replaces it.
type HTTPDocument struct {
	url       string
	keyHeader string
	masterKey string
	client    *http.Client
}

// HTTPDocumentOption configures an HTTPDocument.
type HTTPDocumentOption func(*HTTPDocument)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) HTTPDocumentOption {
	return func(d *HTTPDocument) { d.client = c }
}

// NewHTTPDocument returns a document-service store. The master key is sent in
// keyHeader on every request.
func NewHTTPDocument(url, keyHeader, masterKey string, timeout time.Duration, opts ...HTTPDocumentOption) *HTTPDocument {
	d := &HTTPDocument{
		url:       url,
		keyHeader: keyHeader,
		masterKey: masterKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load fetches the whole collection. The service may wrap the array as
// {"record": [...]} or return it bare.
func (d *HTTPDocument) Load(ctx context.Context) (Collection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return Collection{}, fmt.Errorf("build document request: %w", err)
	}
	d.authorize(req)

	body, err := d.do(req)
	if err != nil {
		return Collection{}, err
	}

	trimmed := bytes.TrimSpace(body)
	var c Collection
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &c.Records)
	} else {
		err = json.Unmarshal(trimmed, &c)
	}
	if err != nil {
		return Collection{}, fmt.Errorf("decode license document: %v: %w", err, apierrors.ErrNetwork)
	}
	return c, nil
}

// Save replaces the whole collection.
func (d *HTTPDocument) Save(ctx context.Context, c Collection) error {
	records := c.Records
	if records == nil {
		records = []domain.LicenseRecord{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode license document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build document request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	d.authorize(req)

	_, err = d.do(req)
	return err
}

// Close releases idle connections.
func (d *HTTPDocument) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *HTTPDocument) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if d.masterKey != "" {
		req.Header.Set(d.keyHeader, d.masterKey)
	}
}

// do performs req and maps transport and status failures onto the error taxonomy.
func (d *HTTPDocument) do(req *http.Request) ([]byte, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %v: %w", req.Method, req.URL.Redacted(), err, apierrors.ErrNetwork)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read document response: %v: %w", err, apierrors.ErrNetwork)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("document service rejected credentials (%d): %w", resp.StatusCode, apierrors.ErrServerConfiguration)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("document service returned %d: %w", resp.StatusCode, apierrors.ErrNetwork)
	}
	return body, nil
}
