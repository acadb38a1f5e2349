package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	apierrors "vidgate/internal/errors"
	"vidgate/internal/shared/testutil"
	"vidgate/pkg/contracts/domain"
)

// fakeSheet serves the values.get and values.update endpoints for one tab.
type fakeSheet struct {
	mu     sync.Mutex
	rows   [][]interface{}
	status int
	lastQ  string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/") {
		http.NotFound(w, r)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		w.Write([]byte(`{"error":{"code":403,"message":"caller does not have permission"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"range":          "Licenses!A1:I10",
			"majorDimension": "ROWS",
			"values":         f.rows,
		})
	case http.MethodPut:
		f.lastQ = r.URL.RawQuery
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.rows = body.Values
		json.NewEncoder(w).Encode(map[string]interface{}{"updatedRows": len(body.Values)})
	}
}

func newTestSheets(t *testing.T, f *fakeSheet) *Sheets {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	s, err := NewSheets(context.Background(), "sheet-1", "Licenses",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return s
}

func TestSheets_LoadSkipsHeaderAndBlankRows(t *testing.T) {
	f := &fakeSheet{rows: [][]interface{}{
		{"key", "plan", "activated_on", "device_hash", "device_name", "expires_at", "duration_days", "processed_videos", "version"},
		{"ABC-1", "monthly", "2026-03-13T12:00:00Z", "dev1", "Windows PC", "2026-04-12T12:00:00Z", "30", "4", "2"},
		{""},
		{"NEW-1", "yearly", "", "", "", "", "365"},
	}}
	s := newTestSheets(t, f)

	c, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Records, 2)

	active := c.Records[0]
	assert.Equal(t, "ABC-1", active.Key)
	require.NotNil(t, active.ActivatedOn)
	assert.Equal(t, testutil.FixedNow.Add(-24*time.Hour), *active.ActivatedOn)
	assert.Equal(t, int64(4), active.ProcessedVideos)
	assert.Equal(t, uint64(2), active.Version)

	fresh := c.Records[1]
	assert.Nil(t, fresh.ActivatedOn)
	assert.Nil(t, fresh.ExpiresAt)
	require.NotNil(t, fresh.DurationDays)
	assert.Equal(t, 365, *fresh.DurationDays)
}

func TestSheets_SaveWritesHeaderAndRows(t *testing.T) {
	f := &fakeSheet{}
	s := newTestSheets(t, f)

	rec := testutil.ActiveLicense("ABC-1", "dev1", 0)
	require.NoError(t, s.Save(context.Background(), Collection{Records: []domain.LicenseRecord{rec}}))

	assert.Contains(t, f.lastQ, "valueInputOption=RAW")
	require.Len(t, f.rows, 2)
	assert.Equal(t, "key", f.rows[0][0])
	assert.Equal(t, "ABC-1", f.rows[1][0])
	assert.Equal(t, "2026-03-14T12:00:00Z", f.rows[1][5])

	c, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Records, 1)
	assert.Equal(t, rec.DeviceHash, c.Records[0].DeviceHash)
	assert.True(t, rec.ExpiresAt.Equal(*c.Records[0].ExpiresAt))
}

func TestSheets_MalformedRow(t *testing.T) {
	f := &fakeSheet{rows: [][]interface{}{
		{"key"},
		{"ABC-1", "monthly", "yesterday"},
	}}
	_, err := newTestSheets(t, f).Load(context.Background())
	assert.True(t, errors.Is(err, apierrors.ErrNetwork))
}

func TestSheets_PermissionDenied(t *testing.T) {
	f := &fakeSheet{status: http.StatusForbidden}
	_, err := newTestSheets(t, f).Load(context.Background())
	assert.True(t, errors.Is(err, apierrors.ErrServerConfiguration))
}
