package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLicenseView_DecodesBothSpellings(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		processed int64
		device    string
	}{
		{"canonical", `{"key":"A","processed_videos":3,"device_name":"Apple Device"}`, 3, "Apple Device"},
		{"legacy", `{"key":"A","processedVideos":5,"deviceName":"Windows PC"}`, 5, "Windows PC"},
		{"canonical wins", `{"key":"A","processed_videos":3,"processedVideos":9,"device_name":"Linux PC","deviceName":"x"}`, 3, "Linux PC"},
		{"neither", `{"key":"A"}`, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v LicenseView
			require.NoError(t, json.Unmarshal([]byte(tt.body), &v))
			assert.Equal(t, "A", v.Key)
			assert.Equal(t, tt.processed, v.ProcessedVideos)
			assert.Equal(t, tt.device, v.DeviceName)
		})
	}
}

func TestLicenseView_EncodesCanonically(t *testing.T) {
	data, err := json.Marshal(LicenseView{Key: "A", ProcessedVideos: 2, DeviceName: "Linux PC"})
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"processed_videos":2`)
	assert.Contains(t, s, `"device_name":"Linux PC"`)
	assert.NotContains(t, s, "processedVideos")
}

func TestRemainingDays(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}

	assert.Nil(t, RemainingDays(nil, now))
	assert.Equal(t, 2, *RemainingDays(at(36*time.Hour), now))
	assert.Equal(t, 1, *RemainingDays(at(24*time.Hour), now))
	assert.Equal(t, 1, *RemainingDays(at(time.Minute), now))
	assert.Equal(t, 0, *RemainingDays(at(0), now))
}

func TestLicenseRecord_State(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	unactivated := LicenseRecord{Key: "A"}
	assert.Equal(t, LicenseStateUnactivated, unactivated.State(now))

	active := LicenseRecord{Key: "A", ActivatedOn: &past, ExpiresAt: &future}
	assert.Equal(t, LicenseStateActive, active.State(now))

	expired := LicenseRecord{Key: "A", ActivatedOn: &past, ExpiresAt: &past}
	assert.Equal(t, LicenseStateExpired, expired.State(now))
}

func TestLicenseRecord_ViewHidesDevice(t *testing.T) {
	rec := LicenseRecord{Key: "A", DeviceHash: "secret-hash", DeviceName: "Linux PC", ProcessedVideos: 1}

	data, err := json.Marshal(rec.View())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-hash")
}

func TestLicenseRecord_CloneDoesNotAlias(t *testing.T) {
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	days := 30
	rec := LicenseRecord{Key: "A", ExpiresAt: &expires, DurationDays: &days}

	c := rec.Clone()
	*c.ExpiresAt = c.ExpiresAt.Add(time.Hour)
	*c.DurationDays = 60

	assert.True(t, rec.ExpiresAt.Equal(expires))
	assert.Equal(t, 30, *rec.DurationDays)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "ABC-1", NormalizeKey("  abc-1\t"))
	assert.Equal(t, "", NormalizeKey("   "))
}
