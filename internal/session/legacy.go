package session

import "vidgate/pkg/contracts/domain"

// Legacy renders a license view for consumers that predate the canonical
// field names. The usage counter and device label appear under both
// spellings with identical values.
func Legacy(v domain.LicenseView) map[string]any {
	return map[string]any{
		"key":              v.Key,
		"plan":             v.Plan,
		"expiresAt":        v.ExpiresAt,
		"activatedAt":      v.ActivatedAt,
		"processed_videos": v.ProcessedVideos,
		"processedVideos":  v.ProcessedVideos,
		"device_name":      v.DeviceName,
		"deviceName":       v.DeviceName,
	}
}
