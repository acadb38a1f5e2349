package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apierrors "vidgate/internal/errors"
	"vidgate/pkg/contracts/domain"
)

// sheetColumns is the header row of the license sheet, in column order A..I.
var sheetColumns = []interface{}{
	"key", "plan", "activated_on", "device_hash", "device_name",
	"expires_at", "duration_days", "processed_videos", "version",
}

// Sheets keeps the collection in a Google Sheets tab, one license per row
// below a header row. Reads fetch the whole tab and writes rewrite it.
type Sheets struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetName     string
}

// NewSheets creates a Sheets store. opts carry credentials, e.g.
// option.WithCredentialsJSON.
func NewSheets(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Sheets{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// Load reads every row below the header.
func (s *Sheets) Load(ctx context.Context) (Collection, error) {
	resp, err := s.values.Get(s.spreadsheetID, s.sheetName+"!A:I").Context(ctx).Do()
	if err != nil {
		return Collection{}, mapSheetsError("read", err)
	}

	var c Collection
	for i, row := range resp.Values {
		if i == 0 {
			continue // header
		}
		rec, err := parseSheetRow(row)
		if err != nil {
			return Collection{}, fmt.Errorf("sheet row %d: %v: %w", i+1, err, apierrors.ErrNetwork)
		}
		if rec.Key == "" {
			continue
		}
		c.Records = append(c.Records, rec)
	}
	return c, nil
}

// Save rewrites the header and every record starting at A1.
func (s *Sheets) Save(ctx context.Context, c Collection) error {
	values := make([][]interface{}, 0, len(c.Records)+1)
	values = append(values, sheetColumns)
	for _, rec := range c.Records {
		values = append(values, formatSheetRow(rec))
	}

	rng := fmt.Sprintf("%s!A1:I%d", s.sheetName, len(values))
	_, err := s.values.Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return mapSheetsError("write", err)
	}
	return nil
}

// Close is a no-op; the sheets service holds no resources of its own.
func (s *Sheets) Close() error { return nil }

func mapSheetsError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return fmt.Errorf("sheets %s: %v: %w", op, err, apierrors.ErrServerConfiguration)
	}
	return fmt.Errorf("sheets %s: %v: %w", op, err, apierrors.ErrNetwork)
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func parseSheetTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseSheetRow(row []interface{}) (domain.LicenseRecord, error) {
	rec := domain.LicenseRecord{
		Key:        cell(row, 0),
		Plan:       cell(row, 1),
		DeviceHash: cell(row, 3),
		DeviceName: cell(row, 4),
	}

	var err error
	if rec.ActivatedOn, err = parseSheetTime(cell(row, 2)); err != nil {
		return rec, fmt.Errorf("activated_on: %w", err)
	}
	if rec.ExpiresAt, err = parseSheetTime(cell(row, 5)); err != nil {
		return rec, fmt.Errorf("expires_at: %w", err)
	}
	if v := cell(row, 6); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return rec, fmt.Errorf("duration_days: %w", err)
		}
		rec.DurationDays = &days
	}
	if v := cell(row, 7); v != "" {
		if rec.ProcessedVideos, err = strconv.ParseInt(v, 10, 64); err != nil {
			return rec, fmt.Errorf("processed_videos: %w", err)
		}
	}
	if v := cell(row, 8); v != "" {
		if rec.Version, err = strconv.ParseUint(v, 10, 64); err != nil {
			return rec, fmt.Errorf("version: %w", err)
		}
	}
	return rec, nil
}

func formatSheetRow(rec domain.LicenseRecord) []interface{} {
	formatTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	}
	duration := ""
	if rec.DurationDays != nil {
		duration = strconv.Itoa(*rec.DurationDays)
	}
	return []interface{}{
		rec.Key,
		rec.Plan,
		formatTime(rec.ActivatedOn),
		rec.DeviceHash,
		rec.DeviceName,
		formatTime(rec.ExpiresAt),
		duration,
		strconv.FormatInt(rec.ProcessedVideos, 10),
		strconv.FormatUint(rec.Version, 10),
	}
}
