package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"

	"vidgate/internal/config"
	"vidgate/internal/infrastructure"
	"vidgate/pkg/contracts/domain"
)

// New builds the configured backend. Missing credentials do not fail: the
// returned store is Unconfigured and every call reports ErrServerConfiguration.
func New(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	logger = infrastructure.WithComponent(logger, "store").With(slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.StoreMemory:
		var seed []domain.LicenseRecord
		if cfg.SeedFile != "" {
			records, err := ReadRecordsFile(cfg.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("seed memory store: %w", err)
			}
			seed = records
		}
		logger.InfoContext(ctx, "license store ready", slog.Int("seeded", len(seed)))
		return NewMemory(seed...), nil

	case config.StoreHTTP:
		if cfg.HTTP.URL == "" || cfg.HTTP.MasterKey == "" {
			return unconfigured(ctx, logger, "document service url or master key not set"), nil
		}
		logger.InfoContext(ctx, "license store ready")
		return NewHTTPDocument(cfg.HTTP.URL, cfg.HTTP.KeyHeader, cfg.HTTP.MasterKey, cfg.HTTP.Timeout), nil

	case config.StoreSheets:
		if cfg.Sheets.SpreadsheetID == "" || cfg.Sheets.CredentialsFile == "" {
			return unconfigured(ctx, logger, "spreadsheet id or credentials file not set"), nil
		}
		credentials, err := os.ReadFile(cfg.Sheets.CredentialsFile)
		if err != nil {
			return unconfigured(ctx, logger, "credentials file unreadable: "+err.Error()), nil
		}
		s, err := NewSheets(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, option.WithCredentialsJSON(credentials))
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "license store ready")
		return s, nil

	case config.StoreRedis:
		if cfg.Redis.URL == "" {
			return unconfigured(ctx, logger, "redis url not set"), nil
		}
		r, err := OpenRedis(cfg.Redis.URL, cfg.Redis.Key)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "license store ready", slog.String("hash", cfg.Redis.Key))
		return r, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func unconfigured(ctx context.Context, logger *slog.Logger, reason string) Store {
	logger.WarnContext(ctx, "license store not configured, requests will fail", slog.String("reason", reason))
	return Unconfigured{Reason: reason}
}

// ReadRecordsFile decodes license records from a JSON file holding either an
// array or a {"record": [...]} document.
func ReadRecordsFile(path string) ([]domain.LicenseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []domain.LicenseRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return c.Records, nil
}
