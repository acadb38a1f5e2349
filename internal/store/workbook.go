package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"vidgate/pkg/contracts/domain"
)

// ReadWorkbook decodes license records from an .xlsx workbook. Rows use the
// same columns as the Sheets backend (key, plan, activated_on, device_hash,
// device_name, expires_at, duration_days, processed_videos, version), so an
// export of the license sheet imports as is. A "Licenses" tab is preferred,
// otherwise the first tab is read. A leading header row is skipped.
func ReadWorkbook(path string) ([]domain.LicenseRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "licenses") {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var records []domain.LicenseRecord
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if i == 0 && strings.EqualFold(cell(cells, 0), "key") {
			continue
		}
		rec, err := parseSheetRow(cells)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
		if rec.Key == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadRecords reads an .xlsx workbook or a JSON records file, chosen by
// extension.
func ReadRecords(path string) ([]domain.LicenseRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadWorkbook(path)
	}
	return ReadRecordsFile(path)
}

// MergeResult counts what Merge did.
type MergeResult struct {
	Added    int
	Replaced int
	Skipped  int
}

// Merge adds records to the collection under their normalized keys. A record
// whose key already exists is skipped unless overwrite is set; a replacement
// takes the next version so optimistic writers holding the old one conflict.
func (c *Collection) Merge(records []domain.LicenseRecord, overwrite bool) MergeResult {
	var res MergeResult
	for _, rec := range records {
		rec = rec.Clone()
		rec.Key = domain.NormalizeKey(rec.Key)
		if rec.Key == "" {
			res.Skipped++
			continue
		}

		i, found := c.Find(rec.Key)
		switch {
		case !found:
			c.Records = append(c.Records, rec)
			res.Added++
		case overwrite:
			rec.Version = c.Records[i].Version + 1
			c.Records[i] = rec
			res.Replaced++
		default:
			res.Skipped++
		}
	}
	sortRecords(c.Records)
	return res
}
