package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"vidgate/internal/shared/testutil"
	"vidgate/pkg/contracts/domain"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, addr, &row))
	}

	path := filepath.Join(t.TempDir(), "licenses.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadWorkbook(t *testing.T) {
	path := writeWorkbook(t, "Licenses", [][]interface{}{
		sheetColumns,
		{"abc-1", "monthly", "", "", "", "", "30", "0", "0"},
		{"LIFE-2", "lifetime", "2026-03-13T12:00:00Z", "dev9", "Linux PC", "", "", "12", "3"},
		{"", "monthly"},
	})

	records, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "abc-1", records[0].Key)
	require.NotNil(t, records[0].DurationDays)
	assert.Equal(t, 30, *records[0].DurationDays)
	assert.False(t, records[0].Activated())

	assert.Equal(t, "dev9", records[1].DeviceHash)
	assert.Equal(t, int64(12), records[1].ProcessedVideos)
	assert.Equal(t, uint64(3), records[1].Version)
	assert.Nil(t, records[1].ExpiresAt)
	require.NotNil(t, records[1].ActivatedOn)
}

func TestReadWorkbook_BadCell(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]interface{}{
		{"ABC-1", "monthly", "", "", "", "", "thirty"},
	})

	_, err := ReadWorkbook(path)
	assert.ErrorContains(t, err, "duration_days")
}

func TestCollection_Merge(t *testing.T) {
	existing := testutil.ActiveLicense("ABC-1", "dev1", 0)
	existing.Version = 4

	t.Run("keeps existing keys", func(t *testing.T) {
		c := Collection{Records: []domain.LicenseRecord{existing.Clone()}}
		res := c.Merge([]domain.LicenseRecord{
			testutil.UnactivatedLicense(" abc-1 ", 30),
			testutil.UnactivatedLicense("new-2", 30),
			{Key: "   "},
		}, false)

		assert.Equal(t, MergeResult{Added: 1, Skipped: 2}, res)
		require.Len(t, c.Records, 2)
		i, found := c.Find("NEW-2")
		require.True(t, found)
		assert.Equal(t, "NEW-2", c.Records[i].Key)
		i, _ = c.Find("ABC-1")
		assert.Equal(t, "dev1", c.Records[i].DeviceHash)
	})

	t.Run("overwrite bumps the version", func(t *testing.T) {
		c := Collection{Records: []domain.LicenseRecord{existing.Clone()}}
		res := c.Merge([]domain.LicenseRecord{testutil.UnactivatedLicense("abc-1", 60)}, true)

		assert.Equal(t, MergeResult{Replaced: 1}, res)
		require.Len(t, c.Records, 1)
		assert.Empty(t, c.Records[0].DeviceHash)
		assert.Equal(t, uint64(5), c.Records[0].Version)
	})
}
