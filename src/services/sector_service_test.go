package services

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/username/valorpme/backend/src/models"
)

func sectorTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE sector_multiples (
		sector_code TEXT PRIMARY KEY,
		sector_name TEXT NOT NULL,
		revenue_multiple_min REAL NOT NULL,
		revenue_multiple_avg REAL NOT NULL,
		revenue_multiple_max REAL NOT NULL,
		ebitda_multiple_min REAL NOT NULL,
		ebitda_multiple_avg REAL NOT NULL,
		ebitda_multiple_max REAL NOT NULL,
		pe_multiple_min REAL NOT NULL,
		pe_multiple_avg REAL NOT NULL,
		pe_multiple_max REAL NOT NULL
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`
	INSERT INTO sector_multiples VALUES
		('software', 'Software e SaaS', 1.5, 3.0, 6.0, 8.0, 12.0, 18.0, 15.0, 22.0, 35.0),
		('retail', 'Comércio a Retalho', 0.3, 0.6, 1.2, 4.0, 6.0, 9.0, 8.0, 12.0, 18.0)`)
	require.NoError(t, err)

	return db
}

func TestGetSector(t *testing.T) {
	service := NewSectorService(sectorTestDB(t))

	sector, err := service.GetSector("software")
	require.NoError(t, err)
	assert.Equal(t, "Software e SaaS", sector.SectorName)
	assert.Equal(t, 8.0, sector.EbitdaMultipleMin)

	_, err = service.GetSector("does_not_exist")
	assert.ErrorIs(t, err, models.ErrSectorNotFound)
}

func TestGetSectorUsesCache(t *testing.T) {
	db := sectorTestDB(t)
	service := NewSectorService(db)

	first, err := service.GetSector("retail")
	require.NoError(t, err)

	// Row changes in the DB must not show through within the cache window.
	_, err = db.Exec(`UPDATE sector_multiples SET ebitda_multiple_min = 99 WHERE sector_code = 'retail'`)
	require.NoError(t, err)

	second, err := service.GetSector("retail")
	require.NoError(t, err)
	assert.Equal(t, first.EbitdaMultipleMin, second.EbitdaMultipleMin)
}

func TestListSectors(t *testing.T) {
	service := NewSectorService(sectorTestDB(t))

	sectors, err := service.ListSectors()
	require.NoError(t, err)
	require.Len(t, sectors, 2)

	// Ordered by name.
	assert.Equal(t, "retail", sectors[0].SectorCode)
	assert.Equal(t, "software", sectors[1].SectorCode)
}

func TestApplySectorIsIdempotent(t *testing.T) {
	service := NewSectorService(sectorTestDB(t))

	first, err := service.ApplySector("software", false)
	require.NoError(t, err)
	second, err := service.ApplySector("software", false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Ebitda.Enabled)
	assert.Equal(t, 8.0, first.Ebitda.Multiplier)
	assert.Equal(t, 1.5, first.Revenue.Multiplier)
	assert.Equal(t, 15.0, first.NetProfit.Multiplier)
}

func TestApplySectorAverageToggle(t *testing.T) {
	service := NewSectorService(sectorTestDB(t))

	methods, err := service.ApplySector("software", true)
	require.NoError(t, err)

	assert.Equal(t, 12.0, methods.Ebitda.Multiplier)
	assert.Equal(t, 3.0, methods.Revenue.Multiplier)
	assert.Equal(t, 22.0, methods.NetProfit.Multiplier)
}
