package models

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func valuationTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE valuations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		company_name TEXT NOT NULL DEFAULT '',
		sector_code TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		method_ebitda_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		method_ebitda_multiplier REAL NOT NULL DEFAULT 0,
		method_revenue_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		method_revenue_multiplier REAL NOT NULL DEFAULT 0,
		method_netprofit_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		method_netprofit_multiplier REAL NOT NULL DEFAULT 0,
		revenue REAL NOT NULL DEFAULT 0,
		ebitda REAL NOT NULL DEFAULT 0,
		net_income REAL NOT NULL DEFAULT 0,
		employees REAL NOT NULL DEFAULT 0,
		partners REAL NOT NULL DEFAULT 0,
		total_expenses REAL NOT NULL DEFAULT 0,
		personal_costs REAL NOT NULL DEFAULT 0,
		year_founded INTEGER NOT NULL DEFAULT 0,
		computed_revenue REAL NOT NULL DEFAULT 0,
		computed_ebitda REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE valuation_years (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		valuation_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		is_projected BOOLEAN NOT NULL DEFAULT FALSE,
		revenue REAL NOT NULL DEFAULT 0,
		total_expenses REAL NOT NULL DEFAULT 0,
		personal_costs REAL NOT NULL DEFAULT 0,
		ebitda REAL NOT NULL DEFAULT 0,
		net_income REAL NOT NULL DEFAULT 0,
		employees INTEGER NOT NULL DEFAULT 0,
		UNIQUE (valuation_id, year)
	)`)
	require.NoError(t, err)

	return db
}

func TestValuationCRUD(t *testing.T) {
	db := valuationTestDB(t)

	v := &Valuation{
		UserID:      1,
		Name:        "Padaria Central",
		CompanyName: "Padaria Central Lda",
		SectorCode:  "retail",
		Methods: ValuationMethods{
			Ebitda: ValuationMethod{Enabled: true, Multiplier: 4.0},
		},
		Financials: FinancialData{Revenue: 350_000, Ebitda: 60_000, YearFounded: 2010},
	}
	require.NoError(t, CreateValuation(db, v))
	require.NotZero(t, v.ID)
	assert.Equal(t, "draft", v.Status)

	loaded, err := GetValuation(db, v.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Padaria Central", loaded.Name)
	assert.Equal(t, "retail", loaded.SectorCode)
	assert.True(t, loaded.Methods.Ebitda.Enabled)
	assert.Equal(t, 4.0, loaded.Methods.Ebitda.Multiplier)
	assert.Equal(t, 350_000.0, loaded.Financials.Revenue)

	loaded.Name = "Padaria Central (2026)"
	loaded.Status = "final"
	require.NoError(t, loaded.Update(db))

	reloaded, err := GetValuation(db, v.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Padaria Central (2026)", reloaded.Name)
	assert.Equal(t, "final", reloaded.Status)

	require.NoError(t, DeleteValuation(db, v.ID, 1))
	_, err = GetValuation(db, v.ID, 1)
	assert.ErrorIs(t, err, ErrValuationNotFound)
}

func TestValuationOwnershipScoping(t *testing.T) {
	db := valuationTestDB(t)

	v := &Valuation{UserID: 1, Name: "Mine"}
	require.NoError(t, CreateValuation(db, v))

	_, err := GetValuation(db, v.ID, 2)
	assert.ErrorIs(t, err, ErrValuationNotFound)

	err = DeleteValuation(db, v.ID, 2)
	assert.ErrorIs(t, err, ErrValuationNotFound)

	// Still there for the owner.
	_, err = GetValuation(db, v.ID, 1)
	assert.NoError(t, err)
}

func TestReplaceValuationYears(t *testing.T) {
	db := valuationTestDB(t)

	v := &Valuation{UserID: 1, Name: "Empresa"}
	require.NoError(t, CreateValuation(db, v))

	first := []ValuationYear{
		{Year: 2023, Revenue: 100_000, Ebitda: 20_000},
		{Year: 2024, Revenue: 120_000, Ebitda: 25_000},
	}
	require.NoError(t, ReplaceValuationYears(db, v.ID, first))

	second := []ValuationYear{
		{Year: 2024, Revenue: 120_000, Ebitda: 25_000},
		{Year: 2025, Revenue: 150_000, Ebitda: 32_000, IsProjected: true},
	}
	require.NoError(t, ReplaceValuationYears(db, v.ID, second))

	years, err := ListValuationYears(db, v.ID)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, 2024, years[0].Year)
	assert.Equal(t, 2025, years[1].Year)
	assert.True(t, years[1].IsProjected)
}

func TestComputeAggregates(t *testing.T) {
	t.Run("no years", func(t *testing.T) {
		revenue, ebitda := ComputeAggregates(nil)
		assert.Zero(t, revenue)
		assert.Zero(t, ebitda)
	})

	t.Run("latest closed year wins", func(t *testing.T) {
		revenue, ebitda := ComputeAggregates([]ValuationYear{
			{Year: 2023, Revenue: 100_000, Ebitda: 20_000},
			{Year: 2024, Revenue: 120_000, Ebitda: 25_000},
		})
		assert.Equal(t, 120_000.0, revenue)
		assert.Equal(t, 25_000.0, ebitda)
	})

	t.Run("projected year takes precedence", func(t *testing.T) {
		revenue, ebitda := ComputeAggregates([]ValuationYear{
			{Year: 2024, Revenue: 120_000, Ebitda: 25_000},
			{Year: 2023, Revenue: 90_000, Ebitda: 15_000, IsProjected: true},
		})
		assert.Equal(t, 90_000.0, revenue)
		assert.Equal(t, 15_000.0, ebitda)
	})

	t.Run("most recent projected year wins", func(t *testing.T) {
		revenue, _ := ComputeAggregates([]ValuationYear{
			{Year: 2025, Revenue: 140_000, IsProjected: true},
			{Year: 2026, Revenue: 160_000, IsProjected: true},
			{Year: 2024, Revenue: 120_000},
		})
		assert.Equal(t, 160_000.0, revenue)
	})
}
