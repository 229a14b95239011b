package models

import (
	"database/sql"
	"errors"
)

// SectorMultiples is one industry benchmark row: min/avg/max multiples for
// revenue, EBITDA and P/E. Read-only reference data seeded by migrations.
type SectorMultiples struct {
	SectorCode string `json:"sector_code"`
	SectorName string `json:"sector_name"`

	RevenueMultipleMin float64 `json:"revenue_multiple_min"`
	RevenueMultipleAvg float64 `json:"revenue_multiple_avg"`
	RevenueMultipleMax float64 `json:"revenue_multiple_max"`

	EbitdaMultipleMin float64 `json:"ebitda_multiple_min"`
	EbitdaMultipleAvg float64 `json:"ebitda_multiple_avg"`
	EbitdaMultipleMax float64 `json:"ebitda_multiple_max"`

	PEMultipleMin float64 `json:"pe_multiple_min"`
	PEMultipleAvg float64 `json:"pe_multiple_avg"`
	PEMultipleMax float64 `json:"pe_multiple_max"`
}

var ErrSectorNotFound = errors.New("sector not found")

const sectorColumns = `sector_code, sector_name,
	revenue_multiple_min, revenue_multiple_avg, revenue_multiple_max,
	ebitda_multiple_min, ebitda_multiple_avg, ebitda_multiple_max,
	pe_multiple_min, pe_multiple_avg, pe_multiple_max`

func GetSectorByCode(db *sql.DB, code string) (*SectorMultiples, error) {
	row := db.QueryRow(`SELECT `+sectorColumns+` FROM sector_multiples WHERE sector_code = ?`, code)

	var s SectorMultiples
	err := row.Scan(
		&s.SectorCode, &s.SectorName,
		&s.RevenueMultipleMin, &s.RevenueMultipleAvg, &s.RevenueMultipleMax,
		&s.EbitdaMultipleMin, &s.EbitdaMultipleAvg, &s.EbitdaMultipleMax,
		&s.PEMultipleMin, &s.PEMultipleAvg, &s.PEMultipleMax,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSectorNotFound
		}
		return nil, err
	}
	return &s, nil
}

func ListSectors(db *sql.DB) ([]SectorMultiples, error) {
	rows, err := db.Query(`SELECT ` + sectorColumns + ` FROM sector_multiples ORDER BY sector_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sectors []SectorMultiples
	for rows.Next() {
		var s SectorMultiples
		if err := rows.Scan(
			&s.SectorCode, &s.SectorName,
			&s.RevenueMultipleMin, &s.RevenueMultipleAvg, &s.RevenueMultipleMax,
			&s.EbitdaMultipleMin, &s.EbitdaMultipleAvg, &s.EbitdaMultipleMax,
			&s.PEMultipleMin, &s.PEMultipleAvg, &s.PEMultipleMax,
		); err != nil {
			return nil, err
		}
		sectors = append(sectors, s)
	}
	return sectors, rows.Err()
}
