package models

import (
	"database/sql"
	"errors"
	"time"
)

// FinancialData is the immutable input of one valuation computation.
// All figures are non-negative except EBITDA and net income, which may be
// negative to represent losses. YearFounded is a calendar year.
type FinancialData struct {
	Revenue       float64 `json:"revenue"`
	Ebitda        float64 `json:"ebitda"`
	NetIncome     float64 `json:"net_income"`
	Employees     float64 `json:"employees"`
	Partners      float64 `json:"partners"`
	TotalExpenses float64 `json:"total_expenses"`
	PersonalCosts float64 `json:"personal_costs"`
	YearFounded   int     `json:"year_founded"`
}

// ValuationResult holds the derived outputs of the valuation engine.
// Computed fresh on every input change, never mutated in place.
type ValuationResult struct {
	NetMargin             float64 `json:"net_margin"`
	ContributionMargin    float64 `json:"contribution_margin"`
	EbitdaMargin          float64 `json:"ebitda_margin"`
	RevenuePerEmployee    float64 `json:"revenue_per_employee"`
	RevenuePerPartner     float64 `json:"revenue_per_partner"`
	ConservativeValuation float64 `json:"conservative_valuation"`
	ModerateValuation     float64 `json:"moderate_valuation"`
	OptimisticValuation   float64 `json:"optimistic_valuation"`
	PremiumValuation      float64 `json:"premium_valuation"`
	WeightedAverage       float64 `json:"weighted_average"`
}

// ValuationMethod is one enabled multiple (EBITDA, revenue or net profit)
// with its multiplier.
type ValuationMethod struct {
	Enabled    bool    `json:"enabled"`
	Multiplier float64 `json:"multiplier"`
}

// ValuationMethods is the explicit per-method configuration of a valuation.
// Stored as dedicated columns, not a free-form metadata blob.
type ValuationMethods struct {
	Ebitda    ValuationMethod `json:"ebitda"`
	Revenue   ValuationMethod `json:"revenue"`
	NetProfit ValuationMethod `json:"net_profit"`
}

// AnyEnabled reports whether at least one method is switched on.
func (m ValuationMethods) AnyEnabled() bool {
	return m.Ebitda.Enabled || m.Revenue.Enabled || m.NetProfit.Enabled
}

// Valuation is one company valuation owned by a user. ComputedRevenue and
// ComputedEbitda are aggregates derived from the valuation's years: the most
// recent projected year wins, otherwise the latest year.
type Valuation struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	Name            string           `json:"name"`
	CompanyName     string           `json:"company_name"`
	SectorCode      string           `json:"sector_code,omitempty"`
	Status          string           `json:"status"`
	Methods         ValuationMethods `json:"valuation_methods"`
	Financials      FinancialData    `json:"financials"`
	ComputedRevenue float64          `json:"computed_revenue"`
	ComputedEbitda  float64          `json:"computed_ebitda"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ValuationYear is one fiscal year attached to a valuation, closed or
// projected. A valuation owns an ordered set of at least two years; the
// minimum is enforced by the handler.
type ValuationYear struct {
	ID            int64   `json:"id"`
	ValuationID   int64   `json:"valuation_id"`
	Year          int     `json:"year"`
	IsProjected   bool    `json:"is_projected"`
	Revenue       float64 `json:"revenue"`
	TotalExpenses float64 `json:"total_expenses"`
	PersonalCosts float64 `json:"personal_costs"`
	Ebitda        float64 `json:"ebitda"`
	NetIncome     float64 `json:"net_income"`
	Employees     int     `json:"employees"`
}

var ErrValuationNotFound = errors.New("valuation not found")

const valuationColumns = `id, user_id, name, company_name, sector_code, status,
	method_ebitda_enabled, method_ebitda_multiplier,
	method_revenue_enabled, method_revenue_multiplier,
	method_netprofit_enabled, method_netprofit_multiplier,
	revenue, ebitda, net_income, employees, partners, total_expenses, personal_costs, year_founded,
	computed_revenue, computed_ebitda, created_at, updated_at`

func scanValuation(scanner interface{ Scan(...any) error }) (*Valuation, error) {
	var v Valuation
	var sectorCode sql.NullString
	err := scanner.Scan(
		&v.ID, &v.UserID, &v.Name, &v.CompanyName, &sectorCode, &v.Status,
		&v.Methods.Ebitda.Enabled, &v.Methods.Ebitda.Multiplier,
		&v.Methods.Revenue.Enabled, &v.Methods.Revenue.Multiplier,
		&v.Methods.NetProfit.Enabled, &v.Methods.NetProfit.Multiplier,
		&v.Financials.Revenue, &v.Financials.Ebitda, &v.Financials.NetIncome,
		&v.Financials.Employees, &v.Financials.Partners,
		&v.Financials.TotalExpenses, &v.Financials.PersonalCosts, &v.Financials.YearFounded,
		&v.ComputedRevenue, &v.ComputedEbitda, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.SectorCode = sectorCode.String
	return &v, nil
}

func CreateValuation(db *sql.DB, v *Valuation) error {
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.Status == "" {
		v.Status = "draft"
	}

	var sectorArg interface{}
	if v.SectorCode != "" {
		sectorArg = v.SectorCode
	}

	res, err := db.Exec(`
	INSERT INTO valuations (user_id, name, company_name, sector_code, status,
		method_ebitda_enabled, method_ebitda_multiplier,
		method_revenue_enabled, method_revenue_multiplier,
		method_netprofit_enabled, method_netprofit_multiplier,
		revenue, ebitda, net_income, employees, partners, total_expenses, personal_costs, year_founded,
		computed_revenue, computed_ebitda, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.UserID, v.Name, v.CompanyName, sectorArg, v.Status,
		v.Methods.Ebitda.Enabled, v.Methods.Ebitda.Multiplier,
		v.Methods.Revenue.Enabled, v.Methods.Revenue.Multiplier,
		v.Methods.NetProfit.Enabled, v.Methods.NetProfit.Multiplier,
		v.Financials.Revenue, v.Financials.Ebitda, v.Financials.NetIncome,
		v.Financials.Employees, v.Financials.Partners,
		v.Financials.TotalExpenses, v.Financials.PersonalCosts, v.Financials.YearFounded,
		v.ComputedRevenue, v.ComputedEbitda, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = id
	return nil
}

// GetValuation fetches a valuation scoped to its owner.
func GetValuation(db *sql.DB, id, userID int64) (*Valuation, error) {
	row := db.QueryRow(`SELECT `+valuationColumns+` FROM valuations WHERE id = ? AND user_id = ?`, id, userID)
	v, err := scanValuation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrValuationNotFound
		}
		return nil, err
	}
	return v, nil
}

func ListValuationsByUser(db *sql.DB, userID int64) ([]Valuation, error) {
	rows, err := db.Query(`SELECT `+valuationColumns+` FROM valuations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var valuations []Valuation
	for rows.Next() {
		v, err := scanValuation(rows)
		if err != nil {
			return nil, err
		}
		valuations = append(valuations, *v)
	}
	return valuations, rows.Err()
}

func (v *Valuation) Update(db *sql.DB) error {
	v.UpdatedAt = time.Now()

	var sectorArg interface{}
	if v.SectorCode != "" {
		sectorArg = v.SectorCode
	}

	_, err := db.Exec(`
	UPDATE valuations SET name = ?, company_name = ?, sector_code = ?, status = ?,
		method_ebitda_enabled = ?, method_ebitda_multiplier = ?,
		method_revenue_enabled = ?, method_revenue_multiplier = ?,
		method_netprofit_enabled = ?, method_netprofit_multiplier = ?,
		revenue = ?, ebitda = ?, net_income = ?, employees = ?, partners = ?,
		total_expenses = ?, personal_costs = ?, year_founded = ?,
		computed_revenue = ?, computed_ebitda = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`,
		v.Name, v.CompanyName, sectorArg, v.Status,
		v.Methods.Ebitda.Enabled, v.Methods.Ebitda.Multiplier,
		v.Methods.Revenue.Enabled, v.Methods.Revenue.Multiplier,
		v.Methods.NetProfit.Enabled, v.Methods.NetProfit.Multiplier,
		v.Financials.Revenue, v.Financials.Ebitda, v.Financials.NetIncome,
		v.Financials.Employees, v.Financials.Partners,
		v.Financials.TotalExpenses, v.Financials.PersonalCosts, v.Financials.YearFounded,
		v.ComputedRevenue, v.ComputedEbitda, v.UpdatedAt,
		v.ID, v.UserID,
	)
	return err
}

func DeleteValuation(db *sql.DB, id, userID int64) error {
	res, err := db.Exec(`DELETE FROM valuations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrValuationNotFound
	}
	return nil
}

// ReplaceValuationYears swaps the full ordered set of years of a valuation
// inside one transaction.
func ReplaceValuationYears(db *sql.DB, valuationID int64, years []ValuationYear) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM valuation_years WHERE valuation_id = ?`, valuationID); err != nil {
		return err
	}
	for _, y := range years {
		if _, err := tx.Exec(`
		INSERT INTO valuation_years (valuation_id, year, is_projected, revenue, total_expenses, personal_costs, ebitda, net_income, employees)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			valuationID, y.Year, y.IsProjected, y.Revenue, y.TotalExpenses,
			y.PersonalCosts, y.Ebitda, y.NetIncome, y.Employees,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListValuationYears returns a valuation's years ordered by year label.
func ListValuationYears(db *sql.DB, valuationID int64) ([]ValuationYear, error) {
	rows, err := db.Query(`
	SELECT id, valuation_id, year, is_projected, revenue, total_expenses, personal_costs, ebitda, net_income, employees
	FROM valuation_years
	WHERE valuation_id = ?
	ORDER BY year`, valuationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []ValuationYear
	for rows.Next() {
		var y ValuationYear
		if err := rows.Scan(
			&y.ID, &y.ValuationID, &y.Year, &y.IsProjected, &y.Revenue,
			&y.TotalExpenses, &y.PersonalCosts, &y.Ebitda, &y.NetIncome, &y.Employees,
		); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// ComputeAggregates derives computed_revenue and computed_ebitda from a
// valuation's years: the most recent projected year wins, otherwise the
// latest year. Zeroes when there are no years.
func ComputeAggregates(years []ValuationYear) (revenue, ebitda float64) {
	var pick *ValuationYear
	for i := range years {
		y := &years[i]
		if pick == nil {
			pick = y
			continue
		}
		// Projected years take precedence over closed ones; within the
		// same class the higher year label wins.
		if y.IsProjected != pick.IsProjected {
			if y.IsProjected {
				pick = y
			}
			continue
		}
		if y.Year > pick.Year {
			pick = y
		}
	}
	if pick == nil {
		return 0, 0
	}
	return pick.Revenue, pick.Ebitda
}
