package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/valorpme/backend/src/models"
)

func testSector() *models.SectorMultiples {
	return &models.SectorMultiples{
		SectorCode:         "software",
		SectorName:         "Software e SaaS",
		RevenueMultipleMin: 1.5, RevenueMultipleAvg: 3.0, RevenueMultipleMax: 6.0,
		EbitdaMultipleMin: 4.0, EbitdaMultipleAvg: 7.0, EbitdaMultipleMax: 10.0,
		PEMultipleMin: 8.0, PEMultipleAvg: 15.0, PEMultipleMax: 25.0,
	}
}

func TestComputeEbitdaOnlyWithSector(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	methods := &models.ValuationMethods{
		Ebitda: models.ValuationMethod{Enabled: true},
	}
	data := models.FinancialData{Revenue: 1_000_000, Ebitda: 200_000}

	result := engine.Compute(data, methods, testSector())

	assert.InDelta(t, 800_000, result.ConservativeValuation, 0.01)
	assert.InDelta(t, 1_100_000, result.ModerateValuation, 0.01) // 200k x (4+7)/2
	assert.InDelta(t, 1_700_000, result.OptimisticValuation, 0.01)
	assert.InDelta(t, 2_000_000, result.PremiumValuation, 0.01)

	// 0.15x800k + 0.35x1.1M + 0.35x1.7M + 0.15x2M
	assert.InDelta(t, 1_400_000, result.WeightedAverage, 0.01)
}

func TestComputeRatios(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	data := models.FinancialData{
		Revenue:       1_000_000,
		NetIncome:     100_000,
		Ebitda:        200_000,
		TotalExpenses: 600_000,
		Employees:     10,
		Partners:      2,
	}

	result := engine.Compute(data, nil, nil)

	assert.InDelta(t, 0.10, result.NetMargin, 1e-9)
	assert.InDelta(t, 0.40, result.ContributionMargin, 1e-9)
	assert.InDelta(t, 0.20, result.EbitdaMargin, 1e-9)
	assert.InDelta(t, 100_000, result.RevenuePerEmployee, 1e-6)
	assert.InDelta(t, 500_000, result.RevenuePerPartner, 1e-6)
}

func TestComputeZeroRevenueDoesNotPanic(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)

	result := engine.Compute(models.FinancialData{}, nil, nil)

	assert.Zero(t, result.NetMargin)
	assert.Zero(t, result.ContributionMargin)
	assert.Zero(t, result.EbitdaMargin)
	assert.Zero(t, result.RevenuePerEmployee)
	assert.Zero(t, result.RevenuePerPartner)
	assert.Zero(t, result.ConservativeValuation)
	assert.Zero(t, result.WeightedAverage)
}

func TestComputeNilMethodsDefaultsToEbitda(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	data := models.FinancialData{Revenue: 500_000, Ebitda: 80_000, NetIncome: 40_000}

	fromNil := engine.Compute(data, nil, testSector())
	explicit := engine.Compute(data, &models.ValuationMethods{
		Ebitda: models.ValuationMethod{Enabled: true},
	}, testSector())

	assert.Equal(t, explicit, fromNil)

	// All-disabled behaves the same as nil.
	disabled := engine.Compute(data, &models.ValuationMethods{}, testSector())
	assert.Equal(t, explicit, disabled)
}

func TestComputeSkipsNonPositiveMetrics(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	methods := &models.ValuationMethods{
		Ebitda:    models.ValuationMethod{Enabled: true},
		NetProfit: models.ValuationMethod{Enabled: true},
	}
	// Loss on EBITDA: only the P/E method may contribute.
	data := models.FinancialData{Revenue: 300_000, Ebitda: -50_000, NetIncome: 30_000}

	result := engine.Compute(data, methods, testSector())

	assert.InDelta(t, 30_000*8.0, result.ConservativeValuation, 0.01)
	assert.InDelta(t, 30_000*25.0, result.PremiumValuation, 0.01)
}

func TestComputeAllMetricsNonPositive(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	methods := &models.ValuationMethods{
		Ebitda:    models.ValuationMethod{Enabled: true},
		Revenue:   models.ValuationMethod{Enabled: true},
		NetProfit: models.ValuationMethod{Enabled: true},
	}
	data := models.FinancialData{Revenue: 0, Ebitda: -10_000, NetIncome: -5_000}

	result := engine.Compute(data, methods, nil)

	assert.Zero(t, result.ConservativeValuation)
	assert.Zero(t, result.ModerateValuation)
	assert.Zero(t, result.OptimisticValuation)
	assert.Zero(t, result.PremiumValuation)
	assert.Zero(t, result.WeightedAverage)
}

func TestComputeMultiMethodAveragesContributions(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	methods := &models.ValuationMethods{
		Ebitda:  models.ValuationMethod{Enabled: true},
		Revenue: models.ValuationMethod{Enabled: true},
	}
	data := models.FinancialData{Revenue: 1_000_000, Ebitda: 200_000}

	result := engine.Compute(data, methods, testSector())

	// Conservative: mean of 200k x 4 and 1M x 1.5
	assert.InDelta(t, (800_000+1_500_000)/2.0, result.ConservativeValuation, 0.01)
	// Premium: mean of 200k x 10 and 1M x 6
	assert.InDelta(t, (2_000_000+6_000_000)/2.0, result.PremiumValuation, 0.01)
}

func TestComputeScenariosAreMonotonic(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	methods := &models.ValuationMethods{
		Ebitda:    models.ValuationMethod{Enabled: true},
		Revenue:   models.ValuationMethod{Enabled: true},
		NetProfit: models.ValuationMethod{Enabled: true},
	}
	data := models.FinancialData{Revenue: 750_000, Ebitda: 120_000, NetIncome: 60_000}

	result := engine.Compute(data, methods, testSector())

	require.Greater(t, result.ConservativeValuation, 0.0)
	assert.LessOrEqual(t, result.ConservativeValuation, result.ModerateValuation)
	assert.LessOrEqual(t, result.ModerateValuation, result.OptimisticValuation)
	assert.LessOrEqual(t, result.OptimisticValuation, result.PremiumValuation)
}

func TestComputeWeightedAverageWithinBounds(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	data := models.FinancialData{Revenue: 2_500_000, Ebitda: 400_000}

	result := engine.Compute(data, nil, testSector())

	assert.GreaterOrEqual(t, result.WeightedAverage, result.ConservativeValuation)
	assert.LessOrEqual(t, result.WeightedAverage, result.PremiumValuation)
}

func TestComputeDefaultTiersWithoutSector(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	data := models.FinancialData{Revenue: 1_000_000, Ebitda: 100_000}

	result := engine.Compute(data, nil, nil)

	// EBITDA bracket 4..12, average at the midpoint: tiers 4 / 6 / 10 / 12.
	assert.InDelta(t, 400_000, result.ConservativeValuation, 0.01)
	assert.InDelta(t, 600_000, result.ModerateValuation, 0.01)
	assert.InDelta(t, 1_000_000, result.OptimisticValuation, 0.01)
	assert.InDelta(t, 1_200_000, result.PremiumValuation, 0.01)
}

func TestComputeIgnoresConfiguredMultipliers(t *testing.T) {
	engine := NewValuationEngine(DefaultScenarioWeights)
	data := models.FinancialData{Revenue: 1_000_000, Ebitda: 200_000}

	plain := &models.ValuationMethods{
		Ebitda: models.ValuationMethod{Enabled: true},
	}
	configured := &models.ValuationMethods{
		Ebitda: models.ValuationMethod{Enabled: true, Multiplier: 99},
	}

	// A multiplier persistida é configuração para o cliente; os cenários
	// usam sempre os tiers do bracket.
	assert.Equal(t, engine.Compute(data, plain, testSector()), engine.Compute(data, configured, testSector()))
}

func TestNewValuationEngineRejectsInvalidWeights(t *testing.T) {
	engine := NewValuationEngine(ScenarioWeights{Conservative: 0.5, Moderate: 0.9})
	assert.Equal(t, DefaultScenarioWeights, engine.Weights())

	negative := NewValuationEngine(ScenarioWeights{Conservative: -0.5, Moderate: 0.5, Optimistic: 0.5, Premium: 0.5})
	assert.Equal(t, DefaultScenarioWeights, negative.Weights())
}

func TestScenarioWeightsValid(t *testing.T) {
	assert.True(t, DefaultScenarioWeights.Valid())
	assert.True(t, ScenarioWeights{Conservative: 0.25, Moderate: 0.25, Optimistic: 0.25, Premium: 0.25}.Valid())
	assert.False(t, ScenarioWeights{}.Valid())
	assert.False(t, ScenarioWeights{Conservative: 1.2, Moderate: -0.2}.Valid())
}
