package services

import (
	"github.com/username/valorpme/backend/src/models"
)

// ScenarioWeights is the weighting policy for the weighted-average valuation.
// Weights must be non-negative and sum to 1, which keeps the weighted average
// inside [min(scenarios), max(scenarios)].
type ScenarioWeights struct {
	Conservative float64 `json:"conservative"`
	Moderate     float64 `json:"moderate"`
	Optimistic   float64 `json:"optimistic"`
	Premium      float64 `json:"premium"`
}

// DefaultScenarioWeights favors the moderate and optimistic estimates.
var DefaultScenarioWeights = ScenarioWeights{
	Conservative: 0.15,
	Moderate:     0.35,
	Optimistic:   0.35,
	Premium:      0.15,
}

// Valid reports whether the weights are non-negative and sum to 1
// (within a small tolerance).
func (w ScenarioWeights) Valid() bool {
	if w.Conservative < 0 || w.Moderate < 0 || w.Optimistic < 0 || w.Premium < 0 {
		return false
	}
	sum := w.Conservative + w.Moderate + w.Optimistic + w.Premium
	return sum > 0.999 && sum < 1.001
}

// Fixed multiplier tiers used when no sector benchmark is selected.
// Conservative and premium bracket the estimate; moderate and optimistic
// interpolate at one third and two thirds between them.
const (
	defaultEbitdaMultipleMin = 4.0
	defaultEbitdaMultipleMax = 12.0

	defaultRevenueMultipleMin = 0.6
	defaultRevenueMultipleMax = 2.0

	defaultPEMultipleMin = 8.0
	defaultPEMultipleMax = 25.0
)

// scenario indexes into per-scenario multiplier sets.
type scenario int

const (
	scenarioConservative scenario = iota
	scenarioModerate
	scenarioOptimistic
	scenarioPremium
	scenarioCount
)

// ValuationEngine maps financial inputs to valuation estimates. It is a pure
// computation: no persistence, no side effects. Saving the result is the
// caller's business.
type ValuationEngine struct {
	weights ScenarioWeights
}

// NewValuationEngine builds an engine with the given weighting policy,
// falling back to the default policy when the weights are invalid.
func NewValuationEngine(weights ScenarioWeights) *ValuationEngine {
	if !weights.Valid() {
		weights = DefaultScenarioWeights
	}
	return &ValuationEngine{weights: weights}
}

// Weights returns the active weighting policy.
func (e *ValuationEngine) Weights() ScenarioWeights {
	return e.weights
}

// Compute derives all ratio metrics and the four scenario valuations from
// one set of financial inputs. methods selects which multiples contribute
// (nil or all-disabled means EBITDA only, the application default); only the
// Enabled flags are consulted, the configured per-method multiplier is kept
// for the client and never overrides the bracket tiers. sector supplies
// benchmark min/avg/max multiples and may be nil.
//
// Ratios guard division by zero and return 0 instead; the engine never
// panics on numeric edge cases.
func (e *ValuationEngine) Compute(data models.FinancialData, methods *models.ValuationMethods, sector *models.SectorMultiples) models.ValuationResult {
	var result models.ValuationResult

	if data.Revenue != 0 {
		result.NetMargin = data.NetIncome / data.Revenue
		result.ContributionMargin = (data.Revenue - data.TotalExpenses) / data.Revenue
		result.EbitdaMargin = data.Ebitda / data.Revenue
	}
	if data.Employees != 0 {
		result.RevenuePerEmployee = data.Revenue / data.Employees
	}
	if data.Partners != 0 {
		result.RevenuePerPartner = data.Revenue / data.Partners
	}

	active := activeMethods(methods)
	scenarios := e.scenarioValuations(data, active, sector)

	result.ConservativeValuation = scenarios[scenarioConservative]
	result.ModerateValuation = scenarios[scenarioModerate]
	result.OptimisticValuation = scenarios[scenarioOptimistic]
	result.PremiumValuation = scenarios[scenarioPremium]

	result.WeightedAverage = e.weights.Conservative*scenarios[scenarioConservative] +
		e.weights.Moderate*scenarios[scenarioModerate] +
		e.weights.Optimistic*scenarios[scenarioOptimistic] +
		e.weights.Premium*scenarios[scenarioPremium]

	return result
}

// activeMethods normalizes the method configuration: a nil or fully disabled
// configuration means EBITDA-only.
func activeMethods(methods *models.ValuationMethods) models.ValuationMethods {
	if methods == nil || !methods.AnyEnabled() {
		return models.ValuationMethods{
			Ebitda: models.ValuationMethod{Enabled: true},
		}
	}
	return *methods
}

// multiplierBounds is one method's benchmark bracket.
type multiplierBounds struct {
	min, avg, max float64
}

// tier returns the multiplier for a scenario. Conservative uses the minimum,
// premium the maximum; moderate and optimistic interpolate toward the
// average from below and above respectively.
func (b multiplierBounds) tier(s scenario) float64 {
	switch s {
	case scenarioConservative:
		return b.min
	case scenarioModerate:
		return (b.min + b.avg) / 2
	case scenarioOptimistic:
		return (b.avg + b.max) / 2
	default:
		return b.max
	}
}

// defaultBounds derives the fixed bracket used without a sector, placing the
// average at the midpoint.
func defaultBounds(min, max float64) multiplierBounds {
	return multiplierBounds{min: min, avg: (min + max) / 2, max: max}
}

// scenarioValuations computes the four point estimates. Each enabled method
// with a positive base metric contributes metric x multiplier; the scenario
// valuation is the arithmetic mean of the contributions. Methods whose base
// metric is zero or negative are skipped, so a loss-making company never
// gets a nonsensical negative-multiple valuation.
func (e *ValuationEngine) scenarioValuations(data models.FinancialData, methods models.ValuationMethods, sector *models.SectorMultiples) [scenarioCount]float64 {
	ebitdaBounds := defaultBounds(defaultEbitdaMultipleMin, defaultEbitdaMultipleMax)
	revenueBounds := defaultBounds(defaultRevenueMultipleMin, defaultRevenueMultipleMax)
	peBounds := defaultBounds(defaultPEMultipleMin, defaultPEMultipleMax)

	if sector != nil {
		ebitdaBounds = multiplierBounds{sector.EbitdaMultipleMin, sector.EbitdaMultipleAvg, sector.EbitdaMultipleMax}
		revenueBounds = multiplierBounds{sector.RevenueMultipleMin, sector.RevenueMultipleAvg, sector.RevenueMultipleMax}
		peBounds = multiplierBounds{sector.PEMultipleMin, sector.PEMultipleAvg, sector.PEMultipleMax}
	}

	var result [scenarioCount]float64
	for s := scenarioConservative; s < scenarioCount; s++ {
		var sum float64
		var contributions int

		if methods.Ebitda.Enabled && data.Ebitda > 0 {
			sum += data.Ebitda * ebitdaBounds.tier(s)
			contributions++
		}
		if methods.Revenue.Enabled && data.Revenue > 0 {
			sum += data.Revenue * revenueBounds.tier(s)
			contributions++
		}
		if methods.NetProfit.Enabled && data.NetIncome > 0 {
			sum += data.NetIncome * peBounds.tier(s)
			contributions++
		}

		if contributions > 0 {
			result[s] = sum / float64(contributions)
		}
	}
	return result
}
