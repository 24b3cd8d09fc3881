// Package estimator runs one end-to-end estimate: resolve the location,
// size the array, fetch its yield and evaluate savings and economics.
//
// Everything after the yield fetch is pure, so Evaluate and Recalculate can
// rerun the numbers on known production without touching the network.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/solar-estimator/internal/metrics"
	"github.com/iwvelando/solar-estimator/internal/pvgis"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/economics"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
	"github.com/iwvelando/solar-estimator/pkg/savings"
	"github.com/iwvelando/solar-estimator/pkg/sizing"
	"github.com/iwvelando/solar-estimator/pkg/tariff"
	"go.uber.org/zap"
)

// ErrSystemTooSmall is returned when the roof yields less capacity than the
// provider can simulate.
var ErrSystemTooSmall = errors.New("system too small to simulate")

// minSimulatedKwp is the provider's lower peak power bound.
const minSimulatedKwp = 0.5

// Result is a finished estimate. Economics is nil when no install cost was
// given.
type Result struct {
	ID                  string                           `json:"id"`
	ComputedAt          time.Time                        `json:"computedAt"`
	AssumptionsVersion  string                           `json:"assumptionsVersion"`
	Mode                savings.Mode                     `json:"mode"`
	Request             Request                          `json:"request"`
	Location            ResolvedLocation                 `json:"location"`
	Sizing              sizing.Result                    `json:"sizing"`
	Query               *pvgis.Query                     `json:"query,omitempty"`
	CombinedLossPct     float64                          `json:"combinedLossPct"`
	MonthlyKwh          float64                          `json:"monthlyKwh"`
	ConsumptionFromBill bool                             `json:"consumptionFromBill"`
	Tariff              tariff.Result                    `json:"tariff"`
	ProductionKwh       [constants.MonthsPerYear]float64 `json:"productionKwh"`
	AnnualProductionKwh float64                          `json:"annualProductionKwh"`
	Savings             savings.Range                    `json:"savings"`
	Breakdown           savings.Breakdown                `json:"monthlyBreakdown"`
	OffsetPct           float64                          `json:"offsetPct"`
	Economics           *economics.Result                `json:"economics,omitempty"`
	Comparisons         economics.Comparisons            `json:"comparisons"`
}

// Sensitivity lists the inputs Recalculate may change. Nil fields keep the
// previous value.
type Sensitivity struct {
	SelfConsumptionOverride *float64 `json:"selfConsumptionOverride,omitempty" validate:"omitempty,finite,gte=0,lte=1"`
	InstallCostPerKwp       *float64 `json:"installCostPerKwp,omitempty" validate:"omitempty,finite,gte=0"`
	DegradationPct          *float64 `json:"degradationPct,omitempty" validate:"omitempty,finite,gte=0,lt=100"`
	ExportCreditRatePerKwh  *float64 `json:"exportCreditRatePerKwh,omitempty" validate:"omitempty,finite,gte=0"`
}

// Estimator holds the registry and the yield provider.
type Estimator struct {
	assumptions assumptions.Set
	provider    pvgis.Provider
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	newID       func() string
}

// New returns an Estimator. A nil logger is replaced with a no-op one.
func New(a assumptions.Set, provider pvgis.Provider, logger *zap.Logger, m *metrics.Metrics) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{
		assumptions: a,
		provider:    provider,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Assumptions returns the registry the estimator was built with.
func (e *Estimator) Assumptions() assumptions.Set {
	return e.assumptions
}

// BuildQuery sizes the roof and turns the request into a provider query:
// azimuth converted to the provider's aspect and shading folded into loss.
func (e *Estimator) BuildQuery(req Request, loc ResolvedLocation) (pvgis.Query, sizing.Result, float64) {
	a := req.Advanced.apply(e.assumptions)
	sz := sizing.Size(req.Roof, a.PVSystem)
	loss := sizing.CombinedLossPct(a.PVSystem.SystemLossPct, req.Roof.ShadingLossPct)

	q := pvgis.Query{
		Lat:           loc.Lat,
		Lon:           loc.Lon,
		PeakPowerKwp:  sz.SystemKwp,
		LossPct:       loss,
		AngleDeg:      req.Roof.TiltDeg,
		Aspect:        sizing.DisplayToPVGISAspect(req.Roof.AzimuthDeg),
		OptimalAngles: req.Roof.UseOptimalAngles,
	}
	return q, sz, loss
}

// Run fetches yield for req and evaluates it.
func (e *Estimator) Run(ctx context.Context, req Request) (*Result, error) {
	loc, err := ResolveLocation(req.Location)
	if err != nil {
		return nil, err
	}

	q, sz, loss := e.BuildQuery(req, loc)
	if sz.SystemKwp < minSimulatedKwp {
		return nil, fmt.Errorf("%w: %.2f kWp from %.1f m² (minimum %.1f kWp)",
			ErrSystemTooSmall, sz.SystemKwp, req.Roof.UsableAreaM2, minSimulatedKwp)
	}

	e.logger.Debug("fetching yield",
		zap.String("op", "estimator.Run"),
		zap.String("city", loc.City.ID),
		zap.Float64("systemKwp", sz.SystemKwp),
		zap.Float64("lossPct", q.LossPct),
		zap.Float64("aspect", q.Aspect))

	resp, err := e.provider.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetching yield: %w", err)
	}

	monthly, err := resp.MonthlyProduction()
	if err != nil {
		return nil, err
	}

	res := e.evaluate(req, loc, sz, monthly, resp.AnnualProduction())
	res.Query = &q
	res.CombinedLossPct = loss

	e.logger.Info("estimate complete",
		zap.String("op", "estimator.Run"),
		zap.String("id", res.ID),
		zap.String("mode", res.Mode.String()),
		zap.Float64("annualProductionKwh", res.AnnualProductionKwh),
		zap.Float64("savingsMinSar", res.Savings.MinSarPerYear),
		zap.Float64("savingsMaxSar", res.Savings.MaxSarPerYear))

	return res, nil
}

// Evaluate runs the pure part of an estimate on production the caller
// already has. A non-positive annual total falls back to the monthly sum.
// The location is optional here and only resolved for display.
func (e *Estimator) Evaluate(req Request, production [constants.MonthsPerYear]float64, annualKwh float64) (*Result, error) {
	loc, err := ResolveLocation(req.Location)
	if err != nil && !errors.Is(err, ErrNoLocation) {
		return nil, err
	}

	a := req.Advanced.apply(e.assumptions)
	sz := sizing.Size(req.Roof, a.PVSystem)
	res := e.evaluate(req, loc, sz, production, annualKwh)
	res.CombinedLossPct = sizing.CombinedLossPct(a.PVSystem.SystemLossPct, req.Roof.ShadingLossPct)
	return res, nil
}

// Recalculate reruns prev with the sensitivity changes applied, reusing its
// production and sizing.
func (e *Estimator) Recalculate(prev *Result, s Sensitivity) *Result {
	req := prev.Request
	if s.SelfConsumptionOverride != nil {
		v := *s.SelfConsumptionOverride
		req.SelfConsumptionOverride = &v
	}
	if s.InstallCostPerKwp != nil {
		req.Advanced.InstallCostPerKwp = *s.InstallCostPerKwp
	}
	if s.DegradationPct != nil {
		req.Advanced.DegradationPctPerYear = *s.DegradationPct
	}
	if s.ExportCreditRatePerKwh != nil {
		v := *s.ExportCreditRatePerKwh
		req.Export.CreditRatePerKwh = &v
	}

	res := e.evaluate(req, prev.Location, prev.Sizing, prev.ProductionKwh, prev.AnnualProductionKwh)
	res.Query = prev.Query
	res.CombinedLossPct = prev.CombinedLossPct
	return res
}

func (e *Estimator) evaluate(req Request, loc ResolvedLocation, sz sizing.Result, production [constants.MonthsPerYear]float64, annualKwh float64) *Result {
	a := req.Advanced.apply(e.assumptions)

	monthlyKwh, fromBill := monthlyConsumption(req.Consumption, a.Tariff)
	if annualKwh <= 0 || !mathutil.IsFinite(annualKwh) {
		annualKwh = mathutil.Sum12(production)
	}

	rng, rows := savings.Compute(savings.Input{
		MonthlyProductionKwh:    production,
		MonthlyAvgKwh:           monthlyKwh,
		Export:                  req.Export,
		Mode:                    req.Mode,
		SelfConsumptionOverride: req.SelfConsumptionOverride,
	}, a)

	res := &Result{
		ID:                  e.newID(),
		ComputedAt:          e.now().UTC(),
		AssumptionsVersion:  a.Version,
		Mode:                req.Mode,
		Request:             req,
		Location:            loc,
		Sizing:              sz,
		MonthlyKwh:          monthlyKwh,
		ConsumptionFromBill: fromBill,
		Tariff:              tariff.Bill(monthlyKwh, a.Tariff),
		ProductionKwh:       production,
		AnnualProductionKwh: annualKwh,
		Savings:             rng,
		Breakdown:           rows,
		OffsetPct:           rng.OffsetPct(),
	}

	co2Tons := mathutil.NonNegative(annualKwh) * a.Economics.GridCO2IntensityKgPerKwh / constants.KgPerTon
	if req.Advanced.InstallCostPerKwp > 0 {
		econ := economics.Evaluate(sz, economics.ParamsFromAssumptions(a), a.Solver, annualKwh, rng.MinSarPerYear, rng.MaxSarPerYear)
		res.Economics = &econ
		co2Tons = econ.CO2OffsetTonsPerYear
	}
	res.Comparisons = economics.CitizenComparisons(rng.Mid(), res.Tariff.MonthlyBillSar, co2Tons, annualKwh, a.Comparisons)

	e.metrics.EstimateCompleted(req.Mode.String())
	return res
}

// monthlyConsumption prefers the kWh figure and falls back to inverting the
// bill.
func monthlyConsumption(c Consumption, t assumptions.Tariff) (float64, bool) {
	if c.MonthlyKwh > 0 {
		return c.MonthlyKwh, false
	}
	if kwh, ok := tariff.KwhFromBill(c.MonthlyBillSar, t); ok {
		return kwh, true
	}
	return 0, false
}
