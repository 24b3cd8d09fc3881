// Package output provides utilities for formatting and displaying estimate results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/iwvelando/solar-estimator/internal/cities"
	"github.com/iwvelando/solar-estimator/internal/estimator"
	"github.com/iwvelando/solar-estimator/pkg/assumptions"
	"github.com/iwvelando/solar-estimator/pkg/constants"
	"github.com/iwvelando/solar-estimator/pkg/economics"
	"github.com/iwvelando/solar-estimator/pkg/format"
	"github.com/iwvelando/solar-estimator/pkg/mathutil"
	"github.com/iwvelando/solar-estimator/pkg/validation"
)

// Write renders res in the named output format.
func Write(w io.Writer, outputFormat string, res *estimator.Result) error {
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}
	switch outputFormat {
	case constants.OutputFormatCSV:
		return CsvFormat(w, res)
	case constants.OutputFormatJSON:
		return JSONFormat(w, res)
	default:
		return PrettyFormat(w, res)
	}
}

// errWriter remembers the first write error so the pretty printer can
// write freely and report once.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(layout string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, layout, args...)
}

// PrettyFormat outputs a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, res *estimator.Result) error {
	ew := &errWriter{w: w}

	loc := res.Location
	ew.printf("--- Solar estimate %s ---\n", res.ID)
	if loc.Custom {
		ew.printf("Location:        %.4f, %.4f (nearest city %s, %s km)\n",
			loc.Lat, loc.Lon, loc.City.NameEn, format.Number(loc.DistanceKm, 0))
	} else {
		ew.printf("Location:        %s (%s)\n", loc.City.NameEn, loc.City.NameAr)
	}
	ew.printf("Mode:            %s\n", res.Mode)
	ew.printf("Assumptions:     %s\n\n", res.AssumptionsVersion)

	ew.printf("System:          %s, %d panels, %s of roof\n",
		format.KWp(res.Sizing.SystemKwp), res.Sizing.PanelCount, format.Pct(res.Sizing.RoofCoveragePct, 0))
	ew.printf("Combined loss:   %s\n", format.Pct(res.CombinedLossPct, 1))
	ew.printf("Production:      %s per year\n", format.KWh(res.AnnualProductionKwh))

	consumption := format.KWh(res.MonthlyKwh) + " per month"
	if res.ConsumptionFromBill {
		consumption += " (estimated from bill)"
	}
	ew.printf("Consumption:     %s\n", consumption)
	ew.printf("Current bill:    %s per month, %s per year\n\n",
		format.SAR(res.Tariff.MonthlyBillSar), format.SAR(res.Savings.AnnualBillBeforeSar))

	s := res.Savings
	ew.printf("Savings:         %s\n", format.SARRange(s.MinSarPerYear, s.MaxSarPerYear, "SAR/yr"))
	ew.printf("Self-consumed:   %s – %s (%s – %s of production)\n",
		format.KWh(s.MinKwhSelfConsumed), format.KWh(s.MaxKwhSelfConsumed),
		format.Pct(s.SelfConsumptionPct[0], 0), format.Pct(s.SelfConsumptionPct[1], 0))
	ew.printf("Bill offset:     up to %s\n", format.Pct(res.OffsetPct, 0))
	if s.ExportCreditApplied {
		ew.printf("Export credit:   applied to %s – %s exported\n",
			format.KWh(s.MinKwhExported), format.KWh(s.MaxKwhExported))
	} else {
		ew.printf("Export credit:   not counted\n")
	}

	if ec := res.Economics; ec != nil {
		ew.printf("\nInstall cost:    %s (%s per kWp)\n", format.SAR(ec.TotalInstallCostSar), format.SAR(ec.CostPerKwpSar))
		if ec.PaybackViable {
			ew.printf("Payback:         %s\n", format.Years(ec.SimplePaybackYears))
		} else {
			ew.printf("Payback:         not reached (savings do not cover O&M)\n")
		}
		ew.printf("NPV:             %s\n", format.SAR(ec.NPVSar))
		ew.printf("IRR:             %s%s\n", format.Pct(ec.IRRPct, 1), irrNote(ec.IRRStatus))
		ew.printf("LCOE:            %s per kWh\n", format.SARDecimals(ec.LCOESarPerKwh, 3))
		ew.printf("CO₂ offset:      %s\n", format.CO2(ec.CO2OffsetTonsPerYear))
		ew.printf("%d-year savings: %s\n", ec.CumulativeHorizonYears, format.SAR(ec.CumulativeSavingsSar))
	}

	c := res.Comparisons
	ew.printf("\nThat is about %s months of free electricity a year, %s trees and %s car trips.\n\n",
		format.Number(c.MonthsFreePerYear, 1), format.Number(c.TreesEquivalentPerYear, 0), format.Number(c.CarTripsAvoidedPerYear, 0))

	if ew.err != nil {
		return ew.err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	ew = &errWriter{w: tw}
	ew.printf("Month\tProduction kWh\tUsage kWh\tBill SAR\tSavings SAR\t\n")
	for _, m := range res.Breakdown {
		ew.printf("%s\t%s\t%s\t%s\t%s – %s\t\n", m.Month,
			format.Number(m.ProductionKwh, 0), format.Number(m.ConsumptionKwh, 0),
			format.Number(m.BillBeforeSar, 0),
			format.Number(m.SavingsMinSar, 0), format.Number(m.SavingsMaxSar, 0))
	}
	if ew.err != nil {
		return ew.err
	}
	return tw.Flush()
}

func irrNote(status economics.IRRStatus) string {
	switch status {
	case economics.IRRConverged, "":
		return ""
	case economics.IRRNotProfitable:
		return " (not profitable)"
	case economics.IRRCeiling:
		return " (at solver ceiling)"
	default:
		return " (" + string(status) + ", approximate)"
	}
}

var csvHeader = []string{
	"month", "production_kwh", "consumption_kwh",
	"self_consumed_min_kwh", "self_consumed_max_kwh",
	"exported_min_kwh", "exported_max_kwh",
	"bill_before_sar", "export_credit_min_sar", "export_credit_max_sar",
	"savings_min_sar", "savings_max_sar",
}

// CsvFormat outputs the monthly breakdown in comma-separated value format,
// followed by a total row.
func CsvFormat(w io.Writer, res *estimator.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	var total [11]float64
	for _, m := range res.Breakdown {
		values := [11]float64{
			m.ProductionKwh, m.ConsumptionKwh,
			m.SelfConsumedMinKwh, m.SelfConsumedMaxKwh,
			m.ExportedMinKwh, m.ExportedMaxKwh,
			m.BillBeforeSar, m.ExportCreditMinSar, m.ExportCreditMaxSar,
			m.SavingsMinSar, m.SavingsMaxSar,
		}
		for i, v := range values {
			total[i] += v
		}
		if err := cw.Write(csvRow(m.Month, values)); err != nil {
			return err
		}
	}
	if err := cw.Write(csvRow("Total", total)); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func csvRow(label string, values [11]float64) []string {
	row := make([]string, 0, len(values)+1)
	row = append(row, label)
	for _, v := range values {
		row = append(row, strconv.FormatFloat(mathutil.RoundTo(v, 2), 'f', 2, 64))
	}
	return row
}

// JSONFormat outputs the full result as indented JSON.
func JSONFormat(w io.Writer, res *estimator.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// PrettyAssumptions prints the registry as a key/value/unit/source table.
func PrettyAssumptions(w io.Writer, a assumptions.Set) error {
	if _, err := fmt.Fprintf(w, "--- Assumptions %s ---\n", a.Version); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	ew := &errWriter{w: tw}
	ew.printf("Key\tValue\tUnit\tSource\n")
	for _, e := range a.Entries() {
		ew.printf("%s\t%s\t%s\t%s\n", e.Key, strconv.FormatFloat(e.Value, 'f', -1, 64), e.Unit, e.Source)
	}
	if ew.err != nil {
		return ew.err
	}
	return tw.Flush()
}

// PrettyCities prints the city catalog.
func PrettyCities(w io.Writer, list []cities.City) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	ew := &errWriter{w: tw}
	ew.printf("ID\tName\tArabic\tRegion\tLat\tLon\tDNI kWh/m²/day\n")
	for _, c := range list {
		ew.printf("%s\t%s\t%s\t%s\t%.4f\t%.4f\t%.1f\n", c.ID, c.NameEn, c.NameAr, c.Region, c.Lat, c.Lon, c.AvgDNI)
	}
	if ew.err != nil {
		return ew.err
	}
	return tw.Flush()
}
