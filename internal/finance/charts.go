package finance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vicanso/go-charts/v2"

	"telegramBotForecast/internal/simulation"
)

// HistoryChart renders the replayed value of the holding.
func HistoryChart(symbol string, hist simulation.HistoricalValueSeries) ([]byte, error) {
	values := hist.Floats()
	if len(values) < 2 {
		return nil, errors.New("not enough data points")
	}
	x := make([]string, len(hist.Dates))
	for i, d := range hist.Dates {
		x[i] = d.Format("2006-01-02")
	}
	yMin, yMax := paddedRange(values)

	painter, err := charts.LineRender([][]float64{values},
		charts.TitleTextOptionFunc(strings.ToUpper(symbol)+" • portfolio value", "final "+hist.FinalValue.StringFixed(2)),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: x, BoundaryGap: charts.FalseFlag(), SplitNumber: 12}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}

// ProjectionChart renders the mean, median and lower-tail value trajectories
// followed by the displayed sample paths, all in holding value.
func ProjectionChart(symbol string, proj *simulation.Projection) ([]byte, error) {
	if proj == nil || len(proj.Aggregate.MeanTrajectory) < 2 {
		return nil, errors.New("not enough projected days")
	}
	units := proj.Outlook.Units.InexactFloat64()
	scale := func(prices []float64) []float64 {
		out := make([]float64, len(prices))
		for i, p := range prices {
			out[i] = p * units
		}
		return out
	}

	agg := proj.Aggregate
	lowerName := fmt.Sprintf("P%g", agg.PercentileLevel*100)
	names := []string{"Mean", "Median", lowerName}
	values := [][]float64{scale(agg.MeanTrajectory), scale(agg.MedianBand), scale(agg.LowerBand)}
	for _, path := range proj.Samples {
		values = append(values, scale(path))
	}

	yMin, yMax := paddedRange(values...)
	x := make([]string, len(agg.MeanTrajectory))
	for i := range x {
		x[i] = fmt.Sprintf("D+%d", i)
	}

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range names {
		seriesList[i].Name = names[i]
	}
	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc(strings.ToUpper(symbol)+" • projection", fmt.Sprintf("%d scenarios • %d shown", proj.Paths.Scenarios(), len(proj.Samples))),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: x, BoundaryGap: charts.FalseFlag(), SplitNumber: 12}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(900),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}

// paddedRange returns a y-range with 5% headroom, never below zero.
func paddedRange(series ...[]float64) (float64, float64) {
	first := true
	var yMin, yMax float64
	for _, s := range series {
		for _, v := range s {
			if first {
				yMin, yMax = v, v
				first = false
				continue
			}
			yMin = min(yMin, v)
			yMax = max(yMax, v)
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	return yMin, yMax + pad
}
