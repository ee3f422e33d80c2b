package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/neardup/pkg/partition"
)

const (
	chartWidth  = "1200px"
	chartHeight = "500px"

	colorDocs  = "#5470c6"
	colorPairs = "#fac858"
)

// PlotPlan renders an HTML page with the per-rank document and pair loads
// of p.
func PlotPlan(w io.Writer, p *partition.Plan) error {
	labels := make([]string, p.Workers)
	for rank := range labels {
		labels[rank] = "rank " + strconv.Itoa(rank)
	}

	docs := make([]opts.BarData, p.Workers)
	for rank, n := range p.ShardSizes() {
		docs[rank] = opts.BarData{Value: n}
	}

	pairs := make([]opts.BarData, p.Workers)
	for rank, n := range p.PairLoads() {
		pairs[rank] = opts.BarData{Value: n}
	}

	page := components.NewPage()
	page.PageTitle = "neardup work plan"
	page.AddCharts(
		loadChart("Signature shards", fmt.Sprintf("%d documents", p.Docs), "Documents", labels, docs, colorDocs),
		loadChart("Comparison ranges", FormatCount(partition.PairCount(p.Docs))+" pairs", "Pairs", labels, pairs, colorPairs),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plan chart: %w", err)
	}

	return nil
}

func loadChart(title, subtitle, series string, labels []string, data []opts.BarData, color string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: series}),
	)
	bar.SetXAxis(labels).
		AddSeries(series, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: color}))

	return bar
}
