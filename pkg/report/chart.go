package report

import (
	"fmt"
	"io"
	"os"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Chart builds a stacked bar chart of the genuine diffs of every case, split by register class
func Chart(report *harness.Report) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Side effects per case",
			Subtitle: fmt.Sprintf("seed 0x%08x, %d trials per masked case", report.Seed, report.Trials),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(report.Cases))
	for _, c := range report.Cases {
		labels = append(labels, fmt.Sprintf("[%d] %s", c.Index, c.Case.Label))
	}

	bar.SetXAxis(labels)

	for _, class := range harness.Classes {
		data := make([]opts.BarData, 0, len(report.Cases))
		for _, c := range report.Cases {
			data = append(data, opts.BarData{Value: c.ClassHistogram[class]})
		}

		bar.AddSeries(class, data)
	}

	timeouts := make([]opts.BarData, 0, len(report.Cases))
	for _, c := range report.Cases {
		timeouts = append(timeouts, opts.BarData{Value: c.TrialsTimedOut})
	}

	bar.AddSeries("timeouts", timeouts)
	bar.SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))

	return bar
}

// RenderChart writes the chart of report as a standalone HTML page
func RenderChart(w io.Writer, report *harness.Report) error {
	page := components.NewPage()
	page.AddCharts(Chart(report))
	return page.Render(w)
}

// SaveChart writes the HTML chart page to a file
func SaveChart(path string, report *harness.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := RenderChart(file, report); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}
