package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
	lineWidth   = 2
)

// HeightSample is the tree height observed after Size insertions.
type HeightSample struct {
	Size   int
	Height int
}

// HeightPlot writes an HTML page charting measured height against the
// 2·log2(n+1) bound and the log2(n+1) optimum.
func HeightPlot(w io.Writer, title string, samples []HeightSample) error {
	labels := make([]string, len(samples))
	measured := make([]opts.LineData, len(samples))
	bound := make([]opts.LineData, len(samples))
	optimum := make([]opts.LineData, len(samples))

	for idx, sample := range samples {
		labels[idx] = strconv.Itoa(sample.Size)
		measured[idx] = opts.LineData{Value: sample.Height}
		bound[idx] = opts.LineData{Value: HeightBound(sample.Size)}
		optimum[idx] = opts.LineData{Value: int(math.Ceil(math.Log2(float64(sample.Size) + 1)))}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight, PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Elements"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Height"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("Measured", measured,
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)
	line.AddSeries("2·log2(n+1)", bound,
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth, Type: "dashed"}),
	)
	line.AddSeries("log2(n+1)", optimum,
		charts.WithLineStyleOpts(opts.LineStyle{Width: 1, Type: "dotted"}),
	)

	err := line.Render(w)
	if err != nil {
		return fmt.Errorf("render height plot: %w", err)
	}

	return nil
}
