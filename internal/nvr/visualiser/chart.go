package visualiser

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderTrajectoryChart writes an HTML page with one line series per
// confirmed track path and one closed outline per zone.
func RenderTrajectoryChart(w io.Writer, scene Scene) error {
	tracks := scene.confirmed()
	b := scene.bounds()
	pad := 0.05 * math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
	if pad == 0 {
		pad = 1
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Trajectories", Theme: "dark", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Track Trajectories", Subtitle: fmt.Sprintf("camera=%s tracks=%d zones=%d", scene.CameraID, len(tracks), len(scene.Zones))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: math.Floor(b.Min.X - pad), Max: math.Ceil(b.Max.X + pad), Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: math.Floor(b.Min.Y - pad), Max: math.Ceil(b.Max.Y + pad), Name: "Y (px)", NameLocation: "middle", NameGap: 40, Inverse: opts.Bool(true)}),
	)

	for _, z := range scene.Zones {
		ring := closedRing(z)
		data := make([]opts.LineData, 0, len(ring))
		for _, p := range ring {
			data = append(data, opts.LineData{Value: []interface{}{p.X, p.Y}})
		}
		name := "zone " + z.Name
		if z.Restricted {
			name += " (restricted)"
		}
		line.AddSeries(name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	for _, t := range tracks {
		data := make([]opts.LineData, 0, len(t.Path))
		for _, p := range t.Path {
			data = append(data, opts.LineData{Value: []interface{}{p.X, p.Y}})
		}
		line.AddSeries(fmt.Sprintf("%s %s", t.ID, t.ObjectType), data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	}

	return line.Render(w)
}
