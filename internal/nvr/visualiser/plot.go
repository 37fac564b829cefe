package visualiser

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var (
	restrictedColor = color.RGBA{R: 220, G: 50, B: 47, A: 255}
	zoneColor       = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

func toXYs(pts []r2.Vec) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return xys
}

// PlotTrajectories writes a PNG of the scene. Width and height of zero
// default to 8x6 inches.
func PlotTrajectories(w io.Writer, scene Scene, width, height vg.Length) error {
	if width == 0 {
		width = 8 * vg.Inch
	}
	if height == 0 {
		height = 6 * vg.Inch
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trajectories (%s)", scene.CameraID)
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	for _, z := range scene.Zones {
		poly, err := plotter.NewPolygon(toXYs(z.Vertices()))
		if err != nil {
			return fmt.Errorf("zone %s: %w", z.Name, err)
		}
		poly.LineStyle.Width = vg.Points(1.5)
		poly.LineStyle.Color = zoneColor
		if z.Restricted {
			poly.LineStyle.Color = restrictedColor
			poly.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(poly)
		p.Legend.Add("zone "+z.Name, poly)
	}

	for i, t := range scene.confirmed() {
		xys := toXYs(t.Path)
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("track %s: %w", t.ID, err)
		}
		c := plotutil.Color(i)
		line.Color = c
		line.Width = vg.Points(1)
		points.Color = c
		points.Radius = vg.Points(1.5)
		p.Add(line, points)
		p.Legend.Add(fmt.Sprintf("%s %s", t.ID, t.ObjectType), line, points)
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
