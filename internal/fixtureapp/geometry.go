package fixtureapp

import (
	"fmt"
	"math"
)

// Plot dimensions in SVG user units
const (
	plotLeft   = 60.0
	plotTop    = 10.0
	plotWidth  = 900.0
	plotHeight = 400.0
	tickCount  = 5
)

// Tick is one y axis label
type Tick struct {
	Label string
	Y     string
}

// Bar is one drawn rectangle
type Bar struct {
	Bucket   string
	Value    string
	X        string
	Y        string
	Width    string
	Height   string
	Negative bool
}

// SeriesGeometry is one legend entry with its bars
type SeriesGeometry struct {
	Label string
	Color string
	Bars  []Bar
}

// Geometry is a laid out chart ready for the template
type Geometry struct {
	PlotLeft   float64
	PlotTop    float64
	PlotWidth  float64
	PlotHeight float64
	ZeroY      string
	Ticks      []Tick
	Series     []SeriesGeometry
}

var palette = []string{
	"#57c17b", "#6f87d8", "#663db8", "#bc52bc", "#9e3533",
	"#daa05d", "#00a69b", "#e7664c", "#d36086", "#9170b8",
	"#ca8eae", "#d6bf57", "#b9a888", "#aa6556", "#54b399",
}

// Layout stacks the series per bucket and scales bars against nice ticks.
// Positive values stack upwards from zero, negative values downwards.
func Layout(c *Chart) Geometry {
	buckets := len(c.Buckets)
	up := make([]float64, buckets)
	down := make([]float64, buckets)
	for _, s := range c.Series {
		for b, v := range s.Values {
			switch {
			case math.IsNaN(v):
			case v >= 0:
				up[b] += v
			default:
				down[b] += v
			}
		}
	}

	maxV, minV := 0.0, 0.0
	for b := 0; b < buckets; b++ {
		maxV = math.Max(maxV, up[b])
		minV = math.Min(minV, down[b])
	}
	step := niceStep((maxV - minV) / tickCount)
	maxTick := math.Ceil(maxV/step) * step
	minTick := math.Floor(minV/step) * step
	if maxTick == minTick {
		maxTick = minTick + step
	}
	span := maxTick - minTick
	scale := plotHeight / span
	zeroY := plotTop + maxTick*scale

	g := Geometry{
		PlotLeft:   plotLeft,
		PlotTop:    plotTop,
		PlotWidth:  plotWidth,
		PlotHeight: plotHeight,
		ZeroY:      svgNum(zeroY),
	}
	for v := minTick; v <= maxTick+step/2; v += step {
		g.Ticks = append(g.Ticks, Tick{
			Label: formatValue(v),
			Y:     svgNum(plotTop + (maxTick-v)*scale),
		})
	}

	slot := plotWidth / float64(max(buckets, 1))
	width := slot * 0.8
	upAcc := make([]float64, buckets)
	downAcc := make([]float64, buckets)
	for i, s := range c.Series {
		sg := SeriesGeometry{Label: s.Label, Color: palette[i%len(palette)]}
		for b, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			h := math.Abs(v) * scale
			bar := Bar{
				Bucket: c.Buckets[b],
				Value:  formatValue(v),
				X:      svgNum(plotLeft + float64(b)*slot + (slot-width)/2),
				Width:  svgNum(width),
				Height: fmt.Sprintf("%.4f", h),
			}
			if v >= 0 {
				bar.Y = svgNum(zeroY - (upAcc[b]*scale + h))
				upAcc[b] += v
			} else {
				bar.Y = svgNum(zeroY + downAcc[b]*-scale)
				bar.Negative = true
				downAcc[b] += v
			}
			sg.Bars = append(sg.Bars, bar)
		}
		g.Series = append(g.Series, sg)
	}
	return g
}

// niceStep rounds a raw tick step up to 1, 2, 2.5 or 5 times a power of ten
func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if step := m * mag; step >= raw {
			return step
		}
	}
	return 10 * mag
}

func svgNum(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
