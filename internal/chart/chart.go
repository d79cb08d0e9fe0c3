// Package chart renders actual-vs-forecast line charts as PNG.
package chart

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultWidth  = 960
	DefaultHeight = 420

	marginLeft   = 72
	marginRight  = 24
	marginTop    = 36
	marginBottom = 48
)

// EmptyMessage is drawn when there is nothing to plot.
const EmptyMessage = "No data for the selected filters"

var (
	fontLabel font.Face
	fontTitle font.Face
	fontOnce  sync.Once
	fontErr   error

	// font faces cache glyphs and are not safe for concurrent use
	renderMu sync.Mutex
)

func loadFonts() {
	fontOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse go regular: %w", err)
			return
		}

		fontLabel, err = opentype.NewFace(regular, &opentype.FaceOptions{
			Size:    12,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fontErr = fmt.Errorf("create label face: %w", err)
			return
		}

		fontTitle, err = opentype.NewFace(regular, &opentype.FaceOptions{
			Size:    16,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fontErr = fmt.Errorf("create title face: %w", err)
			return
		}
	})
}

type Point struct {
	Period   time.Time
	Actual   sql.NullFloat64
	Forecast sql.NullFloat64
	Lower    sql.NullFloat64
	Upper    sql.NullFloat64
}

// Series is one location's line pair and band.
type Series struct {
	Name   string
	Color  color.RGBA
	Points []Point // ordered by period
}

type Options struct {
	Width  int
	Height int
	Title  string
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

var (
	background = color.RGBA{255, 255, 255, 255}
	axisColor  = color.RGBA{120, 120, 120, 255}
	gridColor  = color.RGBA{230, 230, 230, 255}
	textColor  = color.RGBA{40, 40, 40, 255}
)

// Render draws actual values as solid lines, forecasts as dotted lines and the
// 95% band as a translucent fill. With no plottable values it returns a
// placeholder image carrying EmptyMessage.
func Render(series []Series, opts Options) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	renderMu.Lock()
	defer renderMu.Unlock()

	w, h := opts.size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	sc, ok := newScale(series, w, h)
	if !ok {
		drawCentered(img, EmptyMessage, textColor, fontTitle)
		return encode(img)
	}

	if opts.Title != "" {
		drawText(img, opts.Title, marginLeft, marginTop-14, textColor, fontTitle)
	}
	drawAxes(img, sc)

	for _, s := range series {
		drawBand(img, sc, s)
	}
	for _, s := range series {
		drawSeries(img, sc, s, func(p Point) sql.NullFloat64 { return p.Actual }, 0)
		drawSeries(img, sc, s, func(p Point) sql.NullFloat64 { return p.Forecast }, 3)
	}
	drawLegend(img, series)

	return encode(img)
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

// scale maps (time, value) onto pixel coordinates inside the plot area.
type scale struct {
	t0, t1 time.Time
	v0, v1 float64
	x0, x1 int
	y0, y1 int // y0 is the bottom edge
}

func newScale(series []Series, w, h int) (scale, bool) {
	sc := scale{
		x0: marginLeft, x1: w - marginRight,
		y0: h - marginBottom, y1: marginTop,
		v0: math.Inf(1), v1: math.Inf(-1),
	}
	found := false
	for _, s := range series {
		for _, p := range s.Points {
			for _, v := range []sql.NullFloat64{p.Actual, p.Forecast, p.Lower, p.Upper} {
				if !v.Valid {
					continue
				}
				if !found || p.Period.Before(sc.t0) {
					sc.t0 = p.Period
				}
				if !found || p.Period.After(sc.t1) {
					sc.t1 = p.Period
				}
				found = true
				sc.v0 = math.Min(sc.v0, v.Float64)
				sc.v1 = math.Max(sc.v1, v.Float64)
			}
		}
	}
	if !found {
		return sc, false
	}
	if sc.v0 > 0 {
		sc.v0 = 0
	}
	if sc.v1 == sc.v0 {
		sc.v1 = sc.v0 + 1
	}
	sc.v1 += (sc.v1 - sc.v0) * 0.05
	return sc, true
}

func (sc scale) x(t time.Time) int {
	span := sc.t1.Sub(sc.t0)
	if span <= 0 {
		return (sc.x0 + sc.x1) / 2
	}
	frac := float64(t.Sub(sc.t0)) / float64(span)
	return sc.x0 + int(math.Round(frac*float64(sc.x1-sc.x0)))
}

func (sc scale) y(v float64) int {
	frac := (v - sc.v0) / (sc.v1 - sc.v0)
	return sc.y0 - int(math.Round(frac*float64(sc.y0-sc.y1)))
}

func drawAxes(img *image.RGBA, sc scale) {
	const ticks = 5
	for i := 0; i <= ticks; i++ {
		v := sc.v0 + (sc.v1-sc.v0)*float64(i)/ticks
		y := sc.y(v)
		line(img, sc.x0, y, sc.x1, y, gridColor, 0)
		label := fmt.Sprintf("%.0f", v)
		drawText(img, label, sc.x0-8-textWidth(label, fontLabel), y+4, textColor, fontLabel)
	}
	line(img, sc.x0, sc.y0, sc.x1, sc.y0, axisColor, 0)
	line(img, sc.x0, sc.y0, sc.x0, sc.y1, axisColor, 0)

	dates := []time.Time{sc.t0}
	if sc.t1.After(sc.t0) {
		mid := sc.t0.Add(sc.t1.Sub(sc.t0) / 2)
		dates = append(dates, mid, sc.t1)
	}
	for _, d := range dates {
		label := d.Format("2006-01-02")
		x := sc.x(d) - textWidth(label, fontLabel)/2
		drawText(img, label, x, sc.y0+18, textColor, fontLabel)
	}
}

func drawBand(img *image.RGBA, sc scale, s Series) {
	fill := color.RGBA{s.Color.R, s.Color.G, s.Color.B, 48}
	// premultiplied alpha
	fill.R = uint8(uint16(fill.R) * uint16(fill.A) / 255)
	fill.G = uint8(uint16(fill.G) * uint16(fill.A) / 255)
	fill.B = uint8(uint16(fill.B) * uint16(fill.A) / 255)
	src := image.NewUniform(fill)

	for i := 1; i < len(s.Points); i++ {
		a, b := s.Points[i-1], s.Points[i]
		if !a.Lower.Valid || !a.Upper.Valid || !b.Lower.Valid || !b.Upper.Valid {
			continue
		}
		xa, xb := sc.x(a.Period), sc.x(b.Period)
		if xb <= xa {
			continue
		}
		for x := xa; x < xb; x++ {
			frac := float64(x-xa) / float64(xb-xa)
			lo := a.Lower.Float64 + frac*(b.Lower.Float64-a.Lower.Float64)
			hi := a.Upper.Float64 + frac*(b.Upper.Float64-a.Upper.Float64)
			top, bottom := sc.y(hi), sc.y(lo)
			if top > bottom {
				top, bottom = bottom, top
			}
			draw.Draw(img, image.Rect(x, top, x+1, bottom+1), src, image.Point{}, draw.Over)
		}
	}
}

// drawSeries joins consecutive valid values. gap > 0 draws a dotted line.
func drawSeries(img *image.RGBA, sc scale, s Series, value func(Point) sql.NullFloat64, gap int) {
	var prev *Point
	for i := range s.Points {
		p := &s.Points[i]
		v := value(*p)
		if !v.Valid {
			prev = nil
			continue
		}
		x, y := sc.x(p.Period), sc.y(v.Float64)
		if prev != nil {
			px, py := sc.x(prev.Period), sc.y(value(*prev).Float64)
			line(img, px, py, x, y, s.Color, gap)
			line(img, px, py+1, x, y+1, s.Color, gap)
		} else {
			dot(img, x, y, s.Color)
		}
		prev = p
	}
}

func drawLegend(img *image.RGBA, series []Series) {
	x := img.Bounds().Dx() - marginRight
	y := marginTop - 14
	for i := len(series) - 1; i >= 0; i-- {
		s := series[i]
		x -= textWidth(s.Name, fontLabel)
		drawText(img, s.Name, x, y, textColor, fontLabel)
		x -= 16
		draw.Draw(img, image.Rect(x, y-9, x+10, y+1), image.NewUniform(s.Color), image.Point{}, draw.Src)
		x -= 14
	}
}

// line draws with Bresenham's algorithm. gap > 0 alternates gap pixels on and
// gap pixels off.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA, gap int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for n := 0; ; n++ {
		if gap <= 0 || (n/gap)%2 == 0 {
			setPixel(img, x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func dot(img *image.RGBA, x, y int, c color.RGBA) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			setPixel(img, x+dx, y+dy, c)
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func textWidth(text string, face font.Face) int {
	return font.MeasureString(face, text).Round()
}

// drawText draws text at the given position using the specified font face.
func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawCentered(img *image.RGBA, text string, col color.Color, face font.Face) {
	b := img.Bounds()
	x := (b.Dx() - textWidth(text, face)) / 2
	y := b.Dy() / 2
	drawText(img, text, x, y, col, face)
}
