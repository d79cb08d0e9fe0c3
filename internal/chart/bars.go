package chart

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bar is one category in a bar chart. Text is drawn above the bar; when empty
// the value is printed without decimals.
type Bar struct {
	Label string
	Value float64
	Text  string
	Color color.RGBA
}

const barGap = 0.35 // fraction of each slot left empty

var printer = message.NewPrinter(language.English)

// RenderBars draws one vertical bar per entry, in order, on a zero baseline.
// With no bars it returns the same placeholder as Render.
func RenderBars(bars []Bar, opts Options) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	renderMu.Lock()
	defer renderMu.Unlock()

	w, h := opts.size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	if len(bars) == 0 {
		drawCentered(img, EmptyMessage, textColor, fontTitle)
		return encode(img)
	}

	sc := scale{
		x0: marginLeft, x1: w - marginRight,
		y0: h - marginBottom, y1: marginTop,
	}
	for _, b := range bars {
		sc.v0 = math.Min(sc.v0, b.Value)
		sc.v1 = math.Max(sc.v1, b.Value)
	}
	if sc.v1 == sc.v0 {
		sc.v1 = sc.v0 + 1
	}
	// headroom for the value labels
	sc.v1 += (sc.v1 - sc.v0) * 0.1

	if opts.Title != "" {
		drawText(img, opts.Title, marginLeft, marginTop-14, textColor, fontTitle)
	}
	drawValueAxis(img, sc)

	slot := float64(sc.x1-sc.x0) / float64(len(bars))
	zero := sc.y(0)
	for i, b := range bars {
		left := sc.x0 + int(math.Round(slot*float64(i)+slot*barGap/2))
		right := sc.x0 + int(math.Round(slot*float64(i+1)-slot*barGap/2))
		if right <= left {
			right = left + 1
		}
		top, bottom := sc.y(b.Value), zero
		if top > bottom {
			top, bottom = bottom, top
		}
		draw.Draw(img, image.Rect(left, top, right, bottom), image.NewUniform(b.Color), image.Point{}, draw.Src)

		text := b.Text
		if text == "" {
			text = fmt.Sprintf("%.0f", b.Value)
		}
		mid := (left + right) / 2
		drawText(img, text, mid-textWidth(text, fontLabel)/2, top-6, textColor, fontLabel)
		drawText(img, b.Label, mid-textWidth(b.Label, fontLabel)/2, sc.y0+18, textColor, fontLabel)
	}

	return encode(img)
}

// drawValueAxis draws horizontal grid lines and the y axis without a time axis.
func drawValueAxis(img *image.RGBA, sc scale) {
	const ticks = 5
	for i := 0; i <= ticks; i++ {
		v := sc.v0 + (sc.v1-sc.v0)*float64(i)/ticks
		y := sc.y(v)
		line(img, sc.x0, y, sc.x1, y, gridColor, 0)
		label := printer.Sprintf("%.0f", v)
		drawText(img, label, sc.x0-8-textWidth(label, fontLabel), y+4, textColor, fontLabel)
	}
	line(img, sc.x0, sc.y(0), sc.x1, sc.y(0), axisColor, 0)
	line(img, sc.x0, sc.y0, sc.x0, sc.y1, axisColor, 0)
}
