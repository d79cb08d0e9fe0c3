package chart

import (
	"bytes"
	"database/sql"
	"image/png"
	"testing"
	"time"

	"github.com/lox/stockcast/internal/accuracy"
)

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func TestRenderProducesPNG(t *testing.T) {
	start := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	var points []Point
	for i := 0; i < 8; i++ {
		v := float64(100 + i*10)
		points = append(points, Point{
			Period:   start.AddDate(0, 0, 7*i),
			Actual:   nf(v),
			Forecast: nf(v + 5),
			Lower:    nf(v - 20),
			Upper:    nf(v + 20),
		})
	}

	data, err := Render([]Series{{Name: "Nickolson", Color: ColorFor("nickolson", 0), Points: points}}, Options{Title: "Weekly sales"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != DefaultWidth || b.Dy() != DefaultHeight {
		t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), DefaultWidth, DefaultHeight)
	}
}

func TestRenderEmptyPlaceholder(t *testing.T) {
	empty, err := Render(nil, Options{Width: 400, Height: 200})
	if err != nil {
		t.Fatalf("Render(nil): %v", err)
	}
	img, err := png.Decode(bytes.NewReader(empty))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 200 {
		t.Errorf("size = %dx%d, want 400x200", b.Dx(), b.Dy())
	}

	// a series with only null values is also empty
	nulls, err := Render([]Series{{Name: "x", Points: []Point{{Period: time.Now()}}}}, Options{Width: 400, Height: 200})
	if err != nil {
		t.Fatalf("Render(nulls): %v", err)
	}
	if !bytes.Equal(empty, nulls) {
		t.Error("all-null series should render the placeholder")
	}
}

func TestRenderSinglePoint(t *testing.T) {
	p := []Point{{Period: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), Actual: nf(5)}}
	if _, err := Render([]Series{{Name: "a", Points: p}}, Options{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestColorFor(t *testing.T) {
	if c := ColorFor("Bakers", 7); c.R != 0 || c.G != 123 || c.B != 255 {
		t.Errorf("bakers colour = %v", c)
	}
	if ColorFor("springfield", 0) != fallbackColors[0] {
		t.Error("unknown location should use the fallback palette")
	}
}

func TestFromTrend(t *testing.T) {
	d := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	points := []accuracy.TrendPoint{
		{Period: d, Location: "thompson", Actual: nf(1)},
		{Period: d, Location: "bakers", Actual: nf(2)},
		{Period: d.AddDate(0, 0, 7), Location: "thompson", Forecast: nf(3)},
	}
	series := FromTrend(points)
	if len(series) != 2 {
		t.Fatalf("len = %d, want 2", len(series))
	}
	if series[0].Name != "Thompson" || len(series[0].Points) != 2 {
		t.Errorf("series[0] = %+v", series[0])
	}
	if series[1].Name != "Bakers" {
		t.Errorf("series[1].Name = %q", series[1].Name)
	}
}

func TestCache(t *testing.T) {
	c := NewCache(time.Minute, 2)
	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache hit")
	}
	c.Set("a", []byte("1"))
	if got, ok := c.Get("a"); !ok || string(got) != "1" {
		t.Errorf("Get(a) = %q, %v", got, ok)
	}
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry should be cached")
	}

	expired := NewCache(-time.Second, 2)
	expired.Set("a", []byte("1"))
	if _, ok := expired.Get("a"); ok {
		t.Error("expired entry returned")
	}
}

func TestRenderBars(t *testing.T) {
	bars := []Bar{
		{Label: "Nickolson", Value: 58.7, Text: "58.7%", Color: ColorFor("nickolson", 0)},
		{Label: "Thompson", Value: 126.2, Text: "126.2%", Color: ColorFor("thompson", 1)},
		{Label: "Bakers", Value: 72.6, Color: ColorFor("bakers", 2)},
	}
	data, err := RenderBars(bars, Options{Title: "ROI per warehouse"})
	if err != nil {
		t.Fatalf("RenderBars: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != DefaultWidth || b.Dy() != DefaultHeight {
		t.Errorf("size = %dx%d", b.Dx(), b.Dy())
	}

	// the tallest bar is filled with its colour just above the baseline
	slot := float64(DefaultWidth-marginLeft-marginRight) / 3
	x := marginLeft + int(slot*1.5)
	y := DefaultHeight - marginBottom - 2
	r, g, b, _ := img.At(x, y).RGBA()
	want := ColorFor("thompson", 1)
	if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
		t.Errorf("pixel at (%d,%d) = %d,%d,%d, want %v", x, y, r>>8, g>>8, b>>8, want)
	}
}

func TestRenderBarsEmpty(t *testing.T) {
	bars, err := RenderBars(nil, Options{Width: 400, Height: 200})
	if err != nil {
		t.Fatalf("RenderBars(nil): %v", err)
	}
	lines, err := Render(nil, Options{Width: 400, Height: 200})
	if err != nil {
		t.Fatalf("Render(nil): %v", err)
	}
	if !bytes.Equal(bars, lines) {
		t.Error("empty bar chart should render the shared placeholder")
	}
}
