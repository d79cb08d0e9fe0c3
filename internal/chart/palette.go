package chart

import (
	"image/color"

	"github.com/lox/stockcast/internal/models"
)

var knownColors = map[string]color.RGBA{
	"bakers":    {0, 123, 255, 255},
	"nickolson": {102, 179, 255, 255},
	"thompson":  {255, 51, 51, 255},
}

var fallbackColors = []color.RGBA{
	{40, 167, 69, 255},
	{255, 159, 28, 255},
	{111, 66, 193, 255},
	{23, 162, 184, 255},
	{108, 117, 125, 255},
}

// ColorFor returns the fixed colour for a known warehouse, otherwise a palette
// colour chosen by position.
func ColorFor(location string, i int) color.RGBA {
	if c, ok := knownColors[models.NormalizeLocation(location)]; ok {
		return c
	}
	if i < 0 {
		i = -i
	}
	return fallbackColors[i%len(fallbackColors)]
}
