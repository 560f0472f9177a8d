package roadquality

import "fmt"

// Color is a 24-bit RGB color for visualization and logging consumers.
type Color struct {
	R, G, B uint8
}

// Hex renders the color as "#RRGGBB".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ColorForScore maps a raw quality score onto the red/yellow/green ramp
// used by map and chart consumers. Piecewise-linear across three control
// points: 0 is #FF0000, 50 is #FFFF00, 100 is #00FF00. Deterministic and
// exact at the control points.
func ColorForScore(score float64) Color {
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	if score <= 50 {
		// Red held at full, green ramps up.
		g := uint8(score/50.0*255.0 + 0.5)
		return Color{R: 255, G: g, B: 0}
	}
	// Green held at full, red ramps down.
	r := uint8((100.0-score)/50.0*255.0 + 0.5)
	return Color{R: r, G: 255, B: 0}
}
