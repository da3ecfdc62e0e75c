package motion

import (
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/types/fix"
)

// Summary describes the acceleration magnitudes of a batch of samples, in g.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Max    float64 `json:"max"`
}

// Summarize computes a Summary. An empty batch yields the zero Summary.
func Summarize(samples []fix.MotionSample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	magnitudes := make([]float64, 0, len(samples))
	for _, s := range samples {
		magnitudes = append(magnitudes, s.Magnitude())
	}

	mustFloat := func(fn func() (float64, error)) float64 {
		out, err := fn()
		if err != nil {
			return 0
		}
		return common.DecimalToFixed(out, 4)
	}
	data := stats.Float64Data(magnitudes)
	return Summary{
		Count:  len(samples),
		Mean:   mustFloat(data.Mean),
		StdDev: mustFloat(data.StandardDeviation),
		Max:    mustFloat(data.Max),
	}
}
