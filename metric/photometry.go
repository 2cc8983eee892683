package metric

import (
	"math"

	"github.com/farwydi/sferror"
)

// SNR is the signal to noise ratio of a point source of magnitude mag in a
// visit whose 5 sigma limiting depth is m5.
func SNR(mag, m5 float64) float64 {
	return 5 * math.Pow(10, -0.4*(mag-m5))
}

// PhotometricError is the magnitude uncertainty of a source of magnitude mag
// observed at limiting depth m5.
func PhotometricError(mag, m5 float64) float64 {
	return 2.5 * math.Log10(1+1/SNR(mag, m5))
}

// StackMagErr fills MagErr on every visit for a source of magnitude mag.
func StackMagErr(visits []sferror.Visit, mag float64) {
	for i := range visits {
		visits[i].MagErr = PhotometricError(mag, visits[i].FiveSigmaDepth)
	}
}
