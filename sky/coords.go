package sky

import "math"

const deg = math.Pi / 180

// Separation is the great circle distance between two directions, degrees.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	sdDec := math.Sin((dec2 - dec1) * deg / 2)
	sdRA := math.Sin((ra2 - ra1) * deg / 2)
	h := sdDec*sdDec + math.Cos(dec1*deg)*math.Cos(dec2*deg)*sdRA*sdRA
	if h > 1 {
		h = 1
	}
	return 2 * math.Asin(math.Sqrt(h)) / deg
}

// unitVector maps ra, dec in degrees onto the unit sphere.
func unitVector(ra, dec float64) [3]float64 {
	cd := math.Cos(dec * deg)
	return [3]float64{
		cd * math.Cos(ra*deg),
		cd * math.Sin(ra*deg),
		math.Sin(dec * deg),
	}
}

// chord2 is the squared straight line distance between two points on the
// unit sphere separated by radius degrees.
func chord2(radius float64) float64 {
	c := 2 * math.Sin(radius*deg/2)
	return c * c
}
