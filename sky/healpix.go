// Package sky slices OpSim pointings over the celestial sphere: HEALPix
// pixels for survey wide maps and user supplied points for deep fields.
package sky

import (
	"errors"
	"math"
)

var ErrNside = errors.New("nside must be a positive power of two")

func checkNside(nside int) error {
	if nside < 1 || nside&(nside-1) != 0 {
		return ErrNside
	}
	return nil
}

// NPix is the number of pixels of a HEALPix map.
func NPix(nside int) int {
	return 12 * nside * nside
}

// PixToAng returns the centre of RING scheme pixel pix in degrees.
func PixToAng(nside, pix int) (ra, dec float64) {
	npix := NPix(nside)
	ncap := 2 * nside * (nside - 1)
	fact2 := 4 / float64(npix)

	var z, phi float64
	switch {
	case pix < ncap:
		iring := (1 + isqrt(1+2*pix)) >> 1
		iphi := pix + 1 - 2*iring*(iring-1)
		z = 1 - float64(iring*iring)*fact2
		phi = (float64(iphi) - 0.5) * (math.Pi / 2) / float64(iring)
	case pix < npix-ncap:
		ip := pix - ncap
		tmp := ip / (4 * nside)
		iring := tmp + nside
		iphi := ip - 4*nside*tmp + 1
		fodd := 0.5
		if (iring+nside)&1 == 1 {
			fodd = 1
		}
		z = float64(2*nside-iring) * 2 / (3 * float64(nside))
		phi = (float64(iphi) - fodd) * math.Pi / (2 * float64(nside))
	default:
		ip := npix - pix
		iring := (1 + isqrt(2*ip-1)) >> 1
		iphi := 4*iring + 1 - (ip - 2*iring*(iring-1))
		z = -1 + float64(iring*iring)*fact2
		phi = (float64(iphi) - 0.5) * (math.Pi / 2) / float64(iring)
	}

	return phi * 180 / math.Pi, 90 - math.Acos(z)*180/math.Pi
}

// AngToPix returns the RING scheme pixel holding the direction ra, dec given
// in degrees.
func AngToPix(nside int, ra, dec float64) int {
	z := math.Sin(dec * math.Pi / 180)
	za := math.Abs(z)
	tt := math.Mod(ra*math.Pi/180, 2*math.Pi)
	if tt < 0 {
		tt += 2 * math.Pi
	}
	tt /= math.Pi / 2 // in [0,4)

	ns := float64(nside)
	ncap := 2 * nside * (nside - 1)
	npix := NPix(nside)

	if za <= 2.0/3.0 {
		temp1 := ns * (0.5 + tt)
		temp2 := ns * z * 0.75
		jp := int(temp1 - temp2)
		jm := int(temp1 + temp2)
		ir := nside + 1 + jp - jm
		kshift := 1 - (ir & 1)
		ip := ((jp + jm - nside + kshift + 1 + 8*nside) / 2) % (4 * nside)
		return ncap + (ir-1)*4*nside + ip
	}

	tp := tt - math.Floor(tt)
	tmp := ns * math.Sqrt(3*(1-za))
	jp := int(tp * tmp)
	jm := int((1 - tp) * tmp)
	ir := jp + jm + 1
	ip := int(tt * float64(ir))
	ip %= 4 * ir
	if z > 0 {
		return 2*ir*(ir-1) + ip
	}
	return npix - 2*ir*(ir+1) + ip
}

func isqrt(v int) int {
	r := int(math.Sqrt(float64(v) + 0.5))
	for r*r > v {
		r--
	}
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}
