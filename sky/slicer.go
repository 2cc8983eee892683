package sky

import (
	"fmt"
)

// DefaultRadius is the cone radius collecting the visits of a slice point,
// about the size of the LSST field of view.
const DefaultRadius = 1.75

// Point is one place on the sky the metric is evaluated at.
type Point struct {
	ID  int
	RA  float64
	Dec float64
}

// Slicer enumerates the points a metric is evaluated at.
type Slicer interface {
	Name() string
	Points() []Point
	Radius() float64
}

// HealpixSlicer evaluates at the centre of every HEALPix pixel.
type HealpixSlicer struct {
	nside  int
	radius float64
	points []Point
}

func NewHealpixSlicer(nside int, radius float64) (*HealpixSlicer, error) {
	if err := checkNside(nside); err != nil {
		return nil, err
	}
	if radius <= 0 {
		radius = DefaultRadius
	}

	points := make([]Point, NPix(nside))
	for pix := range points {
		ra, dec := PixToAng(nside, pix)
		points[pix] = Point{ID: pix, RA: ra, Dec: dec}
	}
	return &HealpixSlicer{nside: nside, radius: radius, points: points}, nil
}

func (s *HealpixSlicer) Name() string {
	return fmt.Sprintf("HealpixSlicer_%d", s.nside)
}

func (s *HealpixSlicer) Nside() int {
	return s.nside
}

func (s *HealpixSlicer) Points() []Point {
	return s.points
}

func (s *HealpixSlicer) Radius() float64 {
	return s.radius
}

// PointsSlicer evaluates at caller supplied points, e.g. deep drilling
// field centres.
type PointsSlicer struct {
	name   string
	radius float64
	points []Point
}

func NewPointsSlicer(name string, radius float64, points ...Point) *PointsSlicer {
	if radius <= 0 {
		radius = DefaultRadius
	}
	if name == "" {
		name = "UserPointsSlicer"
	}
	return &PointsSlicer{name: name, radius: radius, points: points}
}

func (s *PointsSlicer) Name() string {
	return s.name
}

func (s *PointsSlicer) Points() []Point {
	return s.points
}

func (s *PointsSlicer) Radius() float64 {
	return s.radius
}

// Cell is a slice point with the positions of the visits falling in its
// cone.
type Cell struct {
	Point
	Visits []int
}

// Slice assigns pointings to the slicer's points. Points without any
// pointing are left out.
func Slice(s Slicer, index *Index) []Cell {
	cells := make([]Cell, 0)
	for _, p := range s.Points() {
		visits := index.Within(p.RA, p.Dec, s.Radius())
		if len(visits) == 0 {
			continue
		}
		cells = append(cells, Cell{Point: p, Visits: visits})
	}
	return cells
}
