package geometry

import (
	"log"
	"math"
)

// MinVolumeMM3 is the minimum billable volume. Degenerate or unreadable
// meshes are priced as if they enclosed this much material.
const MinVolumeMM3 = 1000.0

// Category classifies how hard a mesh is to print without support failures.
type Category string

const (
	CategoryEasy      Category = "easy"
	CategoryModerate  Category = "moderate"
	CategoryDifficult Category = "difficult"
	CategoryUnknown   Category = "unknown"
)

// Printability is a heuristic assessment of support-material risk.
type Printability struct {
	Factor             float64
	Category           Category
	HasOverhangs       bool
	HasThinWalls       bool
	HasFloatingIslands bool
}

// Analysis carries every geometry-derived pricing input.
type Analysis struct {
	VolumeMM3    float64
	Complexity   float64
	Printability Printability
}

// Analyze computes volume, complexity, and printability for a mesh.
// It is total: every failure is recovered into a documented default,
// because pricing must always produce a number.
func Analyze(m *Mesh) Analysis {
	return Analysis{
		VolumeMM3:    Volume(m),
		Complexity:   Complexity(m),
		Printability: AssessPrintability(m),
	}
}

// Volume estimates the enclosed volume in cubic millimeters by summing
// signed tetrahedra against the origin, which is exact for closed,
// consistently wound meshes wherever they sit. Meshes without triangles
// fall back to their bounding-box volume. The result is floored at
// MinVolumeMM3 and never fails.
func Volume(m *Mesh) (vol float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("geometry: volume estimation failed, using floor: %v", r)
			vol = MinVolumeMM3
		}
	}()

	if m == nil {
		return MinVolumeMM3
	}

	n := m.TriangleCount()
	if n == 0 {
		min, max := m.Bounds()
		size := max.Sub(min)
		return floorVolume(size.X * size.Y * size.Z)
	}

	total := 0.0
	for t := 0; t < n; t++ {
		a, b, c := m.triangle(t)
		total += a.Dot(b.Cross(c)) / 6.0
	}
	return floorVolume(math.Abs(total))
}

func floorVolume(v float64) float64 {
	if v < MinVolumeMM3 || math.IsNaN(v) {
		return MinVolumeMM3
	}
	return v
}

// Complexity maps triangle count to a price multiplier in [1.0, 2.0].
// Print time and failure risk scale with polygon density, with diminishing
// marginal effect, hence the flattening bands.
func Complexity(m *Mesh) float64 {
	if m == nil {
		return 1.0
	}
	n := float64(m.TriangleCount())
	switch {
	case n < 1_000:
		return 1.0
	case n < 10_000:
		return 1.0 + 0.2*(n-1_000)/9_000
	case n < 100_000:
		return 1.2 + 0.3*(n-10_000)/90_000
	default:
		return 1.5 + math.Min(0.5, 0.5*(n-100_000)/900_000)
	}
}

// Thresholds for the printability heuristics.
const (
	thinWallRatio     = 0.05
	steepNormalZ      = -0.7
	overhangVertexCut = 0.10
)

// AssessPrintability flags thin walls (one bounding-box dimension far
// smaller than the largest) and overhangs (too many steeply down-facing
// vertex normals). Floating-island detection needs connectivity analysis
// and is not implemented, so the flag is always false. Never fails:
// errors degrade to CategoryUnknown with a neutral factor.
func AssessPrintability(m *Mesh) (p Printability) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("geometry: printability assessment failed: %v", r)
			p = Printability{Factor: 1.0, Category: CategoryUnknown}
		}
	}()

	if m == nil || m.VertexCount() == 0 {
		return Printability{Factor: 1.0, Category: CategoryUnknown}
	}

	min, max := m.Bounds()
	size := max.Sub(min)
	maxDim := math.Max(size.X, math.Max(size.Y, size.Z))
	minDim := math.Min(size.X, math.Min(size.Y, size.Z))
	thinWalls := maxDim > 0 && minDim < thinWallRatio*maxDim

	overhangs := false
	if nc := len(m.Normals) / 3; nc > 0 {
		steep := 0
		for i := 0; i < nc; i++ {
			if m.Transform.ApplyDirection(m.normal(i)).Z < steepNormalZ {
				steep++
			}
		}
		overhangs = float64(steep)/float64(nc) > overhangVertexCut
	}

	switch {
	case thinWalls && overhangs:
		p = Printability{Factor: 1.5, Category: CategoryDifficult}
	case thinWalls || overhangs:
		p = Printability{Factor: 1.25, Category: CategoryModerate}
	default:
		p = Printability{Factor: 1.0, Category: CategoryEasy}
	}
	p.HasThinWalls = thinWalls
	p.HasOverhangs = overhangs
	return p
}
