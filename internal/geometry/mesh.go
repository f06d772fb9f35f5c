// Package geometry analyzes triangulated meshes for pricing: enclosed
// volume, polygon complexity, and printability heuristics.
package geometry

import "math"

// Vec3 is a point or direction in model space.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Transform is a world transform applied as scale, then rotation
// (X, then Y, then Z, radians), then translation.
type Transform struct {
	Position Vec3
	Rotation Vec3
	Scale    Vec3
}

// IdentityTransform returns a transform that leaves vertices unchanged.
func IdentityTransform() Transform {
	return Transform{Scale: Vec3{1, 1, 1}}
}

// Apply transforms a vertex into world space.
func (t Transform) Apply(p Vec3) Vec3 {
	p = Vec3{p.X * t.Scale.X, p.Y * t.Scale.Y, p.Z * t.Scale.Z}
	p = t.rotate(p)
	return p.Add(t.Position)
}

// ApplyDirection rotates a direction without scaling or translating it.
// Used for normals, where only orientation matters.
func (t Transform) ApplyDirection(d Vec3) Vec3 {
	return t.rotate(d)
}

func (t Transform) rotate(p Vec3) Vec3 {
	if t.Rotation.X != 0 {
		s, c := math.Sincos(t.Rotation.X)
		p = Vec3{p.X, c*p.Y - s*p.Z, s*p.Y + c*p.Z}
	}
	if t.Rotation.Y != 0 {
		s, c := math.Sincos(t.Rotation.Y)
		p = Vec3{c*p.X + s*p.Z, p.Y, -s*p.X + c*p.Z}
	}
	if t.Rotation.Z != 0 {
		s, c := math.Sincos(t.Rotation.Z)
		p = Vec3{c*p.X - s*p.Y, s*p.X + c*p.Y, p.Z}
	}
	return p
}

// Mesh is a triangle mesh in millimeters. Arrays are flat: vertices and
// normals carry 3 floats per vertex, indices 3 entries per triangle.
// A mesh without indices is read as consecutive vertex triples.
// The mesh is borrowed for the duration of one analysis and never mutated.
type Mesh struct {
	Vertices  []float64
	Normals   []float64
	Indices   []uint32
	Transform Transform
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices) / 3
	}
	return m.VertexCount() / 3
}

func (m *Mesh) vertex(i int) Vec3 {
	return Vec3{m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2]}
}

func (m *Mesh) normal(i int) Vec3 {
	return Vec3{m.Normals[3*i], m.Normals[3*i+1], m.Normals[3*i+2]}
}

// triangle returns the world-space corners of triangle t.
func (m *Mesh) triangle(t int) (a, b, c Vec3) {
	var i, j, k int
	if len(m.Indices) > 0 {
		i, j, k = int(m.Indices[3*t]), int(m.Indices[3*t+1]), int(m.Indices[3*t+2])
	} else {
		i, j, k = 3*t, 3*t+1, 3*t+2
	}
	return m.Transform.Apply(m.vertex(i)),
		m.Transform.Apply(m.vertex(j)),
		m.Transform.Apply(m.vertex(k))
}

// Bounds returns the world-space bounding box. An empty mesh yields a
// zero-size box at the transform's position.
func (m *Mesh) Bounds() (min, max Vec3) {
	if m.VertexCount() == 0 {
		return m.Transform.Position, m.Transform.Position
	}

	min = Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	max = Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i < m.VertexCount(); i++ {
		p := m.Transform.Apply(m.vertex(i))
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	return min, max
}
