// Package geom provides the coordinate and bounding-volume primitives shared
// by the entity store, prediction, and world streaming packages. The CORE
// treats all three axes symbolically and does not assume an "up" axis except
// where physics gravity is applied (see Range and the Gravity field of
// entity integrators).
package geom

import "github.com/go-gl/mathgl/mgl64"

// Pos is an integer block/voxel position.
type Pos [3]int

// X, Y and Z return the individual components of the position.
func (p Pos) X() int { return p[0] }
func (p Pos) Y() int { return p[1] }
func (p Pos) Z() int { return p[2] }

// Add returns p+o.
func (p Pos) Add(o Pos) Pos {
	return Pos{p[0] + o[0], p[1] + o[1], p[2] + o[2]}
}

// Vec3 converts the position to a float64 vector.
func (p Pos) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
}

// PosFromVec3 floors v component-wise into a Pos.
func PosFromVec3(v mgl64.Vec3) Pos {
	return Pos{int(mgl64.Floor(v[0])), int(mgl64.Floor(v[1])), int(mgl64.Floor(v[2]))}
}

// Range is an inclusive vertical range of valid Y coordinates, e.g. [0, 255].
type Range [2]int

// Min and Max return the bounds of the range.
func (r Range) Min() int { return r[0] }
func (r Range) Max() int { return r[1] }

// Clamp restricts y to the range.
func (r Range) Clamp(y float64) float64 {
	if y < float64(r[0]) {
		return float64(r[0])
	}
	if y > float64(r[1]) {
		return float64(r[1])
	}
	return y
}

// Rotation holds a yaw/pitch pair in degrees.
type Rotation [2]float64

// Yaw and Pitch return the individual components.
func (r Rotation) Yaw() float64   { return r[0] }
func (r Rotation) Pitch() float64 { return r[1] }

// BBox is an axis-aligned bounding box expressed as min/max corners.
type BBox struct {
	min, max mgl64.Vec3
}

// NewBBox creates a BBox from the two opposite corners passed, ordering them
// so that Min() is always component-wise smaller than Max().
func NewBBox(a, b mgl64.Vec3) BBox {
	min, max := mgl64.Vec3{}, mgl64.Vec3{}
	for i := 0; i < 3; i++ {
		if a[i] < b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return BBox{min: min, max: max}
}

// Min and Max return the bounding box corners.
func (b BBox) Min() mgl64.Vec3 { return b.min }
func (b BBox) Max() mgl64.Vec3 { return b.max }

// Translate moves the bounding box by v.
func (b BBox) Translate(v mgl64.Vec3) BBox {
	return BBox{min: b.min.Add(v), max: b.max.Add(v)}
}

// Extend grows the bounding box in the direction of v, used to build the
// swept volume a moving entity will occupy over the coming physics step.
func (b BBox) Extend(v mgl64.Vec3) BBox {
	min, max := b.min, b.max
	for i := 0; i < 3; i++ {
		if v[i] < 0 {
			min[i] += v[i]
		} else {
			max[i] += v[i]
		}
	}
	return BBox{min: min, max: max}
}

// IntersectsWith reports whether the two bounding boxes overlap on every
// axis.
func (b BBox) IntersectsWith(o BBox) bool {
	for i := 0; i < 3; i++ {
		if b.min[i] >= o.max[i] || b.max[i] <= o.min[i] {
			return false
		}
	}
	return true
}

// YOffset reduces deltaY in magnitude so that translating b by it along the Y
// axis will not cause b to penetrate o, should the two already overlap on X/Z.
func (b BBox) YOffset(o BBox, deltaY float64) float64 {
	if b.max[0] <= o.min[0] || b.min[0] >= o.max[0] || b.max[2] <= o.min[2] || b.min[2] >= o.max[2] {
		return deltaY
	}
	if deltaY > 0 && b.max[1] <= o.min[1] {
		if d := o.min[1] - b.max[1]; d < deltaY {
			return d
		}
	} else if deltaY < 0 && b.min[1] >= o.max[1] {
		if d := o.max[1] - b.min[1]; d > deltaY {
			return d
		}
	}
	return deltaY
}
