package mos

// Vec2i is an integer lattice coordinate.
type Vec2i struct {
	X, Y int
}

// Vec2d is a point in tuning space.
type Vec2d struct {
	X, Y float64
}

func (v Vec2i) Add(w Vec2i) Vec2i {
	return Vec2i{v.X + w.X, v.Y + w.Y}
}

func (v Vec2i) Sub(w Vec2i) Vec2i {
	return Vec2i{v.X - w.X, v.Y - w.Y}
}

// Affine maps lattice coordinates into tuning space. The x axis of the
// image is log2 frequency relative to the root, the y axis is the strip
// coordinate used for scale selection.
//
//	X = A*x + B*y + TX
//	Y = C*x + D*y + TY
type Affine struct {
	A, B, C, D, TX, TY float64
}

// Apply maps a lattice coordinate into tuning space.
func (t Affine) Apply(v Vec2i) Vec2d {
	x := float64(v.X)
	y := float64(v.Y)
	return Vec2d{
		X: t.A*x + t.B*y + t.TX,
		Y: t.C*x + t.D*y + t.TY,
	}
}

// applyLinear applies only the linear part (translation zeroed).
func (t Affine) applyLinear(v Vec2i) Vec2d {
	x := float64(v.X)
	y := float64(v.Y)
	return Vec2d{
		X: t.A*x + t.B*y,
		Y: t.C*x + t.D*y,
	}
}

// affineFromThreeDots returns the affine transform mapping a1->b1, a2->b2,
// a3->b3. The linear part is solved from the two difference vectors, the
// translation from a1.
func affineFromThreeDots(a1, a2, a3, b1, b2, b3 Vec2d) Affine {
	ux, uy := a2.X-a1.X, a2.Y-a1.Y
	vx, vy := a3.X-a1.X, a3.Y-a1.Y
	det := ux*vy - uy*vx

	lux, luy := b2.X-b1.X, b2.Y-b1.Y
	lvx, lvy := b3.X-b1.X, b3.Y-b1.Y

	var t Affine
	t.A = (lux*vy - lvx*uy) / det
	t.B = (lvx*ux - lux*vx) / det
	t.C = (luy*vy - lvy*uy) / det
	t.D = (lvy*ux - luy*vx) / det
	t.TX = b1.X - t.A*a1.X - t.B*a1.Y
	t.TY = b1.Y - t.C*a1.X - t.D*a1.Y
	return t
}
