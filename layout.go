package truetm

// Rect is a rectangle in outer-terminal cells.
type Rect struct {
	X, Y, W, H int
}

// Layout holds the single tiled master/stack arrangement's only state: the
// master width fraction. Everything else is a pure function of the viewport
// and the visible window order.
type Layout struct {
	masterFraction float64
}

// NewLayout creates a layout with the default master fraction.
func NewLayout() *Layout {
	return &Layout{masterFraction: DefaultMasterFraction}
}

// MasterFraction returns the current master width fraction.
func (l *Layout) MasterFraction() float64 {
	return l.masterFraction
}

// AdjustMaster changes the master fraction by delta, saturating silently at
// the clamp bounds.
func (l *Layout) AdjustMaster(delta float64) {
	f := l.masterFraction + delta
	if f < MinMasterFraction {
		f = MinMasterFraction
	}
	if f > MaxMasterFraction {
		f = MaxMasterFraction
	}
	l.masterFraction = f
}

// Arrange tiles n windows into the viewport: the first window (master) takes
// the left master-fraction columns at full height, the rest split the right
// column into horizontal bands, remainder rows going to the topmost bands.
// A single window fills the viewport. The returned rectangles are pairwise
// disjoint and cover the viewport.
func (l *Layout) Arrange(n int, viewport Rect) []Rect {
	if n <= 0 || viewport.W <= 0 || viewport.H <= 0 {
		return nil
	}
	if n == 1 {
		return []Rect{viewport}
	}

	masterW := int(float64(viewport.W) * l.masterFraction)
	if masterW < 1 {
		masterW = 1
	}
	if masterW >= viewport.W {
		masterW = viewport.W - 1
	}

	rects := make([]Rect, 0, n)
	rects = append(rects, Rect{X: viewport.X, Y: viewport.Y, W: masterW, H: viewport.H})

	stackX := viewport.X + masterW
	stackW := viewport.W - masterW
	stackN := n - 1
	bandH := viewport.H / stackN
	remainder := viewport.H % stackN

	y := viewport.Y
	for i := 0; i < stackN; i++ {
		h := bandH
		if i < remainder {
			h++
		}
		if h < 1 {
			h = 1
		}
		rects = append(rects, Rect{X: stackX, Y: y, W: stackW, H: h})
		y += h
	}
	return rects
}
