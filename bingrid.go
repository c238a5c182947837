package sharpiso

// BinGrid is a coarse spatial hash over cube indices, used for O(1)-ish
// nearby-selected-cube lookups during selection. Buckets are keyed by
// ⌊coord/BinWidth⌋ per axis.
type BinGrid struct {
	geo      Geometry
	binWidth int
	buckets  map[IntCoord][]Slot
}

// NewBinGrid creates a bin grid with the given bucket width, in cubes.
func NewBinGrid(geo Geometry, binWidth int) *BinGrid {
	if binWidth < 1 {
		binWidth = 1
	}
	return &BinGrid{geo: geo, binWidth: binWidth, buckets: make(map[IntCoord][]Slot)}
}

func (b *BinGrid) bucketOf(c IntCoord) IntCoord {
	return IntCoord{floorDiv(c.X, b.binWidth), floorDiv(c.Y, b.binWidth), floorDiv(c.Z, b.binWidth)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Insert adds a selected cube's slot to the bin grid.
func (b *BinGrid) Insert(cube CubeIndex, slot Slot) {
	bucket := b.bucketOf(b.geo.CoordOf(cube))
	b.buckets[bucket] = append(b.buckets[bucket], slot)
}

// Remove deletes a selected cube's slot from the bin grid (used when a
// selection is reverted during reselect or disk repair).
func (b *BinGrid) Remove(cube CubeIndex, slot Slot) {
	bucket := b.bucketOf(b.geo.CoordOf(cube))
	list := b.buckets[bucket]
	for i, s := range list {
		if s == slot {
			b.buckets[bucket] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Nearby returns every selected-cube slot within 1 bin of the bucket
// containing p.
func (b *BinGrid) Nearby(p Coord3) []Slot {
	center := b.bucketOf(b.geo.CubeOfPointBucket(p))
	var out []Slot
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				key := IntCoord{center.X + dx, center.Y + dy, center.Z + dz}
				out = append(out, b.buckets[key]...)
			}
		}
	}
	return out
}

// NearbyCube is like Nearby but keyed by an existing cube index rather
// than a world point.
func (b *BinGrid) NearbyCube(cube CubeIndex) []Slot {
	center := b.bucketOf(b.geo.CoordOf(cube))
	var out []Slot
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				key := IntCoord{center.X + dx, center.Y + dy, center.Z + dz}
				out = append(out, b.buckets[key]...)
			}
		}
	}
	return out
}

// CubeOfPointBucket is a thin wrapper so BinGrid can key bucket lookups by
// world point without duplicating Geometry.CubeOfPoint's clamping logic.
func (g Geometry) CubeOfPointBucket(p Coord3) IntCoord {
	return g.CoordOf(g.CubeOfPoint(p))
}
