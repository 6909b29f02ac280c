package lattice

// Geometry helpers for flat row-major site indexing with periodic wrap.
// A site's flat index is sum(coord[d] * stride[d]) with stride[last] = 1.

// Strides computes the row-major stride per dimension
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = acc
		acc *= shape[d]
	}
	return strides
}

// Wrap maps a coordinate onto the periodic range [0, extent)
func Wrap(coord, extent int) int {
	coord %= extent
	if coord < 0 {
		coord += extent
	}
	return coord
}

// IndexOf converts coordinates to a flat index, wrapping periodically
func IndexOf(coords, shape []int) int {
	idx := 0
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		idx += Wrap(coords[d], shape[d]) * acc
		acc *= shape[d]
	}
	return idx
}

// CoordsOf converts a flat index back into per-dimension coordinates
func CoordsOf(idx int, shape []int) []int {
	coords := make([]int, len(shape))
	for d := len(shape) - 1; d >= 0; d-- {
		coords[d] = idx % shape[d]
		idx /= shape[d]
	}
	return coords
}

// NeighborTable holds, per site, the flat indices of its 2*dims periodic
// neighbors ordered +0, -0, +1, -1, ...
type NeighborTable [][]int

// BuildNeighborTable precomputes periodic nearest neighbors for a shape
func BuildNeighborTable(shape []int) NeighborTable {
	size := 1
	for _, extent := range shape {
		size *= extent
	}
	table := make(NeighborTable, size)
	coords := make([]int, len(shape))
	for site := 0; site < size; site++ {
		row := make([]int, 2*len(shape))
		c := CoordsOf(site, shape)
		for d := range shape {
			copy(coords, c)
			coords[d] = c[d] + 1
			row[2*d] = IndexOf(coords, shape)
			coords[d] = c[d] - 1
			row[2*d+1] = IndexOf(coords, shape)
		}
		table[site] = row
	}
	return table
}
