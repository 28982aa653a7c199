package main

// PackPlanes interleaves three 8-bit planes into width*height consecutive
// (p0, p1, p2) byte triplets, row-major.
//
// Pixels past the end of the shortest plane stay zero.
func PackPlanes(p0, p1, p2 []byte, width, height int) []byte {
	if width <= 0 || height <= 0 {
		return []byte{}
	}

	numPixels := width * height
	packed := make([]byte, numPixels*3)

	n := numPixels
	for _, p := range [][]byte{p0, p1, p2} {
		if len(p) < n {
			n = len(p)
		}
	}

	for i, j := 0, 0; i < n; i, j = i+1, j+3 {
		packed[j] = p0[i]
		packed[j+1] = p1[i]
		packed[j+2] = p2[i]
	}

	return packed
}

// PackFrame interleaves the first three planes of an 8-bit frame, using
// plane 0 for the dimensions.
func PackFrame(f Frame) (packed []byte, width, height int) {
	width = f.Width(0)
	height = f.Height(0)
	return PackPlanes(f.Plane(0), f.Plane(1), f.Plane(2), width, height), width, height
}
