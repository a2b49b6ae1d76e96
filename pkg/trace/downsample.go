package trace

// Downsample reduces src to at most maxPoints entries by decimation, for
// display. It reuses dst when it has enough capacity and returns the
// resulting slice. When src already fits, all entries are copied.
func Downsample[T any](dst []T, src []T, maxPoints int) []T {
	if maxPoints <= 0 {
		return dst[:0]
	}

	if len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		result := make([]T, len(src))
		copy(result, src)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	step := float64(len(src)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(src) {
			dst = append(dst, src[idx])
		}
	}

	return dst
}
