package hwio

type bitsize interface {
	~uint8 | ~uint16
}

// GetBit reports whether bit n of v is set.
func GetBit[T bitsize](v T, n uint) bool {
	return v>>n&1 != 0
}

// GetBiti returns bit n of v, as 0 or 1.
func GetBiti[T bitsize](v T, n uint) T {
	return v >> n & 1
}

func SetBit[T bitsize](v *T, n uint) {
	*v |= 1 << n
}

func ClearBit[T bitsize](v *T, n uint) {
	*v &^= 1 << n
}

// WriteBit sets or clears bit n of v.
func WriteBit[T bitsize](v *T, n uint, set bool) {
	if set {
		*v |= 1 << n
	} else {
		*v &^= 1 << n
	}
}

func FlipBit[T bitsize](v *T, n uint) {
	*v ^= 1 << n
}
