package interp

// NumSlots is the number of variable slots, one per letter.
const NumSlots = 26

// Variables is the letter-addressed variable store. Upper and lower case of
// a letter share a slot.
type Variables [NumSlots]int32

// slot maps a letter to its index.
func slot(c byte) (int, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return int(c - 'a'), true
	case c >= 'A' && c <= 'Z':
		return int(c - 'A'), true
	}
	return -1, false
}

func (v *Variables) Get(c byte) (int32, bool) {
	i, ok := slot(c)
	if !ok {
		return 0, false
	}
	return v[i], true
}

func (v *Variables) Set(c byte, val int32) bool {
	i, ok := slot(c)
	if !ok {
		return false
	}
	v[i] = val
	return true
}

// SlotName returns the lower-case letter of slot i.
func SlotName(i int) byte {
	return byte('a' + i)
}
