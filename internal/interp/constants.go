package interp

// Constant is a named integer the evaluator resolves before native functions.
type Constant struct {
	Name  string
	Value int32
}

var constants = []Constant{
	{Name: "LOW", Value: 0},
	{Name: "HIGH", Value: 1},
	{Name: "false", Value: 0},
	{Name: "true", Value: 1},
}

// Constants returns a copy of the constant table.
func Constants() []Constant {
	out := make([]Constant, len(constants))
	copy(out, constants)
	return out
}

// lookupConstant matches the whole declared name at s.
func lookupConstant(src []byte, s, e int) (Constant, bool) {
	for _, c := range constants {
		if hasWord(src, s, e, c.Name) {
			return c, true
		}
	}
	return Constant{}, false
}
