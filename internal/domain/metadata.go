package domain

// VariableMetadata is the per-extraction description of one variable: its
// declared shape plus the resolved coordinates of every dimension in it.
type VariableMetadata struct {
	Variable string
	Type     string
	Shape    string
	Dims     []string
	Coords   map[string][]float64
	Points   int // product of the coordinate lengths
}

// Grid builds the flattening layout for this variable.
func (m VariableMetadata) Grid(granuleTime string, fixedLevel float64, normalizeLongitude bool) Grid {
	return Grid{
		Variable:           m.Variable,
		Dims:               m.Dims,
		Coords:             m.Coords,
		Time:               granuleTime,
		FixedLevel:         fixedLevel,
		NormalizeLongitude: normalizeLongitude,
	}
}
