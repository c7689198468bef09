package peripheral

// Value is a single reading returned by Driver.Read.
//
// Every reading flattens to an ordered list of numbers, which is what ends
// up on the wire.
type Value interface {
	Floats() []float64
}

// Scalar is a single numeric reading.
type Scalar float64

// Floats implements Value.
func (s Scalar) Floats() []float64 { return []float64{float64(s)} }

// Sequence is an ordered list of readings, one per channel.
type Sequence []float64

// Floats implements Value.
func (s Sequence) Floats() []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Field is one named reading inside Fields.
type Field struct {
	Name  string
	Value float64
}

// Fields is an ordered set of named readings. Flattening keeps declaration order.
type Fields []Field

// Floats implements Value.
func (f Fields) Floats() []float64 {
	out := make([]float64, len(f))
	for i, field := range f {
		out[i] = field.Value
	}
	return out
}

// Get returns the value of the named field.
func (f Fields) Get(name string) (float64, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return 0, false
}
