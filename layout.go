package bgen

// Layout is a versioned variant structure defined by the BGEN format. Its
// value is the one stored in bits 2-5 of the header flags.
type Layout uint32

const (
	Layout1 Layout = iota + 1
	Layout2
)

func (l Layout) String() string {
	switch l {
	case Layout1:
		return "Layout1"
	case Layout2:
		return "Layout2"

	default:
		return "Illegal selection"
	}
}

func (l Layout) valid() bool {
	return l == Layout1 || l == Layout2
}
