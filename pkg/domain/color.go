package domain

import dErrors "circles/pkg/domain-errors"

// Color is the single capacity value an identity shares with its circle.
// Invariant: the value must be one of the fixed enum members; the set is
// deliberately coarse so no quantitative state can leak through it.
type Color string

const (
	ColorCyan    Color = "cyan"
	ColorAmber   Color = "amber"
	ColorRed     Color = "red"
	ColorUnknown Color = "unknown"
)

// validColors is the single source of truth for the color enum.
var validColors = map[Color]bool{
	ColorCyan:    true,
	ColorAmber:   true,
	ColorRed:     true,
	ColorUnknown: true,
}

// ParseColor constructs a Color from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or not a member of
// the enum; no other errors are expected.
func ParseColor(s string) (Color, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "color cannot be empty")
	}
	c := Color(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid color")
	}
	return c, nil
}

// IsValid checks if the color is one of the supported enum values.
func (c Color) IsValid() bool {
	return validColors[c]
}

// String returns the string representation of the color.
func (c Color) String() string {
	return string(c)
}
