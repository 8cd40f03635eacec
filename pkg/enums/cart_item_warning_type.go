package enums

import "fmt"

// CartItemWarningType enumerates non-blocking warnings shown next to cart lines.
type CartItemWarningType string

const (
	CartItemWarningTypeExceedsStock CartItemWarningType = "exceeds_stock"
	CartItemWarningTypeOutOfStock   CartItemWarningType = "out_of_stock"
)

var validCartItemWarningTypes = []CartItemWarningType{
	CartItemWarningTypeExceedsStock,
	CartItemWarningTypeOutOfStock,
}

// String implements fmt.Stringer.
func (c CartItemWarningType) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CartItemWarningType) IsValid() bool {
	for _, candidate := range validCartItemWarningTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartItemWarningType converts raw input into a CartItemWarningType.
func ParseCartItemWarningType(value string) (CartItemWarningType, error) {
	for _, candidate := range validCartItemWarningTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart item warning type %q", value)
}
