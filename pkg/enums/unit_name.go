package enums

import "fmt"

// UnitName is the dispensing unit a medication is counted in.
type UnitName string

const (
	UnitTablet   UnitName = "tablet"
	UnitCapsule  UnitName = "capsule"
	UnitBox      UnitName = "box"
	UnitBottle   UnitName = "bottle"
	UnitVial     UnitName = "vial"
	UnitAmpoule  UnitName = "ampoule"
	UnitSachet   UnitName = "sachet"
	UnitTube     UnitName = "tube"
	UnitBlister  UnitName = "blister"
	UnitMillilit UnitName = "ml"
	UnitGram     UnitName = "g"
	UnitUnit     UnitName = "unit"
)

var validUnitNames = []UnitName{
	UnitTablet,
	UnitCapsule,
	UnitBox,
	UnitBottle,
	UnitVial,
	UnitAmpoule,
	UnitSachet,
	UnitTube,
	UnitBlister,
	UnitMillilit,
	UnitGram,
	UnitUnit,
}

// UnitNames returns the closed set of accepted unit names.
func UnitNames() []UnitName {
	out := make([]UnitName, len(validUnitNames))
	copy(out, validUnitNames)
	return out
}

// String implements fmt.Stringer.
func (u UnitName) String() string {
	return string(u)
}

// IsValid reports whether the value belongs to the accepted unit set.
func (u UnitName) IsValid() bool {
	for _, candidate := range validUnitNames {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUnitName converts raw input into a UnitName.
func ParseUnitName(value string) (UnitName, error) {
	for _, candidate := range validUnitNames {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid unit name %q", value)
}
