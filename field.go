package stored

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	requiredVariant = "required"
	optionalVariant = "optional"
	repeatedVariant = "repeated"
)

// Field describes the levels of a leaf column.
type Field struct {
	Name string

	MaxDefinitionLevel byte
	MaxRepetitionLevel byte

	// RepeatedAncestorDefLevel is the definition level at which the nearest
	// repeated ancestor of the leaf is present; it is the leaf's own maximum
	// definition level when the leaf itself is repeated. Levels below it
	// describe empty or missing lists and produce no value slot.
	RepeatedAncestorDefLevel byte
}

func (f *Field) String() string {
	return fmt.Sprintf("%s{R=%d,D=%d,A=%d}", f.Name, f.MaxRepetitionLevel, f.MaxDefinitionLevel, f.RepeatedAncestorDefLevel)
}

func (f *Field) variant() string {
	switch {
	case f.MaxRepetitionLevel > 0:
		return repeatedVariant
	case f.MaxDefinitionLevel > 0:
		return optionalVariant
	default:
		return requiredVariant
	}
}

func (f *Field) validate() error {
	if f == nil {
		return errors.New("stored: nil field")
	}
	if f.RepeatedAncestorDefLevel > f.MaxDefinitionLevel {
		return errors.Errorf("stored: field %s: repeated ancestor definition level above the maximum definition level", f)
	}
	if f.MaxRepetitionLevel > 0 && f.MaxDefinitionLevel == 0 {
		return errors.Errorf("stored: field %s: repeated field without definition levels", f)
	}
	return nil
}
