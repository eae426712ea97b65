package bcf

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported marks inputs this library knowingly cannot process.
	// Callers should stop rather than continue with a partially handled
	// record.
	ErrUnsupported = errors.New("unsupported by this implementation")

	// ErrCorrupt marks records whose content is internally inconsistent.
	// These come from untrusted input and callers may skip them.
	ErrCorrupt = errors.New("malformed record data")

	// ErrInvalidMask is returned when a removal mask names the reference
	// allele or an allele the record does not have.
	ErrInvalidMask = errors.New("invalid allele removal mask")

	// ErrNotBCFP is returned when a stream does not start with MagicNumber.
	ErrNotBCFP = errors.New("not a packed record stream")
)

// UnsupportedKind says which capability is missing.
type UnsupportedKind uint8

const (
	UnsupportedWidth UnsupportedKind = iota + 1
	UnsupportedShape
	UnsupportedNumber
)

func (k UnsupportedKind) String() string {
	switch k {
	case UnsupportedWidth:
		return "encoding width"
	case UnsupportedShape:
		return "cardinality shape"
	case UnsupportedNumber:
		return "cardinality class"

	default:
		return "Illegal selection"
	}
}

// UnsupportedError reports a field that cannot be decoded or rewritten.
type UnsupportedError struct {
	Kind   UnsupportedKind
	Field  string // "" if not known at the point of failure
	Site   string // "" if not known at the point of failure
	Detail string
}

func (e *UnsupportedError) Error() string {
	msg := "unsupported " + e.Kind.String()
	if e.Field != "" {
		msg += " in field " + e.Field
	}
	if e.Site != "" {
		msg += " at " + e.Site
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// DataError reports an inconsistency in the record itself.
type DataError struct {
	Site   string
	Detail string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("malformed record at %s: %s", e.Site, e.Detail)
}

func (e *DataError) Unwrap() error { return ErrCorrupt }

// annotate fills in the field and site of an UnsupportedError raised by a
// primitive that did not know them.
func annotate(err error, field, site string) error {
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		if ue.Field == "" {
			ue.Field = field
		}
		if ue.Site == "" {
			ue.Site = site
		}
	}
	return err
}

// resite replaces the placeholder site of a DataError raised before the
// header was at hand.
func resite(err error, site string) error {
	var de *DataError
	if errors.As(err, &de) {
		de.Site = site
	}
	return err
}
