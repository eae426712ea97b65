package bcf

// Number is the declared cardinality class of a field.
type Number uint8

const (
	// NumberFixed fields hold FieldDecl.Count values.
	NumberFixed Number = iota
	// NumberA fields hold one value per alternate allele.
	NumberA
	// NumberR fields hold one value per allele, reference included.
	NumberR
	// NumberG fields hold one value per unordered genotype.
	NumberG
	// NumberVar fields hold a variable number of values.
	NumberVar
)

func (n Number) String() string {
	switch n {
	case NumberFixed:
		return "Fixed"
	case NumberA:
		return "A"
	case NumberR:
		return "R"
	case NumberG:
		return "G"
	case NumberVar:
		return "."

	default:
		return "Illegal selection"
	}
}

// Kind distinguishes whole-record (INFO) declarations from per-sample
// (FORMAT) declarations of the same name.
type Kind uint8

const (
	KindInfo Kind = iota
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "INFO"
	case KindFormat:
		return "FORMAT"

	default:
		return "Illegal selection"
	}
}
