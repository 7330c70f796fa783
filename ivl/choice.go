package ivl

// Choice is the 2-bit code recorded per MIN/MAX clause during interval
// specialization: which operand's range unambiguously dominated the
// result, or neither. Defined here rather than in package tape so the
// arithmetic kernels (which must stay import-free of the clause/tape
// format) can return it without a dependency cycle; tape aliases this type
// for its own callers.
type Choice uint8

const (
	ChoiceAmbiguous Choice = 0
	ChoiceLHS       Choice = 1
	ChoiceRHS       Choice = 2
)
