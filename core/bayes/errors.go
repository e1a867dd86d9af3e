package bayes

import "errors"

var (
	// ErrInvalidEvidence indicates evidence that references a variable
	// outside a factor's scope or the network, assigns the query variable,
	// or carries a value outside the variable's domain.
	ErrInvalidEvidence = errors.New("invalid evidence")

	// ErrInvalidVariable indicates an elimination step referenced a
	// variable absent from the factor's scope.
	ErrInvalidVariable = errors.New("variable not in factor scope")

	// ErrUnknownVariable indicates a query referenced a variable absent
	// from the network.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrDegenerateDistribution indicates a factor with zero total mass,
	// meaning the evidence has probability zero under the model.
	ErrDegenerateDistribution = errors.New("degenerate distribution: zero total mass")

	// ErrEmptyDataset indicates a build over zero rows.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrMissingClassColumn indicates a row without the class attribute.
	ErrMissingClassColumn = errors.New("missing class column")

	// ErrEmptyDomain indicates a variable constructed with no outcomes.
	ErrEmptyDomain = errors.New("variable domain is empty")

	// ErrDuplicateOutcome indicates a variable domain with repeated labels.
	ErrDuplicateOutcome = errors.New("duplicate outcome in variable domain")
)
