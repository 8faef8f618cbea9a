package workflow

import "errors"

var (
	// ErrInvalidDefinition marks structural or semantic errors in a workflow
	// definition: dangling edges, missing input/output roles, arity
	// violations, cycles. Wrapped errors carry the offending node id.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrInternal marks unexpected failures from collaborators during
	// compilation, such as a provider connect failure or a decrypt error.
	ErrInternal = errors.New("internal workflow error")
)
