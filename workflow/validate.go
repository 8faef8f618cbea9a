package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// paramValidator checks struct tags on node parameter types. Shared instance,
// safe for concurrent use.
var paramValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateParams statically checks every node's parameters: required slot and
// port names, required provider fields, non-negative sizes. It does not check
// graph topology; that is the graph container's job.
func ValidateParams(d *Definition) error {
	for id, node := range d.Nodes {
		if node.Kind == nil {
			return fmt.Errorf("%w: node %s has no kind", ErrInvalidDefinition, id)
		}
		if err := validateKind(node.Kind); err != nil {
			return fmt.Errorf("%w: node %s: %s", ErrInvalidDefinition, id, err)
		}
	}
	return nil
}

func validateKind(k Kind) error {
	switch kind := k.(type) {
	case ProviderInput:
		if kind.Provider == nil {
			return fmt.Errorf("provider params missing")
		}
		return paramValidator.Struct(kind.Provider)
	case ProviderOutput:
		if kind.Provider == nil {
			return fmt.Errorf("provider params missing")
		}
		if kind.BatchSize < 0 {
			return fmt.Errorf("batch size must not be negative")
		}
		return paramValidator.Struct(kind.Provider)
	case CacheInput:
		return paramValidator.Struct(kind)
	case CacheOutput:
		return paramValidator.Struct(kind)
	case Transform:
		if kind.Transformer == nil {
			return fmt.Errorf("transformer missing")
		}
		return paramValidator.Struct(kind.Transformer)
	case Switch:
		if kind.Condition == nil {
			return fmt.Errorf("condition missing")
		}
		if kind.MatchPort == "" || kind.ElsePort == "" {
			return fmt.Errorf("switch requires match and else ports")
		}
		if kind.MatchPort == kind.ElsePort {
			return fmt.Errorf("switch ports must differ")
		}
		return paramValidator.Struct(kind.Condition)
	}
	return fmt.Errorf("unknown node kind %T", k)
}
