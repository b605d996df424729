// Package validation evaluates documents against boolean trees of atomic,
// capability-gated rules.
package validation

import (
	"context"

	"healthpass/internal/documents/models"
	dErrors "healthpass/pkg/domain-errors"
)

// Validator checks one document. A nil error means the document passed.
type Validator interface {
	Validate(ctx context.Context, doc models.Document) error
}

// CheckFunc is the body of an atomic rule.
type CheckFunc func(ctx context.Context, doc models.Document) error

type op uint8

const (
	opAtomic op = iota
	opAll
	opAny
)

// Expr is a node of a validation tree: Atomic(rule), All(children) or
// Any(children). Children may be any Validator, including other Exprs.
type Expr struct {
	op       op
	name     string
	check    CheckFunc
	children []Validator
}

// Atomic wraps a single rule.
func Atomic(name string, check CheckFunc) Expr {
	return Expr{op: opAtomic, name: name, check: check}
}

// All passes when every child passes and reports the first failing child's
// error in registration order. An empty All passes.
func All(children ...Validator) Expr {
	return Expr{op: opAll, name: "all", children: children}
}

// Any passes when some child passes. When all fail it reports the error of
// the first registered child. An empty Any fails.
func Any(children ...Validator) Expr {
	return Expr{op: opAny, name: "any", children: children}
}

// Name identifies the node in logs.
func (e Expr) Name() string { return e.name }

func (e Expr) Validate(ctx context.Context, doc models.Document) error {
	return Evaluate(ctx, e, doc)
}

// Evaluate walks the tree sequentially so the reported error never depends
// on scheduling.
func Evaluate(ctx context.Context, v Validator, doc models.Document) error {
	e, ok := v.(Expr)
	if !ok {
		return v.Validate(ctx, doc)
	}

	switch e.op {
	case opAtomic:
		return e.check(ctx, doc)

	case opAll:
		for _, child := range e.children {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := Evaluate(ctx, child, doc); err != nil {
				return err
			}
		}
		return nil

	case opAny:
		if len(e.children) == 0 {
			return dErrors.New(dErrors.CodeValidationFailed, "no alternative to validate against")
		}
		var first error
		for _, child := range e.children {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := Evaluate(ctx, child, doc)
			if err == nil {
				return nil
			}
			if first == nil {
				first = err
			}
		}
		return first
	}
	return dErrors.New(dErrors.CodeInternal, "unknown validation node")
}
