package validation

import (
	"context"

	"healthpass/internal/documents/models"
	dErrors "healthpass/pkg/domain-errors"
)

// Identity is a person a document may belong to.
type Identity struct {
	FirstName string
	LastName  string
}

// ProfileSource yields the account owner and registered children. hasOwner
// is false while no owner has been set up.
type ProfileSource interface {
	Identities(ctx context.Context) (owner Identity, hasOwner bool, children []Identity, err error)
}

// UserOrChild builds, per validation, Any(owner, All(age, child)...) from the
// profiles current at that moment.
type UserOrChild struct {
	profiles ProfileSource
}

func NewUserOrChild(profiles ProfileSource) *UserOrChild {
	return &UserOrChild{profiles: profiles}
}

func (v *UserOrChild) Validate(ctx context.Context, doc models.Document) error {
	if _, ok := doc.(models.AssociableToIdentity); !ok {
		return nil
	}
	expr, err := v.Expr(ctx)
	if err != nil {
		return err
	}
	return Evaluate(ctx, expr, doc)
}

// Expr materializes the tree for the current profiles.
func (v *UserOrChild) Expr(ctx context.Context) (Expr, error) {
	owner, hasOwner, children, err := v.profiles.Identities(ctx)
	if err != nil {
		return Expr{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profiles")
	}
	alternatives := make([]Validator, 0, len(children)+1)
	if hasOwner {
		alternatives = append(alternatives, BelongsTo(owner.FirstName, owner.LastName))
	}
	for _, child := range children {
		alternatives = append(alternatives, All(MaxAge(ChildAgeLimit), BelongsTo(child.FirstName, child.LastName)))
	}
	return Any(alternatives...), nil
}

// Default is the chain every ingested and stored document must pass.
func Default(profiles ProfileSource) Expr {
	return All(
		NotExpired(),
		NotInFuture(),
		NegativeTest(),
		IssuerPresent(),
		NewUserOrChild(profiles),
	)
}
