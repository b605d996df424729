package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"healthpass/internal/documents/models"
	dErrors "healthpass/pkg/domain-errors"
	"healthpass/pkg/requestcontext"
)

// FutureSkew is how far ahead of the local clock an effective date may lie.
const FutureSkew = 5 * time.Minute

// ChildAgeLimit is the age in years above which a document cannot be
// attributed to a registered child.
const ChildAgeLimit = 14

// Each rule applies only to documents exposing the capability it needs and
// passes everything else.

// NotExpired fails once the document's expiry is reached.
func NotExpired() Expr {
	return Atomic("not_expired", func(ctx context.Context, doc models.Document) error {
		if !requestcontext.Now(ctx).Before(doc.ExpiresAt()) {
			return dErrors.New(dErrors.CodeExpired, fmt.Sprintf("expired at %s", doc.ExpiresAt().Format(time.RFC3339)))
		}
		return nil
	})
}

// NegativeTest rejects positive test results.
func NegativeTest() Expr {
	return Atomic("negative_test", func(_ context.Context, doc models.Document) error {
		t, ok := doc.(models.TestResult)
		if ok && !t.IsNegative() {
			return dErrors.New(dErrors.CodePositiveTest, "the test result is positive")
		}
		return nil
	})
}

// IssuerPresent rejects issued documents without an issuer.
func IssuerPresent() Expr {
	return Atomic("issuer_present", func(_ context.Context, doc models.Document) error {
		i, ok := doc.(models.Issued)
		if ok && strings.TrimSpace(i.Issuer()) == "" {
			return dErrors.New(dErrors.CodeNoIssuer, "the document names no issuer")
		}
		return nil
	})
}

// NotInFuture rejects documents dated after now plus FutureSkew, and
// documents whose validity window has not opened yet.
func NotInFuture() Expr {
	return Atomic("not_in_future", func(ctx context.Context, doc models.Document) error {
		horizon := requestcontext.Now(ctx).Add(FutureSkew)
		if d, ok := doc.(models.Dated); ok && d.EffectiveDate().After(horizon) {
			return dErrors.New(dErrors.CodeTestInFuture, "the document is dated in the future")
		}
		if w, ok := doc.(models.ValidityWindow); ok && w.ValidFrom().After(horizon) {
			return dErrors.New(dErrors.CodeTestInFuture,
				fmt.Sprintf("the document is valid from %s", w.ValidFrom().Format(time.DateOnly)))
		}
		return nil
	})
}

// BelongsTo requires the holder name to match firstName and lastName.
func BelongsTo(firstName, lastName string) Expr {
	return Atomic("belongs_to", func(_ context.Context, doc models.Document) error {
		a, ok := doc.(models.AssociableToIdentity)
		if ok && !a.BelongsToUser(firstName, lastName) {
			return dErrors.New(dErrors.CodeNameValidationFailed, "the holder name does not match")
		}
		return nil
	})
}

// MaxAge fails when the holder is older than years, at day granularity: on
// the birthday itself the holder still passes.
func MaxAge(years int) Expr {
	return Atomic("max_age", func(ctx context.Context, doc models.Document) error {
		d, ok := doc.(models.ContainsDateOfBirth)
		if !ok || d.DateOfBirth().IsZero() {
			return nil
		}
		today := civilDate(requestcontext.Now(ctx))
		limit := civilDate(d.DateOfBirth()).AddDate(years, 0, 0)
		if today.After(limit) {
			return dErrors.New(dErrors.CodeInvalidChildAge, fmt.Sprintf("the holder is older than %d years", years))
		}
		return nil
	})
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
