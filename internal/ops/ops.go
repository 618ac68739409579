// Package ops holds the side effects shared by the CLI and MCP front-ends:
// writing export files and opening deep links.
package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/errors"
)

// CapsuleGetter looks up a stored capsule.
type CapsuleGetter interface {
	Get(ctx context.Context, id string) (*capsule.Capsule, error)
}

// ResolveFields picks the fields to export. Exactly one source is allowed:
// either an id of a stored capsule, or the form fields themselves.
// Rules:
// - id together with any field → INVALID_REQUEST
// - neither → the fields are returned as given, so Validate reports what is missing
func ResolveFields(ctx context.Context, g CapsuleGetter, id string, f capsule.Fields) (capsule.Fields, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return f, nil
	}
	if f != (capsule.Fields{}) {
		return capsule.Fields{}, errors.NewInvalidRequest("specify either id or capsule fields, not both")
	}
	if g == nil {
		return capsule.Fields{}, errors.NewInvalidRequest("export by id is not available here")
	}

	c, err := g.Get(ctx, id)
	if err != nil {
		return capsule.Fields{}, err
	}
	return capsule.FieldsOf(c), nil
}
