package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/errors"
)

type mapGetter map[string]*capsule.Capsule

func (m mapGetter) Get(_ context.Context, id string) (*capsule.Capsule, error) {
	c, ok := m[id]
	if !ok {
		return nil, errors.NewNotFound(id)
	}
	return c, nil
}

func testFields() capsule.Fields {
	return capsule.Fields{
		Name:    "Alex",
		Contact: "+1 (234) 567-8900",
		Message: "Happy Birthday!",
		Date:    "2025-06-01",
		Time:    "09:30",
	}
}

func TestResolveFields_FieldsOnly(t *testing.T) {
	f, err := ResolveFields(context.Background(), nil, "", testFields())
	if err != nil {
		t.Fatalf("ResolveFields failed: %v", err)
	}
	if f != testFields() {
		t.Errorf("fields = %+v, want input unchanged", f)
	}
}

func TestResolveFields_ByID(t *testing.T) {
	g := mapGetter{"01ABC": {
		ID:               "01ABC",
		RecipientName:    "Sam",
		RecipientContact: "555",
		Message:          "hi",
		ScheduledDate:    "2025-01-01",
		ScheduledTime:    "00:00",
		CreatedAt:        time.Now(),
	}}

	f, err := ResolveFields(context.Background(), g, " 01ABC ", capsule.Fields{})
	if err != nil {
		t.Fatalf("ResolveFields failed: %v", err)
	}
	if f.Name != "Sam" || f.Contact != "555" || f.Date != "2025-01-01" {
		t.Errorf("fields = %+v, want capsule 01ABC's fields", f)
	}
}

func TestResolveFields_Ambiguous(t *testing.T) {
	_, err := ResolveFields(context.Background(), mapGetter{}, "01ABC", capsule.Fields{Name: "Alex"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestResolveFields_UnknownID(t *testing.T) {
	_, err := ResolveFields(context.Background(), mapGetter{}, "01NOPE", capsule.Fields{})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestResolveFields_NoGetter(t *testing.T) {
	_, err := ResolveFields(context.Background(), nil, "01ABC", capsule.Fields{})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}
