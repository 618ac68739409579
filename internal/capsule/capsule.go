package capsule

import (
	"strings"
	"time"

	"github.com/hpungsan/timecapsule/internal/errors"
)

// State is the lifecycle state of a capsule.
type State string

const (
	StateScheduled State = "scheduled"
	StateDue       State = "due"
)

// Form field keys, in the order the form presents them.
const (
	FieldName    = "friendName"
	FieldContact = "friendPhone"
	FieldMessage = "message"
	FieldDate    = "scheduledDate"
	FieldTime    = "scheduledTime"
)

// Capsule is a scheduled message waiting to be handed off to a messaging app.
type Capsule struct {
	// ID is a monotonic ULID assigned at creation
	ID string

	// RecipientName is the display name of the friend
	RecipientName string

	// RecipientContact is the phone number as typed; see NormalizeContact
	RecipientContact string

	// Message is the free text to deliver
	Message string

	// ScheduledDate is YYYY-MM-DD and ScheduledTime is HH:MM, both immutable
	ScheduledDate string
	ScheduledTime string

	// CreatedAt is the instant of creation
	CreatedAt time.Time

	// Due flips to true once, when the evaluator sees the target instant pass
	Due bool

	// DueAt is when Due flipped (nil while scheduled)
	DueAt *time.Time
}

// State derives the lifecycle state from the due flag.
func (c *Capsule) State() State {
	if c.Due {
		return StateDue
	}
	return StateScheduled
}

// Target returns the scheduled instant interpreted in loc.
func (c *Capsule) Target(loc *time.Location) (time.Time, error) {
	return ParseSchedule(c.ScheduledDate, c.ScheduledTime, loc)
}

// Fields are the five user-supplied form values shared by the exporter and
// the manager.
type Fields struct {
	Name    string `json:"friendName"`
	Contact string `json:"friendPhone"`
	Message string `json:"message"`
	Date    string `json:"scheduledDate"`
	Time    string `json:"scheduledTime"`
}

// Validate requires every field to be non-blank. The error lists the
// missing field keys in form order.
func (f Fields) Validate() error {
	var missing []string
	for _, kv := range f.ordered() {
		if strings.TrimSpace(kv.value) == "" {
			missing = append(missing, kv.key)
		}
	}
	if len(missing) > 0 {
		return errors.NewValidation(missing)
	}
	return nil
}

type fieldValue struct {
	key   string
	label string
	value string
}

func (f Fields) ordered() []fieldValue {
	return []fieldValue{
		{FieldName, "Name", f.Name},
		{FieldContact, "Phone", f.Contact},
		{FieldMessage, "Message", f.Message},
		{FieldDate, "Date", f.Date},
		{FieldTime, "Time", f.Time},
	}
}
