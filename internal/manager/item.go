package manager

import (
	"time"

	"github.com/hpungsan/timecapsule/internal/capsule"
)

// Item is a capsule as presented by List, with derived state and countdown.
type Item struct {
	ID               string            `json:"id"`
	RecipientName    string            `json:"recipient_name"`
	RecipientContact string            `json:"recipient_contact"`
	Message          string            `json:"message"`
	ScheduledDate    string            `json:"scheduled_date"`
	ScheduledTime    string            `json:"scheduled_time"`
	TargetAt         *time.Time        `json:"target_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Due              bool              `json:"due"`
	DueAt            *time.Time        `json:"due_at,omitempty"`
	State            capsule.State     `json:"state"`
	Countdown        capsule.Countdown `json:"countdown"`
	CountdownText    string            `json:"countdown_text"`
}

func (m *Manager) item(c *capsule.Capsule, now time.Time) Item {
	it := Item{
		ID:               c.ID,
		RecipientName:    c.RecipientName,
		RecipientContact: c.RecipientContact,
		Message:          c.Message,
		ScheduledDate:    c.ScheduledDate,
		ScheduledTime:    c.ScheduledTime,
		CreatedAt:        c.CreatedAt,
		Due:              c.Due,
		DueAt:            c.DueAt,
		State:            c.State(),
	}

	target, err := c.Target(m.loc)
	if err == nil {
		it.TargetAt = &target
		it.Countdown = capsule.TimeUntil(target, now)
	}
	it.CountdownText = it.Countdown.String()
	return it
}
