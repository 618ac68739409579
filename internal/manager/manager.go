package manager

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/errors"
)

// DefaultTickInterval is how often the evaluator runs unless configured.
const DefaultTickInterval = time.Second

// Store is the ordered capsule collection the manager owns.
type Store interface {
	Insert(ctx context.Context, c *capsule.Capsule) error
	Get(ctx context.Context, id string) (*capsule.Capsule, error)
	List(ctx context.Context) ([]*capsule.Capsule, error)
	ListPending(ctx context.Context) ([]*capsule.Capsule, error)
	MarkDue(ctx context.Context, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// Opener hands a deep link to the host environment. It is fire and forget:
// whether anything actually opened is not observable.
type Opener interface {
	Open(url string)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string)

// Open calls f(url).
func (f OpenerFunc) Open(url string) { f(url) }

type nopOpener struct{}

func (nopOpener) Open(string) {}

// Manager holds the capsule collection and drives the due evaluator.
// All collection access is serialized through mu; the evaluator loop runs in
// a single goroutine so ticks never overlap.
type Manager struct {
	mu      sync.Mutex
	store   Store
	clock   clockwork.Clock
	entropy io.Reader

	loc      *time.Location
	interval time.Duration
	maxChars int
	opener   Opener
	log      *slog.Logger
	onDue    func(*capsule.Capsule)

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocation sets the time zone scheduled date/time pairs are read in.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithTickInterval sets the evaluator period.
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMessageMaxChars caps message length in runes. Zero disables the cap.
func WithMessageMaxChars(n int) Option {
	return func(m *Manager) { m.maxChars = n }
}

// WithOpener sets where dispatch links are sent.
func WithOpener(o Opener) Option {
	return func(m *Manager) {
		if o != nil {
			m.opener = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithOnDue registers a hook called after each Scheduled→Due flip.
// It runs on the evaluator goroutine outside the collection lock.
func WithOnDue(fn func(*capsule.Capsule)) Option {
	return func(m *Manager) { m.onDue = fn }
}

// New creates a manager over store. The manager takes ownership of the
// store; Close releases both.
func New(store Store, clock clockwork.Clock, opts ...Option) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Manager{
		store:    store,
		clock:    clock,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		loc:      time.Local,
		interval: DefaultTickInterval,
		opener:   nopOpener{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Location returns the manager's schedule time zone.
func (m *Manager) Location() *time.Location {
	return m.loc
}

// Now returns the manager clock's current time in its location.
func (m *Manager) Now() time.Time {
	return m.clock.Now().In(m.loc)
}

// Create validates fields and appends a new scheduled capsule.
// On any failure the collection is unchanged.
func (m *Manager) Create(ctx context.Context, f capsule.Fields) (*capsule.Capsule, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if capsule.NormalizeContact(f.Contact) == "" {
		return nil, errors.NewInvalidRequest("friendPhone must contain at least one digit")
	}
	if m.maxChars > 0 {
		if n := capsule.CountChars(f.Message); n > m.maxChars {
			return nil, errors.NewMessageTooLarge(m.maxChars, n)
		}
	}
	if _, err := capsule.ParseSchedule(f.Date, f.Time, m.loc); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	id, err := ulid.New(ulid.Timestamp(now), m.entropy)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	c := &capsule.Capsule{
		ID:               id.String(),
		RecipientName:    f.Name,
		RecipientContact: f.Contact,
		Message:          f.Message,
		ScheduledDate:    f.Date,
		ScheduledTime:    f.Time,
		CreatedAt:        now,
	}
	if err := m.store.Insert(ctx, c); err != nil {
		return nil, err
	}

	m.log.Info("capsule created", "id", c.ID, "scheduled_date", c.ScheduledDate, "scheduled_time", c.ScheduledTime)
	return c, nil
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete removes a capsule. An unknown id is not an error; Deleted is false.
func (m *Manager) Delete(ctx context.Context, id string) (*DeleteOutput, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	m.mu.Lock()
	deleted, err := m.store.Delete(ctx, id)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if deleted {
		m.log.Info("capsule deleted", "id", id)
	} else {
		m.log.Debug("delete of unknown capsule ignored", "id", id)
	}
	return &DeleteOutput{Deleted: deleted, ID: id}, nil
}

// Get returns one capsule or NOT_FOUND.
func (m *Manager) Get(ctx context.Context, id string) (*capsule.Capsule, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Get(ctx, id)
}

// List returns every capsule in insertion order with its countdown at the
// current clock time.
func (m *Manager) List(ctx context.Context) ([]Item, error) {
	m.mu.Lock()
	capsules, err := m.store.List(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := m.Now()
	items := make([]Item, 0, len(capsules))
	for _, c := range capsules {
		items = append(items, m.item(c, now))
	}
	return items, nil
}

// Describe renders one capsule as an Item at the current clock time.
func (m *Manager) Describe(c *capsule.Capsule) Item {
	return m.item(c, m.Now())
}

// DispatchOutput describes a handed-off capsule.
type DispatchOutput struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Recipient string     `json:"recipient"`
	DueAt     *time.Time `json:"due_at,omitempty"`
}

// Link builds the deep link for a due capsule without opening it.
func (m *Manager) Link(ctx context.Context, id string) (*DispatchOutput, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Due {
		return nil, errors.NewNotDue(c.ID)
	}

	link, err := capsule.DeepLink(c)
	if err != nil {
		return nil, err
	}
	return &DispatchOutput{
		ID:        c.ID,
		URL:       link,
		Recipient: c.RecipientName,
		DueAt:     c.DueAt,
	}, nil
}

// Dispatch builds the deep link for a due capsule and hands it to the
// opener. It does not change the capsule and may be repeated.
func (m *Manager) Dispatch(ctx context.Context, id string) (*DispatchOutput, error) {
	out, err := m.Link(ctx, id)
	if err != nil {
		return nil, err
	}
	m.opener.Open(out.URL)
	m.log.Info("capsule dispatched", "id", out.ID)
	return out, nil
}

// Close stops the evaluator and releases the collection.
func (m *Manager) Close() error {
	m.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Close()
}
