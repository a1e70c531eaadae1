// Package records is the persistence boundary for durable entities.
// Two backends implement Store: an in-memory one for dev and tests,
// and a Postgres one driven through database/sql with the pgx driver.
package records

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs
	// to a different owner.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert collides with an existing id.
	ErrConflict = errors.New("record already exists")
)

// ContentStatus is the lifecycle state of a saved post.
type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusScheduled ContentStatus = "scheduled"
	StatusPublished ContentStatus = "published"
)

// ContentRecord is a persisted post. Hooks and the selection index are
// stored separately from the body; the composed final content is derived
// on read and never stored.
type ContentRecord struct {
	ID                string
	OwnerID           string
	Topic             string
	ContentType       string
	Tone              string
	Length            string
	IncludeCTA        bool
	Hooks             []string
	SelectedHookIndex int
	Body              string
	ImageMode         string
	ImageStyle        string
	ImageTemplate     string
	ImagePath         string
	Status            ContentStatus
	ScheduledAt       *time.Time
	PublishedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Company struct {
	ID          string
	OwnerID     string
	Name        string
	Industry    string
	Description string
	Website     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Competitor struct {
	ID        string
	OwnerID   string
	Name      string
	Website   string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Integration is a connection to an external publishing platform.
// One row per (owner, platform); writes upsert.
type Integration struct {
	ID          string
	OwnerID     string
	Platform    string
	AccessToken string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserProfile struct {
	UserID    string
	FullName  string
	Headline  string
	Company   string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentRepository provides owner-scoped access to saved posts.
type ContentRepository interface {
	Insert(ctx context.Context, rec *ContentRecord) error
	Update(ctx context.Context, rec *ContentRecord) error
	Get(ctx context.Context, ownerID, id string) (*ContentRecord, error)
	List(ctx context.Context, ownerID string) ([]*ContentRecord, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type CompanyRepository interface {
	Insert(ctx context.Context, c *Company) error
	Update(ctx context.Context, c *Company) error
	Get(ctx context.Context, ownerID, id string) (*Company, error)
	List(ctx context.Context, ownerID string) ([]*Company, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type CompetitorRepository interface {
	Insert(ctx context.Context, c *Competitor) error
	Update(ctx context.Context, c *Competitor) error
	Get(ctx context.Context, ownerID, id string) (*Competitor, error)
	List(ctx context.Context, ownerID string) ([]*Competitor, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type IntegrationRepository interface {
	// Upsert inserts or replaces the row keyed by (owner, platform).
	Upsert(ctx context.Context, in *Integration) error
	List(ctx context.Context, ownerID string) ([]*Integration, error)
	Delete(ctx context.Context, ownerID, platform string) error
}

type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*UserProfile, error)
	Upsert(ctx context.Context, p *UserProfile) error
}

// Store aggregates the repositories behind a single backend handle.
type Store interface {
	Content() ContentRepository
	Companies() CompanyRepository
	Competitors() CompetitorRepository
	Integrations() IntegrationRepository
	Profiles() ProfileRepository
	Ping(ctx context.Context) error
	Close() error
}
