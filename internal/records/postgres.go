package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store on top of database/sql with the pgx
// driver. Schema is managed by cmd/migrate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Content() ContentRepository          { return &pgContent{db: s.db} }
func (s *PostgresStore) Companies() CompanyRepository        { return &pgCompanies{db: s.db} }
func (s *PostgresStore) Competitors() CompetitorRepository   { return &pgCompetitors{db: s.db} }
func (s *PostgresStore) Integrations() IntegrationRepository { return &pgIntegrations{db: s.db} }
func (s *PostgresStore) Profiles() ProfileRepository         { return &pgProfiles{db: s.db} }

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *PostgresStore) Close() error                   { return s.db.Close() }

type pgContent struct {
	db *sql.DB
}

const contentColumns = `id, owner_id, topic, content_type, tone, length, include_cta,
	hooks, selected_hook_index, body, image_mode, image_style, image_template,
	image_path, status, scheduled_at, published_at, created_at, updated_at`

func (r *pgContent) Insert(ctx context.Context, rec *ContentRecord) error {
	hooks, err := json.Marshal(rec.Hooks)
	if err != nil {
		return fmt.Errorf("marshal hooks: %w", err)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO content (`+contentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		rec.ID, rec.OwnerID, rec.Topic, rec.ContentType, rec.Tone, rec.Length,
		rec.IncludeCTA, hooks, rec.SelectedHookIndex, rec.Body, rec.ImageMode,
		rec.ImageStyle, rec.ImageTemplate, rec.ImagePath, rec.Status,
		rec.ScheduledAt, rec.PublishedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (r *pgContent) Update(ctx context.Context, rec *ContentRecord) error {
	hooks, err := json.Marshal(rec.Hooks)
	if err != nil {
		return fmt.Errorf("marshal hooks: %w", err)
	}
	rec.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE content SET topic=$3, content_type=$4, tone=$5, length=$6,
			include_cta=$7, hooks=$8, selected_hook_index=$9, body=$10,
			image_mode=$11, image_style=$12, image_template=$13, image_path=$14,
			status=$15, scheduled_at=$16, published_at=$17, updated_at=$18
		WHERE id=$1 AND owner_id=$2`,
		rec.ID, rec.OwnerID, rec.Topic, rec.ContentType, rec.Tone, rec.Length,
		rec.IncludeCTA, hooks, rec.SelectedHookIndex, rec.Body, rec.ImageMode,
		rec.ImageStyle, rec.ImageTemplate, rec.ImagePath, rec.Status,
		rec.ScheduledAt, rec.PublishedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return requireRow(res)
}

func (r *pgContent) Get(ctx context.Context, ownerID, id string) (*ContentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content WHERE id=$1 AND owner_id=$2`, id, ownerID)
	return scanContent(row)
}

func (r *pgContent) List(ctx context.Context, ownerID string) ([]*ContentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM content WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var out []*ContentRecord
	for rows.Next() {
		rec, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *pgContent) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM content WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*ContentRecord, error) {
	var rec ContentRecord
	var hooks []byte
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Topic, &rec.ContentType, &rec.Tone,
		&rec.Length, &rec.IncludeCTA, &hooks, &rec.SelectedHookIndex,
		&rec.Body, &rec.ImageMode, &rec.ImageStyle, &rec.ImageTemplate,
		&rec.ImagePath, &rec.Status, &rec.ScheduledAt, &rec.PublishedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}
	if len(hooks) > 0 {
		if err := json.Unmarshal(hooks, &rec.Hooks); err != nil {
			return nil, fmt.Errorf("unmarshal hooks: %w", err)
		}
	}
	return &rec, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type pgCompanies struct {
	db *sql.DB
}

func (r *pgCompanies) Insert(ctx context.Context, c *Company) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO companies (id, owner_id, name, industry, description, website, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.OwnerID, c.Name, c.Industry, c.Description, c.Website, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (r *pgCompanies) Update(ctx context.Context, c *Company) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE companies SET name=$3, industry=$4, description=$5, website=$6, updated_at=$7
		WHERE id=$1 AND owner_id=$2`,
		c.ID, c.OwnerID, c.Name, c.Industry, c.Description, c.Website, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return requireRow(res)
}

func (r *pgCompanies) Get(ctx context.Context, ownerID, id string) (*Company, error) {
	var c Company
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, industry, description, website, created_at, updated_at
		FROM companies WHERE id=$1 AND owner_id=$2`, id, ownerID).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.Industry, &c.Description, &c.Website, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

func (r *pgCompanies) List(ctx context.Context, ownerID string) ([]*Company, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, industry, description, website, created_at, updated_at
		FROM companies WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []*Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Industry, &c.Description, &c.Website, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *pgCompanies) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	return requireRow(res)
}

type pgCompetitors struct {
	db *sql.DB
}

func (r *pgCompetitors) Insert(ctx context.Context, c *Competitor) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO competitors (id, owner_id, name, website, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.OwnerID, c.Name, c.Website, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert competitor: %w", err)
	}
	return nil
}

func (r *pgCompetitors) Update(ctx context.Context, c *Competitor) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE competitors SET name=$3, website=$4, notes=$5, updated_at=$6
		WHERE id=$1 AND owner_id=$2`,
		c.ID, c.OwnerID, c.Name, c.Website, c.Notes, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update competitor: %w", err)
	}
	return requireRow(res)
}

func (r *pgCompetitors) Get(ctx context.Context, ownerID, id string) (*Competitor, error) {
	var c Competitor
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, website, notes, created_at, updated_at
		FROM competitors WHERE id=$1 AND owner_id=$2`, id, ownerID).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.Website, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get competitor: %w", err)
	}
	return &c, nil
}

func (r *pgCompetitors) List(ctx context.Context, ownerID string) ([]*Competitor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, website, notes, created_at, updated_at
		FROM competitors WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	defer rows.Close()

	var out []*Competitor
	for rows.Next() {
		var c Competitor
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Website, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan competitor: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *pgCompetitors) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM competitors WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete competitor: %w", err)
	}
	return requireRow(res)
}

type pgIntegrations struct {
	db *sql.DB
}

func (r *pgIntegrations) Upsert(ctx context.Context, in *Integration) error {
	now := time.Now().UTC()
	in.CreatedAt = now
	in.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO integrations (id, owner_id, platform, access_token, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (owner_id, platform) DO UPDATE
		SET access_token=EXCLUDED.access_token, status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`,
		in.ID, in.OwnerID, in.Platform, in.AccessToken, in.Status, in.CreatedAt, in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert integration: %w", err)
	}
	return nil
}

func (r *pgIntegrations) List(ctx context.Context, ownerID string) ([]*Integration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, platform, access_token, status, created_at, updated_at
		FROM integrations WHERE owner_id=$1 ORDER BY platform`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []*Integration
	for rows.Next() {
		var in Integration
		if err := rows.Scan(&in.ID, &in.OwnerID, &in.Platform, &in.AccessToken, &in.Status, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (r *pgIntegrations) Delete(ctx context.Context, ownerID, platform string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM integrations WHERE owner_id=$1 AND platform=$2`, ownerID, platform)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	return requireRow(res)
}

type pgProfiles struct {
	db *sql.DB
}

func (r *pgProfiles) Get(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, headline, company, timezone, created_at, updated_at
		FROM user_profiles WHERE user_id=$1`, userID).
		Scan(&p.UserID, &p.FullName, &p.Headline, &p.Company, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *pgProfiles) Upsert(ctx context.Context, p *UserProfile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, full_name, headline, company, timezone, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id) DO UPDATE
		SET full_name=EXCLUDED.full_name, headline=EXCLUDED.headline,
			company=EXCLUDED.company, timezone=EXCLUDED.timezone, updated_at=EXCLUDED.updated_at`,
		p.UserID, p.FullName, p.Headline, p.Company, p.Timezone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
