package records

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps all records in process memory. It is the default
// backend in dev and the backend every test runs against.
type MemoryStore struct {
	mu           sync.RWMutex
	content      map[string]*ContentRecord
	companies    map[string]*Company
	competitors  map[string]*Competitor
	integrations map[string]*Integration // key: ownerID + "/" + platform
	profiles     map[string]*UserProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		content:      make(map[string]*ContentRecord),
		companies:    make(map[string]*Company),
		competitors:  make(map[string]*Competitor),
		integrations: make(map[string]*Integration),
		profiles:     make(map[string]*UserProfile),
	}
}

func (s *MemoryStore) Content() ContentRepository          { return (*memoryContent)(s) }
func (s *MemoryStore) Companies() CompanyRepository        { return (*memoryCompanies)(s) }
func (s *MemoryStore) Competitors() CompetitorRepository   { return (*memoryCompetitors)(s) }
func (s *MemoryStore) Integrations() IntegrationRepository { return (*memoryIntegrations)(s) }
func (s *MemoryStore) Profiles() ProfileRepository         { return (*memoryProfiles)(s) }

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

func copyContent(rec *ContentRecord) *ContentRecord {
	out := *rec
	out.Hooks = append([]string(nil), rec.Hooks...)
	if rec.ScheduledAt != nil {
		t := *rec.ScheduledAt
		out.ScheduledAt = &t
	}
	if rec.PublishedAt != nil {
		t := *rec.PublishedAt
		out.PublishedAt = &t
	}
	return &out
}

type memoryContent MemoryStore

func (s *memoryContent) Insert(ctx context.Context, rec *ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.content[rec.ID]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.content[rec.ID] = copyContent(rec)
	return nil
}

func (s *memoryContent) Update(ctx context.Context, rec *ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.content[rec.ID]
	if !ok || existing.OwnerID != rec.OwnerID {
		return ErrNotFound
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	s.content[rec.ID] = copyContent(rec)
	return nil
}

func (s *memoryContent) Get(ctx context.Context, ownerID, id string) (*ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.content[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return copyContent(rec), nil
}

func (s *memoryContent) List(ctx context.Context, ownerID string) ([]*ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ContentRecord
	for _, rec := range s.content {
		if rec.OwnerID == ownerID {
			out = append(out, copyContent(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memoryContent) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.content[id]
	if !ok || rec.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.content, id)
	return nil
}

type memoryCompanies MemoryStore

func (s *memoryCompanies) Insert(ctx context.Context, c *Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[c.ID]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	s.companies[c.ID] = &cp
	return nil
}

func (s *memoryCompanies) Update(ctx context.Context, c *Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.companies[c.ID]
	if !ok || existing.OwnerID != c.OwnerID {
		return ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	s.companies[c.ID] = &cp
	return nil
}

func (s *memoryCompanies) Get(ctx context.Context, ownerID, id string) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.companies[id]
	if !ok || c.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryCompanies) List(ctx context.Context, ownerID string) ([]*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Company
	for _, c := range s.companies {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryCompanies) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[id]
	if !ok || c.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.companies, id)
	return nil
}

type memoryCompetitors MemoryStore

func (s *memoryCompetitors) Insert(ctx context.Context, c *Competitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.competitors[c.ID]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	s.competitors[c.ID] = &cp
	return nil
}

func (s *memoryCompetitors) Update(ctx context.Context, c *Competitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.competitors[c.ID]
	if !ok || existing.OwnerID != c.OwnerID {
		return ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	s.competitors[c.ID] = &cp
	return nil
}

func (s *memoryCompetitors) Get(ctx context.Context, ownerID, id string) (*Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.competitors[id]
	if !ok || c.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryCompetitors) List(ctx context.Context, ownerID string) ([]*Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Competitor
	for _, c := range s.competitors {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryCompetitors) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.competitors[id]
	if !ok || c.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.competitors, id)
	return nil
}

type memoryIntegrations MemoryStore

func integrationKey(ownerID, platform string) string {
	return ownerID + "/" + platform
}

func (s *memoryIntegrations) Upsert(ctx context.Context, in *Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := integrationKey(in.OwnerID, in.Platform)
	now := time.Now().UTC()
	if existing, ok := s.integrations[key]; ok {
		in.ID = existing.ID
		in.CreatedAt = existing.CreatedAt
	} else {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	cp := *in
	s.integrations[key] = &cp
	return nil
}

func (s *memoryIntegrations) List(ctx context.Context, ownerID string) ([]*Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Integration
	for _, in := range s.integrations {
		if in.OwnerID == ownerID {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (s *memoryIntegrations) Delete(ctx context.Context, ownerID, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := integrationKey(ownerID, platform)
	if _, ok := s.integrations[key]; !ok {
		return ErrNotFound
	}
	delete(s.integrations, key)
	return nil
}

type memoryProfiles MemoryStore

func (s *memoryProfiles) Get(ctx context.Context, userID string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryProfiles) Upsert(ctx context.Context, p *UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.profiles[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}
