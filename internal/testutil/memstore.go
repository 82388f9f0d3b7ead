// Package testutil holds in-memory stores used by service and handler tests.
// They follow the locking behaviour of the pgx repositories: every Update
// callback runs while the store is locked, as a row lock would.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/events"
	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/repositories"
	"github.com/google/uuid"
)

type Memory struct {
	mu         sync.Mutex
	clock      time.Time
	escrows    map[uuid.UUID]models.EscrowTransaction
	checklists map[uuid.UUID]models.MigrationChecklist
	tasks      map[uuid.UUID]models.MigrationChecklistTask
	listings   map[uuid.UUID]models.Listing
	lois       map[uuid.UUID]models.LOI
	users      map[uuid.UUID]models.User
	roles      map[uuid.UUID]map[string]bool
	audit      []models.AuditLog
}

func NewMemory() *Memory {
	return &Memory{
		clock:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		escrows:    make(map[uuid.UUID]models.EscrowTransaction),
		checklists: make(map[uuid.UUID]models.MigrationChecklist),
		tasks:      make(map[uuid.UUID]models.MigrationChecklistTask),
		listings:   make(map[uuid.UUID]models.Listing),
		lois:       make(map[uuid.UUID]models.LOI),
		users:      make(map[uuid.UUID]models.User),
		roles:      make(map[uuid.UUID]map[string]bool),
	}
}

// tick returns a strictly increasing timestamp so creation order is stable.
// Callers must hold mu.
func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
}

// Seeding helpers

func (m *Memory) AddUser(email string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	u := models.User{ID: uuid.New(), Email: email, CreatedAt: now, LastActiveAt: now}
	m.users[u.ID] = u
	return &u
}

func (m *Memory) AddListing(sellerID uuid.UUID, title string) *models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := models.Listing{ID: uuid.New(), SellerID: sellerID, Title: title, Status: "active", CreatedAt: m.tick()}
	m.listings[l.ID] = l
	return &l
}

func (m *Memory) AddLOI(listingID, buyerID, sellerID uuid.UUID, status string, offer int64) *models.LOI {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := models.LOI{
		ID: uuid.New(), ListingID: listingID, BuyerID: buyerID, SellerID: sellerID,
		Status: status, OfferAmount: offer, CreatedAt: m.tick(),
	}
	m.lois[l.ID] = l
	return &l
}

// Escrow returns the stored escrow as is, bypassing authorization.
func (m *Memory) Escrow(id uuid.UUID) models.EscrowTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrows[id]
}

func (m *Memory) AuditEntries() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AuditLog, len(m.audit))
	copy(out, m.audit)
	return out
}

func (m *Memory) Escrows() *EscrowStore       { return &EscrowStore{m} }
func (m *Memory) Checklists() *ChecklistStore { return &ChecklistStore{m} }
func (m *Memory) Listings() *ListingStore     { return &ListingStore{m} }
func (m *Memory) LOIs() *LOIStore             { return &LOIStore{m} }
func (m *Memory) Users() *UserStore           { return &UserStore{m} }
func (m *Memory) Audit() *AuditStore          { return &AuditStore{m} }

type EscrowStore struct{ m *Memory }

func (s *EscrowStore) Create(_ context.Context, e *models.EscrowTransaction) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if e.EscrowReferenceID != nil {
		for _, other := range s.m.escrows {
			if other.EscrowReferenceID != nil && *other.EscrowReferenceID == *e.EscrowReferenceID {
				return fmt.Errorf("escrow transaction already exists: %w", apperr.ErrConflict)
			}
		}
	}
	now := s.m.tick()
	e.ID = uuid.New()
	e.InitiatedAt, e.CreatedAt, e.UpdatedAt = now, now, now
	s.m.escrows[e.ID] = *e
	return nil
}

func (s *EscrowStore) GetByID(_ context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.escrows[id]
	if !ok {
		return nil, notFound("escrow transaction")
	}
	return &e, nil
}

func (s *EscrowStore) GetByReferenceID(_ context.Context, referenceID string) (*models.EscrowTransaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, e := range s.m.escrows {
		if e.EscrowReferenceID != nil && *e.EscrowReferenceID == referenceID {
			return &e, nil
		}
	}
	return nil, notFound("escrow transaction")
}

func (s *EscrowStore) List(_ context.Context, f repositories.EscrowFilter) ([]models.EscrowTransaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	items := make([]models.EscrowTransaction, 0)
	for _, e := range s.m.escrows {
		if f.PartyID != nil && e.BuyerID != *f.PartyID && e.SellerID != *f.PartyID {
			continue
		}
		if f.BuyerID != nil && e.BuyerID != *f.BuyerID {
			continue
		}
		if f.SellerID != nil && e.SellerID != *f.SellerID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if f.Offset >= len(items) {
		return []models.EscrowTransaction{}, nil
	}
	items = items[f.Offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *EscrowStore) Update(_ context.Context, id uuid.UUID, fn func(e *models.EscrowTransaction) error) (*models.EscrowTransaction, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.escrows[id]
	if !ok {
		return nil, notFound("escrow transaction")
	}
	if err := fn(&e); err != nil {
		return nil, err
	}
	e.UpdatedAt = s.m.tick()
	s.m.escrows[id] = e
	return &e, nil
}

type ChecklistStore struct{ m *Memory }

func (s *ChecklistStore) Create(_ context.Context, c *models.MigrationChecklist, tasks []models.MigrationChecklistTask) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, other := range s.m.checklists {
		if other.EscrowID == c.EscrowID {
			return fmt.Errorf("migration checklist already exists: %w", apperr.ErrConflict)
		}
	}
	now := s.m.tick()
	c.ID = uuid.New()
	c.CreatedAt, c.UpdatedAt = now, now
	s.m.checklists[c.ID] = *c
	for i := range tasks {
		tasks[i].ChecklistID = c.ID
		s.m.insertTask(&tasks[i])
	}
	return nil
}

func (m *Memory) insertTask(t *models.MigrationChecklistTask) {
	now := m.tick()
	t.ID = uuid.New()
	t.CreatedAt, t.UpdatedAt = now, now
	m.tasks[t.ID] = *t
}

func (s *ChecklistStore) GetByID(_ context.Context, id uuid.UUID) (*models.MigrationChecklist, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.checklists[id]
	if !ok {
		return nil, notFound("migration checklist")
	}
	return &c, nil
}

func (s *ChecklistStore) GetByEscrowID(_ context.Context, escrowID uuid.UUID) (*models.MigrationChecklist, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.checklists {
		if c.EscrowID == escrowID {
			return &c, nil
		}
	}
	return nil, notFound("migration checklist")
}

func (s *ChecklistStore) ListTasks(_ context.Context, checklistID uuid.UUID) ([]models.MigrationChecklistTask, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.tasksOf(checklistID), nil
}

func (m *Memory) tasksOf(checklistID uuid.UUID) []models.MigrationChecklistTask {
	tasks := make([]models.MigrationChecklistTask, 0)
	for _, t := range m.tasks {
		if t.ChecklistID == checklistID {
			tasks = append(tasks, t)
		}
	}
	models.SortTasks(tasks)
	return tasks
}

func (s *ChecklistStore) CreateTask(_ context.Context, t *models.MigrationChecklistTask) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.checklists[t.ChecklistID]
	if !ok {
		return notFound("migration checklist")
	}
	if c.Status == models.ChecklistStatusComplete {
		return fmt.Errorf("checklist is already complete: %w", apperr.ErrInvalidTransition)
	}
	s.m.insertTask(t)
	return nil
}

func (s *ChecklistStore) UpdateTask(
	_ context.Context,
	taskID uuid.UUID,
	fn func(t *models.MigrationChecklistTask, c *models.MigrationChecklist) error,
) (*models.MigrationChecklistTask, *models.MigrationChecklist, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tasks[taskID]
	if !ok {
		return nil, nil, notFound("migration task")
	}
	c, ok := s.m.checklists[t.ChecklistID]
	if !ok {
		return nil, nil, notFound("migration checklist")
	}
	if err := fn(&t, &c); err != nil {
		return nil, nil, err
	}
	t.UpdatedAt = s.m.tick()
	s.m.tasks[taskID] = t
	return &t, &c, nil
}

func (s *ChecklistStore) CompleteIfDone(_ context.Context, checklistID uuid.UUID) (*models.MigrationChecklist, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.checklists[checklistID]
	if !ok {
		return nil, notFound("migration checklist")
	}
	if c.Status != models.ChecklistStatusInProgress {
		return nil, nil
	}
	tasks := s.m.tasksOf(checklistID)
	if len(tasks) == 0 {
		return nil, nil
	}
	for _, t := range tasks {
		if t.Status != models.TaskStatusComplete {
			return nil, nil
		}
	}
	now := s.m.tick()
	c.Status = models.ChecklistStatusComplete
	c.CompletedAt = &now
	c.UpdatedAt = now
	s.m.checklists[checklistID] = c
	return &c, nil
}

type ListingStore struct{ m *Memory }

func (s *ListingStore) GetByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	l, ok := s.m.listings[id]
	if !ok {
		return nil, notFound("listing")
	}
	return &l, nil
}

type LOIStore struct{ m *Memory }

func (s *LOIStore) GetByID(_ context.Context, id uuid.UUID) (*models.LOI, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	l, ok := s.m.lois[id]
	if !ok {
		return nil, notFound("letter of intent")
	}
	return &l, nil
}

type UserStore struct{ m *Memory }

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (s *UserStore) UpdateLastActive(_ context.Context, id uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if u, ok := s.m.users[id]; ok {
		u.LastActiveAt = s.m.tick()
		s.m.users[id] = u
	}
	return nil
}

func (s *UserStore) HasRole(_ context.Context, userID uuid.UUID, role string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.roles[userID][role], nil
}

func (s *UserStore) GrantRole(_ context.Context, userID uuid.UUID, role string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.roles[userID] == nil {
		s.m.roles[userID] = make(map[string]bool)
	}
	s.m.roles[userID][role] = true
	return nil
}

type AuditStore struct{ m *Memory }

func (s *AuditStore) Log(_ context.Context, entry models.AuditLog) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = s.m.tick()
	s.m.audit = append(s.m.audit, entry)
	return nil
}

func (s *AuditStore) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]models.AuditLog, 0)
	for i := len(s.m.audit) - 1; i >= 0; i-- {
		l := s.m.audit[i]
		if l.EntityType == entityType && l.EntityID != nil && *l.EntityID == entityID {
			out = append(out, l)
		}
	}
	if offset >= len(out) {
		return []models.AuditLog{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *Publisher) Publish(_ context.Context, _ string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *Publisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Count returns how many events of type eventType were published.
func (p *Publisher) Count(eventType string) int {
	n := 0
	for _, e := range p.Events() {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
