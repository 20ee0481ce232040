package services

import (
	"context"
	"sync"
	"time"

	"github.com/jupiterclapton/cenackle/services/relation-service/internal/core/domain"
)

// Fakes en mémoire derrière les ports secondaires : mêmes contrats que les
// adapters Postgres/Redis/NATS, sans infrastructure.

type edgeKey struct {
	from, to string
	t        domain.RelationType
}

type fakeRelationRepo struct {
	mu    sync.Mutex
	edges map[edgeKey]*domain.Relationship

	failWith  error // toutes les lectures/écritures échouent avec cette erreur
	createErr error // force l'erreur du prochain Create (simulation de course)
}

func newFakeRelationRepo() *fakeRelationRepo {
	return &fakeRelationRepo{edges: make(map[edgeKey]*domain.Relationship)}
}

func (f *fakeRelationRepo) Get(ctx context.Context, fromID, toID string, t domain.RelationType) (*domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	rel, ok := f.edges[edgeKey{fromID, toID, t}]
	if !ok {
		return nil, domain.ErrRelationshipNotFound
	}
	return rel, nil
}

func (f *fakeRelationRepo) ExistsAny(ctx context.Context, fromID, toID string, types ...domain.RelationType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	for _, t := range types {
		if _, ok := f.edges[edgeKey{fromID, toID, t}]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRelationRepo) Create(ctx context.Context, rel *domain.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return err
	}
	key := edgeKey{rel.FromID, rel.ToID, rel.Type}
	if _, ok := f.edges[key]; ok {
		return domain.ErrRelationshipExists
	}
	f.edges[key] = rel
	return nil
}

func (f *fakeRelationRepo) Delete(ctx context.Context, fromID, toID string, t domain.RelationType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	key := edgeKey{fromID, toID, t}
	if _, ok := f.edges[key]; !ok {
		return domain.ErrRelationshipNotFound
	}
	delete(f.edges, key)
	return nil
}

func (f *fakeRelationRepo) CreateBlock(ctx context.Context, rel *domain.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	key := edgeKey{rel.FromID, rel.ToID, domain.RelationBlock}
	if _, ok := f.edges[key]; ok {
		return domain.ErrRelationshipExists
	}
	for _, t := range []domain.RelationType{domain.RelationFollow, domain.RelationRequest} {
		delete(f.edges, edgeKey{rel.FromID, rel.ToID, t})
		delete(f.edges, edgeKey{rel.ToID, rel.FromID, t})
	}
	f.edges[key] = rel
	return nil
}

func (f *fakeRelationRepo) Promote(ctx context.Context, fromID, toID string, from, to domain.RelationType) (*domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	oldKey := edgeKey{fromID, toID, from}
	rel, ok := f.edges[oldKey]
	if !ok {
		return nil, domain.ErrRelationshipNotFound
	}
	delete(f.edges, oldKey)
	promoted := *rel
	promoted.Type = to
	promoted.UpdatedAt = time.Now().UTC()
	f.edges[edgeKey{fromID, toID, to}] = &promoted
	return &promoted, nil
}

func (f *fakeRelationRepo) CountFrom(ctx context.Context, fromID string, t domain.RelationType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	var n int64
	for key := range f.edges {
		if key.from == fromID && key.t == t {
			n++
		}
	}
	return n, nil
}

func (f *fakeRelationRepo) CountTo(ctx context.Context, toID string, t domain.RelationType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	var n int64
	for key := range f.edges {
		if key.to == toID && key.t == t {
			n++
		}
	}
	return n, nil
}

func (f *fakeRelationRepo) CountMutuals(ctx context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	var n int64
	for key := range f.edges {
		if key.from != id || key.t != domain.RelationFollow {
			continue
		}
		if _, ok := f.edges[edgeKey{key.to, id, domain.RelationFollow}]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeRelationRepo) TypesBetween(ctx context.Context, fromID, toID string) (map[domain.RelationType]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make(map[domain.RelationType]bool)
	for key := range f.edges {
		if key.from == fromID && key.to == toID {
			out[key.t] = true
		}
	}
	return out, nil
}

// has est un helper d'assertion direct sur l'état du fake.
func (f *fakeRelationRepo) has(fromID, toID string, t domain.RelationType) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.edges[edgeKey{fromID, toID, t}]
	return ok
}

func (f *fakeRelationRepo) seed(rels ...*domain.Relationship) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rel := range rels {
		f.edges[edgeKey{rel.FromID, rel.ToID, rel.Type}] = rel
	}
}

// --- COMPTES ---

type fakeAccountDirectory struct {
	accounts map[string]*domain.Account
	failWith error
}

func newFakeAccountDirectory(accounts ...*domain.Account) *fakeAccountDirectory {
	dir := &fakeAccountDirectory{accounts: make(map[string]*domain.Account)}
	for _, acc := range accounts {
		dir.accounts[acc.ID] = acc
	}
	return dir
}

func (f *fakeAccountDirectory) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	acc, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return acc, nil
}

// --- CACHE ---

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

type fakeDecisionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	failGet error
	failSet error
}

func newFakeDecisionCache() *fakeDecisionCache {
	return &fakeDecisionCache{entries: make(map[string]cacheEntry)}
}

func (f *fakeDecisionCache) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return "", false, f.failGet
	}
	entry, ok := f.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (f *fakeDecisionCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return f.failSet
	}
	f.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (f *fakeDecisionCache) flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]cacheEntry)
}

// --- BROKER ---

type publishedEvent struct {
	action string
	rel    *domain.Relationship
}

type fakeBroker struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeBroker) PublishRelationChanged(ctx context.Context, action string, rel *domain.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{action: action, rel: rel})
	return nil
}

func (f *fakeBroker) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.action
	}
	return out
}
