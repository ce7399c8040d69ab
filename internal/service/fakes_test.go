package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/iliyamo/customer-portal/internal/model"
	"github.com/iliyamo/customer-portal/internal/queue"
	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/utils"
)

// memStore behaves like a table with a unique index on discord_id: an
// insert of a key reserved by an open transaction waits for it to finish,
// then fails as a duplicate if the other transaction committed.
type memStore struct {
	mu      sync.Mutex
	nextID  uint64
	rows    map[string]*model.Identity
	pending map[string]chan struct{}
	notes   []model.Notification

	// arrivals, when set, holds the first lookups until all racers arrive.
	arrivals *sync.WaitGroup
	gated    atomic.Int32

	onCreate         func(s *memStore)
	failGet          error
	failNotification error
	alwaysDuplicate  bool
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*model.Identity{}, pending: map[string]chan struct{}{}}
}

type memTx struct {
	s       *memStore
	created []*model.Identity
	updates map[uint64]model.ExternalProfile
	notes   []model.Notification
	held    []string
}

func (s *memStore) WithinTx(ctx context.Context, fn func(IdentityTx) error) error {
	tx := &memTx{s: s, updates: map[uint64]model.ExternalProfile{}}
	err := fn(tx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		for _, u := range tx.created {
			s.rows[u.DiscordID] = u
		}
		for id, p := range tx.updates {
			for _, u := range s.rows {
				if u.ID == id {
					u.Username, u.Discriminator, u.Email, u.Avatar = p.Username, p.Discriminator, p.Email, p.Avatar
				}
			}
		}
		s.notes = append(s.notes, tx.notes...)
	}
	for _, key := range tx.held {
		close(s.pending[key])
		delete(s.pending, key)
	}
	return err
}

// commit inserts a row directly, as if another transaction committed it.
func (s *memStore) commit(p model.ExternalProfile) uint64 {
	s.nextID++
	s.rows[p.ID] = &model.Identity{ID: s.nextID, DiscordID: p.ID, Username: p.Username}
	return s.nextID
}

func (s *memStore) identityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStore) notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.notes...)
}

func (t *memTx) GetByDiscordID(ctx context.Context, discordID string) (*model.Identity, error) {
	s := t.s
	if s.failGet != nil {
		return nil, s.failGet
	}
	if s.arrivals != nil && s.gated.Add(1) <= 2 {
		s.arrivals.Done()
		s.arrivals.Wait()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[discordID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t *memTx) Create(ctx context.Context, p model.ExternalProfile) (uint64, error) {
	s := t.s
	dup := fmt.Errorf("%w: Duplicate entry '%s'", repository.ErrDuplicate, p.ID)
	if s.alwaysDuplicate {
		return 0, dup
	}
	for {
		s.mu.Lock()
		if s.onCreate != nil {
			hook := s.onCreate
			s.onCreate = nil
			hook(s)
		}
		if _, ok := s.rows[p.ID]; ok {
			s.mu.Unlock()
			return 0, dup
		}
		if ch, ok := s.pending[p.ID]; ok {
			s.mu.Unlock()
			<-ch
			continue
		}
		s.pending[p.ID] = make(chan struct{})
		s.nextID++
		id := s.nextID
		s.mu.Unlock()

		t.held = append(t.held, p.ID)
		t.created = append(t.created, &model.Identity{
			ID: id, DiscordID: p.ID, Username: p.Username, Discriminator: p.Discriminator, Email: p.Email, Avatar: p.Avatar,
		})
		return id, nil
	}
}

func (t *memTx) UpdateProfile(ctx context.Context, id uint64, p model.ExternalProfile) error {
	t.updates[id] = p
	return nil
}

func (t *memTx) CreateNotification(ctx context.Context, n *model.Notification) error {
	if t.s.failNotification != nil {
		return t.s.failNotification
	}
	t.notes = append(t.notes, *n)
	return nil
}

type fakeSigner struct {
	err error
}

func (f fakeSigner) Sign(userID uint64, discordID, username string) (utils.SessionToken, error) {
	if f.err != nil {
		return utils.SessionToken{}, f.err
	}
	return utils.SessionToken{Token: fmt.Sprintf("session-%d-%s", userID, discordID)}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ActivityEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.ActivityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type fakeProvider struct {
	exchangeErr error
	profileErr  error
	profile     model.ExternalProfile
	joined      bool
	joinCalls   int
}

func (f *fakeProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return "access-" + code, nil
}

func (f *fakeProvider) FetchProfile(ctx context.Context, accessToken string) (model.ExternalProfile, error) {
	if f.profileErr != nil {
		return model.ExternalProfile{}, f.profileErr
	}
	if accessToken == "" {
		return model.ExternalProfile{}, errors.New("no token")
	}
	return f.profile, nil
}

func (f *fakeProvider) JoinGuild(ctx context.Context, discordID, accessToken string) bool {
	f.joinCalls++
	return f.joined
}
