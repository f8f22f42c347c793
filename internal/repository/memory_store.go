package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"tradeledger/internal/domain"
)

// MemoryStore is an in-process ledger used for demo mode and tests.
// A single mutex serializes every unit of work; a failed unit of work is
// rolled back by restoring a snapshot.
type MemoryStore struct {
	mu         sync.Mutex
	portfolios map[uuid.UUID]*domain.Portfolio
	trades     map[uuid.UUID]*domain.Trade
	seq        map[uuid.UUID]int64
	next       int64
	usernames  map[uuid.UUID]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios: make(map[uuid.UUID]*domain.Portfolio),
		trades:     make(map[uuid.UUID]*domain.Trade),
		seq:        make(map[uuid.UUID]int64),
		usernames:  make(map[uuid.UUID]string),
	}
}

// Repositories returns repositories that lock the store per call
func (s *MemoryStore) Repositories() domain.Repositories {
	return domain.Repositories{
		Portfolios: &memoryPortfolios{s: s},
		Trades:     &memoryTrades{s: s},
	}
}

// WithinTx runs fn while holding the store lock
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	repos := domain.Repositories{
		Portfolios: &memoryPortfolios{s: s, held: true},
		Trades:     &memoryTrades{s: s, held: true},
	}
	if err := fn(ctx, repos); err != nil {
		s.restoreLocked(snap)
		return err
	}
	return nil
}

// SetUsername records the display name shown on leaderboards
func (s *MemoryStore) SetUsername(userID uuid.UUID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames[userID] = username
}

// GetLeaderboard ranks a league's portfolios by return percentage
func (s *MemoryStore) GetLeaderboard(ctx context.Context, leagueID uuid.UUID) ([]domain.LeaderboardEntry, error) {
	portfolios, err := s.Repositories().Portfolios.ListByLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	entries := domain.RankPortfolios(leagueID, portfolios)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range entries {
		entries[i].Username = s.usernames[entries[i].UserID]
	}
	return entries, nil
}

type memorySnapshot struct {
	portfolios map[uuid.UUID]domain.Portfolio
	trades     map[uuid.UUID]domain.Trade
	seq        map[uuid.UUID]int64
	next       int64
}

func (s *MemoryStore) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		portfolios: make(map[uuid.UUID]domain.Portfolio, len(s.portfolios)),
		trades:     make(map[uuid.UUID]domain.Trade, len(s.trades)),
		seq:        make(map[uuid.UUID]int64, len(s.seq)),
		next:       s.next,
	}
	for id, p := range s.portfolios {
		snap.portfolios[id] = *p
	}
	for id, t := range s.trades {
		snap.trades[id] = *t
	}
	for id, n := range s.seq {
		snap.seq[id] = n
	}
	return snap
}

func (s *MemoryStore) restoreLocked(snap memorySnapshot) {
	s.portfolios = make(map[uuid.UUID]*domain.Portfolio, len(snap.portfolios))
	for id, p := range snap.portfolios {
		s.portfolios[id] = &p
	}
	s.trades = make(map[uuid.UUID]*domain.Trade, len(snap.trades))
	for id, t := range snap.trades {
		s.trades[id] = &t
	}
	s.seq = snap.seq
	s.next = snap.next
}

func (s *MemoryStore) lock(held bool) func() {
	if held {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type memoryPortfolios struct {
	s    *MemoryStore
	held bool
}

func (r *memoryPortfolios) Create(_ context.Context, p *domain.Portfolio) error {
	defer r.s.lock(r.held)()
	if _, ok := r.s.portfolios[p.UserID]; ok {
		return domain.ErrPortfolioExists
	}
	cp := *p
	r.s.portfolios[p.UserID] = &cp
	return nil
}

func (r *memoryPortfolios) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Portfolio, error) {
	defer r.s.lock(r.held)()
	p, ok := r.s.portfolios[userID]
	if !ok {
		return nil, domain.ErrPortfolioNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPortfolios) GetForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Portfolio, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *memoryPortfolios) Update(_ context.Context, p *domain.Portfolio) error {
	defer r.s.lock(r.held)()
	stored, ok := r.s.portfolios[p.UserID]
	if !ok {
		return domain.ErrPortfolioNotFound
	}
	if stored.Version != p.Version {
		return domain.ErrConcurrentUpdate
	}
	cp := *p
	cp.Version++
	// competition fields are owned by UpdateCompetition
	cp.CompetitionRank = stored.CompetitionRank
	cp.CompetitionScore = stored.CompetitionScore
	r.s.portfolios[p.UserID] = &cp
	p.Version++
	return nil
}

func (r *memoryPortfolios) ListByLeague(_ context.Context, leagueID uuid.UUID) ([]*domain.Portfolio, error) {
	defer r.s.lock(r.held)()
	var out []*domain.Portfolio
	for _, p := range r.s.portfolios {
		if p.LeagueID != nil && *p.LeagueID == leagueID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryPortfolios) ListLeagueIDs(_ context.Context) ([]uuid.UUID, error) {
	defer r.s.lock(r.held)()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, p := range r.s.portfolios {
		if p.LeagueID != nil && !seen[*p.LeagueID] {
			seen[*p.LeagueID] = true
			ids = append(ids, *p.LeagueID)
		}
	}
	return ids, nil
}

func (r *memoryPortfolios) UpdateCompetition(_ context.Context, userID uuid.UUID, rank int, score string) error {
	defer r.s.lock(r.held)()
	p, ok := r.s.portfolios[userID]
	if !ok {
		return domain.ErrPortfolioNotFound
	}
	sc, err := parseDecimal("competition_score", score)
	if err != nil {
		return err
	}
	rk := rank
	p.CompetitionRank = &rk
	p.CompetitionScore = &sc
	return nil
}

type memoryTrades struct {
	s    *MemoryStore
	held bool
}

func (r *memoryTrades) Save(_ context.Context, t *domain.Trade) error {
	defer r.s.lock(r.held)()
	cp := *t
	r.s.trades[t.ID] = &cp
	r.s.next++
	r.s.seq[t.ID] = r.s.next
	return nil
}

func (r *memoryTrades) GetByID(_ context.Context, id uuid.UUID) (*domain.Trade, error) {
	defer r.s.lock(r.held)()
	t, ok := r.s.trades[id]
	if !ok {
		return nil, domain.ErrTradeNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memoryTrades) GetByUserID(_ context.Context, userID uuid.UUID, filter domain.TradeFilter) ([]*domain.Trade, error) {
	defer r.s.lock(r.held)()
	out := r.collect(func(t *domain.Trade) bool {
		return t.UserID == userID && filter.Matches(t)
	})
	// newest first
	sort.Slice(out, func(i, j int) bool { return r.s.seq[out[i].ID] > r.s.seq[out[j].ID] })
	return out, nil
}

func (r *memoryTrades) GetOpenByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Trade, error) {
	defer r.s.lock(r.held)()
	out := r.collect(func(t *domain.Trade) bool {
		return t.UserID == userID && t.IsOpen()
	})
	sort.Slice(out, func(i, j int) bool { return r.s.seq[out[i].ID] < r.s.seq[out[j].ID] })
	return out, nil
}

func (r *memoryTrades) GetUserIDsWithOpenTrades(_ context.Context) ([]uuid.UUID, error) {
	defer r.s.lock(r.held)()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, t := range r.s.trades {
		if t.IsOpen() && !seen[t.UserID] {
			seen[t.UserID] = true
			ids = append(ids, t.UserID)
		}
	}
	return ids, nil
}

func (r *memoryTrades) Update(_ context.Context, t *domain.Trade) error {
	defer r.s.lock(r.held)()
	if _, ok := r.s.trades[t.ID]; !ok {
		return domain.ErrTradeNotFound
	}
	cp := *t
	r.s.trades[t.ID] = &cp
	return nil
}

func (r *memoryTrades) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	defer r.s.lock(r.held)()
	for id, t := range r.s.trades {
		if t.UserID == userID {
			delete(r.s.trades, id)
			delete(r.s.seq, id)
		}
	}
	return nil
}

func (r *memoryTrades) collect(keep func(t *domain.Trade) bool) []*domain.Trade {
	var out []*domain.Trade
	for _, t := range r.s.trades {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}
