package boardstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/types"
	"golang.org/x/time/rate"
)

const (
	// DefaultMutationTimeout bounds one remote mutation call
	DefaultMutationTimeout = 10 * time.Second
	// DefaultRefreshInterval is the minimum spacing between full reloads
	DefaultRefreshInterval = 2 * time.Second
)

// ErrMutationTimeout reports that the remote did not answer in time. The
// store transaction may still have committed; a later refresh settles it.
var ErrMutationTimeout = errors.New("mutation timed out")

// Remote is the server operation surface the reconciler drives. The acting
// user and session are the remote's concern.
type Remote interface {
	CreateCard(ctx context.Context, draft models.Card, clientRef string) (*models.Card, error)
	UpdateCard(ctx context.Context, card models.Card) (*models.Card, error)
	DeleteCard(ctx context.Context, cardID types.CardID) error
	MoveCard(ctx context.Context, cardID types.CardID, columnID types.ColumnID, position int) (*models.Card, error)
}

// Loader fetches a board's full committed state
type Loader interface {
	LoadBoard(ctx context.Context, boardID types.BoardID) (*models.BoardDetail, error)
}

// MutationKind names a local mutation
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
	MutationMove   MutationKind = "move"
)

// MutationState is a pending mutation's place in its lifecycle
type MutationState int

const (
	Idle MutationState = iota
	Optimistic
	Committed
	RolledBack
)

func (s MutationState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Optimistic:
		return "optimistic"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mutation records one local mutation. CardID is the placeholder for a
// create until it commits, then the server's ID.
type Mutation struct {
	Kind   MutationKind
	CardID types.CardID
	State  MutationState
	Err    error
}

// Reconciler owns a client's snapshot of one board. Local mutations are
// applied optimistically one at a time and rolled back on any failure;
// remote events are deduplicated and folded in as they arrive.
type Reconciler struct {
	boardID types.BoardID
	remote  Remote
	loader  Loader
	dedup   *Deduplicator

	timeout  time.Duration
	limiter  *rate.Limiter
	onChange func(Snapshot)
	observe  func(Mutation)
	logger   *slog.Logger

	// mutating serializes local mutations and refreshes
	mutating sync.Mutex

	mu           sync.Mutex
	snap         Snapshot
	placeholders map[string]types.CardID
	nextTemp     types.CardID
	inFlight     bool
	foldedRemote bool

	refresh chan struct{}
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithTimeout sets the per-mutation remote timeout
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

// WithRefreshLimit sets the minimum interval between full refreshes
func WithRefreshLimit(every time.Duration) Option {
	return func(r *Reconciler) { r.limiter = rate.NewLimiter(rate.Every(every), 1) }
}

// WithOnChange registers a callback receiving a copy of the snapshot after
// every visible change. It runs on the goroutine that made the change.
func WithOnChange(fn func(Snapshot)) Option {
	return func(r *Reconciler) { r.onChange = fn }
}

// WithObserver registers a callback for every mutation state transition
func WithObserver(fn func(Mutation)) Option {
	return func(r *Reconciler) { r.observe = fn }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// NewReconciler creates a reconciler seeded with a committed board load
func NewReconciler(detail *models.BoardDetail, remote Remote, loader Loader, dedup *Deduplicator, opts ...Option) *Reconciler {
	r := &Reconciler{
		boardID:      detail.Board.ID,
		remote:       remote,
		loader:       loader,
		dedup:        dedup,
		timeout:      DefaultMutationTimeout,
		limiter:      rate.NewLimiter(rate.Every(DefaultRefreshInterval), 1),
		logger:       slog.Default(),
		snap:         FromDetail(detail),
		placeholders: make(map[string]types.CardID),
		refresh:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BoardID returns the board this reconciler tracks
func (r *Reconciler) BoardID() types.BoardID {
	return r.boardID
}

// Snapshot returns a copy of the current local state
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Clone()
}

// Move relocates a card locally, then asks the remote to commit the move
func (r *Reconciler) Move(ctx context.Context, cardID types.CardID, columnID types.ColumnID, index int) (Mutation, error) {
	m := Mutation{Kind: MutationMove, CardID: cardID}
	return r.execute(ctx, &m,
		func(s *Snapshot) error { return s.MoveCard(cardID, columnID, index) },
		func(ctx context.Context) error {
			_, err := r.remote.MoveCard(ctx, cardID, columnID, index)
			return err
		},
		nil,
	)
}

// Create appends a placeholder card locally and asks the remote to create
// it. On commit the placeholder takes the server's identity in place.
func (r *Reconciler) Create(ctx context.Context, draft models.Card) (Mutation, error) {
	ref := uuid.NewString()
	m := Mutation{Kind: MutationCreate}

	var committed *models.Card
	return r.execute(ctx, &m,
		func(s *Snapshot) error {
			r.nextTemp--
			m.CardID = r.nextTemp
			placeholder := draft.Clone()
			placeholder.ID = m.CardID
			if _, err := s.AddCard(placeholder); err != nil {
				return err
			}
			r.placeholders[ref] = m.CardID
			return nil
		},
		func(ctx context.Context) error {
			var err error
			committed, err = r.remote.CreateCard(ctx, draft, ref)
			return err
		},
		func(s *Snapshot, ok bool) {
			placeholder, pending := r.placeholders[ref]
			delete(r.placeholders, ref)
			if !ok {
				return
			}
			if pending {
				if err := s.AdoptCard(placeholder, *committed); err != nil {
					r.logger.Warn("failed to adopt created card", "card_id", committed.ID, "error", err)
				}
			}
			m.CardID = committed.ID
		},
	)
}

// Update replaces a card's fields locally and asks the remote to persist
// them. The card keeps its column and position.
func (r *Reconciler) Update(ctx context.Context, card models.Card) (Mutation, error) {
	m := Mutation{Kind: MutationUpdate, CardID: card.ID}
	return r.execute(ctx, &m,
		func(s *Snapshot) error { return s.ReplaceCard(card) },
		func(ctx context.Context) error {
			_, err := r.remote.UpdateCard(ctx, card)
			return err
		},
		nil,
	)
}

// Delete removes a card locally and asks the remote to delete it
func (r *Reconciler) Delete(ctx context.Context, cardID types.CardID) (Mutation, error) {
	m := Mutation{Kind: MutationDelete, CardID: cardID}
	return r.execute(ctx, &m,
		func(s *Snapshot) error {
			if !s.RemoveCard(cardID) {
				return fmt.Errorf("card %d: %w", cardID, models.ErrNotFound)
			}
			return nil
		},
		func(ctx context.Context) error { return r.remote.DeleteCard(ctx, cardID) },
		nil,
	)
}

// execute drives one mutation through Idle, Optimistic and then Committed
// or RolledBack. apply runs against the live snapshot under the state
// lock; call runs without it; settle (optional) runs under the state lock
// once the outcome is known.
func (r *Reconciler) execute(
	ctx context.Context,
	m *Mutation,
	apply func(*Snapshot) error,
	call func(context.Context) error,
	settle func(s *Snapshot, ok bool),
) (Mutation, error) {
	r.mutating.Lock()
	defer r.mutating.Unlock()

	r.mu.Lock()
	captured := r.snap.Clone()
	if err := apply(&r.snap); err != nil {
		r.snap = captured
		r.mu.Unlock()
		m.Err = err
		return *m, err
	}
	r.inFlight = true
	r.foldedRemote = false
	m.State = Optimistic
	optimistic := r.snap.Clone()
	r.mu.Unlock()

	r.emit(*m, &optimistic)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	err := call(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s: %w", ErrMutationTimeout, r.timeout, err)
	}
	cancel()

	r.mu.Lock()
	r.inFlight = false
	if settle != nil {
		settle(&r.snap, err == nil)
	}
	if err != nil {
		r.snap = captured
		m.State = RolledBack
		m.Err = err
		if r.foldedRemote || errors.Is(err, models.ErrNotFound) || errors.Is(err, ErrMutationTimeout) {
			r.scheduleRefresh()
		}
	} else {
		m.State = Committed
	}
	after := r.snap.Clone()
	r.mu.Unlock()

	r.emit(*m, &after)
	return *m, err
}

// HandleEvent deduplicates and folds one remote event. It is safe to use
// directly as an events.Handler.
func (r *Reconciler) HandleEvent(e events.Event) {
	if e.Head().BoardID != r.boardID {
		return
	}

	r.mu.Lock()
	verdict := r.dedup.Classify(e, func(ref string) bool {
		_, ok := r.placeholders[ref]
		return ok
	})

	var err error
	switch verdict {
	case Duplicate, Echo:
		r.mu.Unlock()
		return
	case Adopt:
		created := e.(*events.CardCreated)
		placeholder := r.placeholders[created.ClientRef]
		delete(r.placeholders, created.ClientRef)
		err = r.snap.AdoptCard(placeholder, created.Card)
	default:
		err = r.snap.Apply(e)
	}

	if err != nil {
		r.logger.Warn("failed to fold remote event",
			"board_id", r.boardID, "kind", e.Kind(), "verdict", verdict.String(), "error", err)
		if errors.Is(err, ErrStale) {
			r.scheduleRefresh()
		}
	}
	if r.inFlight {
		r.foldedRemote = true
	}
	after := r.snap.Clone()
	r.mu.Unlock()

	r.emit(Mutation{}, &after)
}

// Attach subscribes the reconciler to its board's remote events
func (r *Reconciler) Attach(ctx context.Context, sub events.Subscriber) (events.Subscription, error) {
	return sub.Subscribe(ctx, r.boardID, r.HandleEvent)
}

// Refresh replaces the local snapshot with a full committed load. It
// waits for any in-flight mutation and honours the refresh rate limit.
func (r *Reconciler) Refresh(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	r.mutating.Lock()
	defer r.mutating.Unlock()

	detail, err := r.loader.LoadBoard(ctx, r.boardID)
	if err != nil {
		return fmt.Errorf("failed to refresh board %d: %w", r.boardID, err)
	}

	r.mu.Lock()
	r.snap = FromDetail(detail)
	clear(r.placeholders)
	after := r.snap.Clone()
	r.mu.Unlock()

	r.emit(Mutation{}, &after)
	return nil
}

// RequestRefresh queues a refresh for Run. Requests coalesce.
func (r *Reconciler) RequestRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduleRefresh()
}

// Run performs queued refreshes until ctx is done
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.refresh:
			if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("board refresh failed", "board_id", r.boardID, "error", err)
			}
		}
	}
}

// scheduleRefresh must be called with r.mu held
func (r *Reconciler) scheduleRefresh() {
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

func (r *Reconciler) emit(m Mutation, snap *Snapshot) {
	if r.observe != nil && m.Kind != "" {
		r.observe(m)
	}
	if r.onChange != nil && snap != nil {
		r.onChange(*snap)
	}
}
