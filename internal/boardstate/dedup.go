package boardstate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	cache "github.com/patrickmn/go-cache"
	"github.com/thenoetrevino/tablero/internal/events"
)

const (
	// DefaultDedupTTL bounds how long a processed event is remembered
	DefaultDedupTTL = 2 * time.Minute
	// DefaultDedupBucket is the timestamp granularity folded into keys
	DefaultDedupBucket = time.Second
)

// Verdict is the deduplicator's decision for one incoming event
type Verdict int

const (
	// Fold means the event is new and remote: apply it
	Fold Verdict = iota
	// Duplicate means the event was already processed
	Duplicate
	// Echo means this session originated the event and already applied it
	Echo
	// Adopt means this session originated a create and still holds the
	// placeholder; the server identity must replace it
	Adopt
)

func (v Verdict) String() string {
	switch v {
	case Fold:
		return "fold"
	case Duplicate:
		return "duplicate"
	case Echo:
		return "echo"
	case Adopt:
		return "adopt"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Deduplicator recognizes redundant deliveries and echoes of a session's
// own mutations. Each instance owns its key cache; nothing is shared
// between clients.
type Deduplicator struct {
	mu      sync.Mutex
	session string
	seen    *cache.Cache
	clock   clockwork.Clock
	ttl     time.Duration
	bucket  time.Duration
}

// DedupOption configures a Deduplicator
type DedupOption func(*Deduplicator)

// WithDedupClock sets the clock used to age keys
func WithDedupClock(clock clockwork.Clock) DedupOption {
	return func(d *Deduplicator) { d.clock = clock }
}

// WithDedupTTL sets the retention window for keys
func WithDedupTTL(ttl time.Duration) DedupOption {
	return func(d *Deduplicator) { d.ttl = ttl }
}

// WithDedupBucket sets the timestamp bucket width
func WithDedupBucket(bucket time.Duration) DedupOption {
	return func(d *Deduplicator) { d.bucket = bucket }
}

// NewDeduplicator creates a deduplicator for the client session that
// stamps its mutations with session
func NewDeduplicator(session string, opts ...DedupOption) *Deduplicator {
	d := &Deduplicator{
		session: session,
		clock:   clockwork.NewRealClock(),
		ttl:     DefaultDedupTTL,
		bucket:  DefaultDedupBucket,
	}
	for _, opt := range opts {
		opt(d)
	}
	// The cache only bounds memory; expiry decisions use d.clock so tests
	// can control them.
	d.seen = cache.New(d.ttl, 2*d.ttl)
	return d
}

// Classify decides what to do with e and remembers its key unless it was
// a duplicate. pending reports whether a client reference still names a
// local placeholder card.
func (d *Deduplicator) Classify(e events.Event, pending func(clientRef string) bool) Verdict {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := d.Key(e)
	now := d.clock.Now()
	if v, ok := d.seen.Get(key); ok {
		if seenAt, _ := v.(time.Time); now.Sub(seenAt) < d.ttl {
			return Duplicate
		}
	}
	d.seen.Set(key, now, cache.DefaultExpiration)

	if d.session == "" || e.Head().Actor.Session != d.session {
		return Fold
	}
	if created, ok := e.(*events.CardCreated); ok && created.ClientRef != "" && pending != nil && pending(created.ClientRef) {
		return Adopt
	}
	return Echo
}

// Key derives the dedup key of e: kind, entity, acting user, the fields
// that locate the entity, and the timestamp bucket
func (d *Deduplicator) Key(e events.Event) string {
	h := e.Head()
	bucket := h.Timestamp.UnixNano()
	if d.bucket > 0 {
		bucket /= int64(d.bucket)
	}

	var entity, where string
	switch ev := e.(type) {
	case *events.CardMoved:
		entity = ev.Card.ID.String()
		where = fmt.Sprintf("%d>%d@%d@%d", ev.SourceColumnID, ev.DestinationColumnID, ev.DestinationIndex,
			ev.Card.UpdatedAt.UnixNano())
	case *events.CardCreated:
		entity = ev.Card.ID.String()
		where = ev.Card.ColumnID.String()
	case *events.CardUpdated:
		entity = ev.Card.ID.String()
		where = fmt.Sprintf("%s@%d", ev.Card.ColumnID, ev.Card.UpdatedAt.UnixNano())
	case *events.CardDeleted:
		entity = ev.Card.ID.String()
		where = ev.Card.ColumnID.String()
	case *events.ColumnsChanged:
		entity = h.BoardID.String()
		parts := make([]string, len(ev.Columns))
		for i, c := range ev.Columns {
			parts[i] = fmt.Sprintf("%d:%d:%d:%s", c.ID, c.Position, c.WipLimit, c.Title)
		}
		// a reorder that is later undone repeats the digest; the commit
		// time tells the two apart
		where = fmt.Sprintf("%s@%d", strings.Join(parts, ","), h.Timestamp.UnixNano())
	}

	return fmt.Sprintf("%s|%s|%s|%s|%d", e.Kind(), entity, h.Actor.User, where, bucket)
}

// Len returns the number of remembered keys, expired or not
func (d *Deduplicator) Len() int {
	return d.seen.ItemCount()
}
