// Package notify keeps the ordered list of transient notifications shown to
// the shopper and dismisses them when their display time runs out.
package notify

import (
	"sync"
	"time"

	"github.com/drstein77/oilcheckout/internal/models"
	"go.uber.org/zap"
)

// DefaultDuration applies to messages enqueued with a zero Duration.
const DefaultDuration = 5 * time.Second

// Sticky disables auto-dismissal for a message.
const Sticky time.Duration = -1

type Log interface {
	Debug(string, ...zap.Field)
}

// Message is the caller-supplied part of a notification.
type Message struct {
	Title       string
	Description string
	Severity    models.Severity
	Duration    time.Duration
}

// Timer is the handle of a scheduled auto-dismissal.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func()) Timer

func realScheduler(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type entry struct {
	n     models.Notification
	timer Timer
}

// Queue is safe for concurrent use. Subscribers are called without the queue
// lock held, one delivery at a time, and never receive an older list after a
// newer one. A subscriber must not call back into the queue synchronously.
type Queue struct {
	mx      sync.Mutex
	nextID  uint64
	entries []*entry
	version uint64

	subMx     sync.Mutex
	subs      map[int]func([]models.Notification)
	nextSub   int
	delivered uint64

	defaultDuration time.Duration
	schedule        Scheduler
	now             func() time.Time
	log             Log
}

type Option func(*Queue)

// WithDefaultDuration overrides DefaultDuration.
func WithDefaultDuration(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.defaultDuration = d
		}
	}
}

// WithScheduler replaces time.AfterFunc, mainly for tests.
func WithScheduler(s Scheduler) Option {
	return func(q *Queue) { q.schedule = s }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithLog(log Log) Option {
	return func(q *Queue) { q.log = log }
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		subs:            make(map[int]func([]models.Notification)),
		defaultDuration: DefaultDuration,
		schedule:        realScheduler,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a notification and returns its id.
func (q *Queue) Enqueue(msg Message) uint64 {
	d := msg.Duration
	if d == 0 {
		d = q.defaultDuration
	}

	q.mx.Lock()
	q.nextID++
	id := q.nextID
	e := &entry{n: models.Notification{
		ID:          id,
		Title:       msg.Title,
		Description: msg.Description,
		Severity:    msg.Severity,
		CreatedAt:   q.now(),
	}}
	if d > 0 {
		e.n.DurationMs = d.Milliseconds()
		e.timer = q.schedule(d, func() { q.expire(id) })
	}
	q.entries = append(q.entries, e)
	list, version := q.changedLocked()
	q.mx.Unlock()

	if q.log != nil {
		q.log.Debug("notification enqueued", zap.Uint64("id", id), zap.String("severity", string(msg.Severity)))
	}
	q.publish(list, version)
	return id
}

// Dismiss removes the notification with id. Unknown ids are ignored.
func (q *Queue) Dismiss(id uint64) {
	q.remove(id, true)
}

func (q *Queue) expire(id uint64) {
	q.remove(id, false)
}

func (q *Queue) remove(id uint64, stopTimer bool) {
	q.mx.Lock()
	idx := -1
	for i, e := range q.entries {
		if e.n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mx.Unlock()
		return
	}
	e := q.entries[idx]
	if stopTimer && e.timer != nil {
		e.timer.Stop()
	}
	q.entries = append(q.entries[:idx:idx], q.entries[idx+1:]...)
	list, version := q.changedLocked()
	q.mx.Unlock()

	q.publish(list, version)
}

// DismissAll clears the queue and stops every pending timer.
func (q *Queue) DismissAll() {
	q.mx.Lock()
	if len(q.entries) == 0 {
		q.mx.Unlock()
		return
	}
	for _, e := range q.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	q.entries = nil
	list, version := q.changedLocked()
	q.mx.Unlock()

	q.publish(list, version)
}

// List returns the notifications in display order.
func (q *Queue) List() []models.Notification {
	q.mx.Lock()
	defer q.mx.Unlock()
	return q.snapshotLocked()
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return len(q.entries)
}

// Subscribe calls fn with the current list and again after every change
// until the returned cancel func is called.
func (q *Queue) Subscribe(fn func([]models.Notification)) (cancel func()) {
	q.subMx.Lock()
	q.nextSub++
	key := q.nextSub
	q.subs[key] = fn

	q.mx.Lock()
	list := q.snapshotLocked()
	q.mx.Unlock()
	fn(list)
	q.subMx.Unlock()

	return func() {
		q.subMx.Lock()
		delete(q.subs, key)
		q.subMx.Unlock()
	}
}

func (q *Queue) changedLocked() ([]models.Notification, uint64) {
	q.version++
	return q.snapshotLocked(), q.version
}

func (q *Queue) snapshotLocked() []models.Notification {
	list := make([]models.Notification, len(q.entries))
	for i, e := range q.entries {
		list[i] = e.n
	}
	return list
}

func (q *Queue) publish(list []models.Notification, version uint64) {
	q.subMx.Lock()
	defer q.subMx.Unlock()
	if version <= q.delivered {
		return
	}
	q.delivered = version
	for _, fn := range q.subs {
		fn(list)
	}
}
