package security

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	EventLoginAttempt       EventType = "login_attempt"
	EventLoginFailure       EventType = "login_failure"
	EventRegistration       EventType = "registration"
	EventRateLimit          EventType = "rate_limit"
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventAccountLocked      EventType = "account_locked"
	EventLogout             EventType = "logout"
	EventAccountMigrated    EventType = "account_migrated"
	EventAccountDeleted     EventType = "account_deleted"
)

// Failure reasons recorded with login failures.
const (
	ReasonUserNotFound     = "user_not_found"
	ReasonInvalidPassword  = "invalid_password"
	ReasonEmailNotVerified = "email_not_verified"
	ReasonAuthError        = "auth_error"
	ReasonDatabaseError    = "database_error"
)

const DefaultAuditCapacity = 1000

type Event struct {
	Type       EventType `json:"type"`
	Identifier string    `json:"identifier"`
	Reason     string    `json:"reason,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Time       time.Time `json:"timestamp"`
}

// AuditLog keeps the most recent security events in a fixed-size ring and
// mirrors each one to the logger.
type AuditLog struct {
	events   []Event
	next     int
	full     bool
	counters map[EventType]int
	mu       sync.RWMutex
	log      *zap.Logger
	now      func() time.Time
}

func NewAuditLog(capacity int, log *zap.Logger) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{
		events:   make([]Event, capacity),
		counters: make(map[EventType]int),
		log:      log.Named("audit"),
		now:      time.Now,
	}
}

func (a *AuditLog) Record(typ EventType, identifier, reason, detail string) {
	e := Event{
		Type:       typ,
		Identifier: identifier,
		Reason:     reason,
		Detail:     detail,
		Time:       a.now(),
	}

	a.mu.Lock()
	a.events[a.next] = e
	a.next = (a.next + 1) % len(a.events)
	if a.next == 0 {
		a.full = true
	}
	a.counters[typ]++
	a.mu.Unlock()

	fields := []zap.Field{
		zap.String("type", string(typ)),
		zap.String("identifier", identifier),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	a.log.Warn("security event", fields...)
}

// Events returns matching events newest first. Empty filters match all.
func (a *AuditLog) Events(identifier string, typ EventType) []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []Event
	a.eachNewestFirst(func(e Event) {
		if identifier != "" && e.Identifier != identifier {
			return
		}
		if typ != "" && e.Type != typ {
			return
		}
		out = append(out, e)
	})
	return out
}

// RecentFailures counts login failures for identifier inside window.
func (a *AuditLog) RecentFailures(identifier string, window time.Duration) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cutoff := a.now().Add(-window)
	n := 0
	a.eachNewestFirst(func(e Event) {
		if e.Identifier == identifier && e.Type == EventLoginFailure && e.Time.After(cutoff) {
			n++
		}
	})
	return n
}

// Counts returns how many events of each type were recorded since start,
// including ones already rotated out of the ring.
func (a *AuditLog) Counts() map[EventType]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[EventType]int, len(a.counters))
	for k, v := range a.counters {
		out[k] = v
	}
	return out
}

func (a *AuditLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.full {
		return len(a.events)
	}
	return a.next
}

func (a *AuditLog) eachNewestFirst(fn func(Event)) {
	size := a.next
	if a.full {
		size = len(a.events)
	}
	for i := 1; i <= size; i++ {
		idx := (a.next - i + len(a.events)) % len(a.events)
		fn(a.events[idx])
	}
}
