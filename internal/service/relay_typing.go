package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/noah-isme/runar/internal/events"
)

const (
	defaultTypingThrottle    = time.Second
	defaultTypingIdleTimeout = 3 * time.Second
)

// typingThrottle bounds typing re-broadcasts per conversation and owns the idle auto-stop timers.
type typingThrottle struct {
	mu       sync.Mutex
	every    time.Duration
	idle     time.Duration
	limiters map[string]*rate.Limiter
	timers   map[string]typingTimer
	gen      uint64
}

// typingTimer is one arming of a conversation's idle timer. A callback whose gen is no longer
// current lost a race with a newer keystroke.
type typingTimer struct {
	timer *time.Timer
	gen   uint64
}

func newTypingThrottle(every, idle time.Duration) *typingThrottle {
	if every <= 0 {
		every = defaultTypingThrottle
	}
	if idle <= 0 {
		idle = defaultTypingIdleTimeout
	}
	return &typingThrottle{
		every:    every,
		idle:     idle,
		limiters: make(map[string]*rate.Limiter),
		timers:   make(map[string]typingTimer),
	}
}

func (t *typingThrottle) allow(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	limiter, ok := t.limiters[conversationID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(t.every), 1)
		t.limiters[conversationID] = limiter
	}
	return limiter.Allow()
}

// arm (re)starts the idle timer for a conversation and returns its generation.
func (t *typingThrottle) arm(conversationID string, fire func(gen uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.timers[conversationID]; ok {
		current.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timers[conversationID] = typingTimer{
		timer: time.AfterFunc(t.idle, func() { fire(gen) }),
		gen:   gen,
	}
	return gen
}

// expire forgets the timer of gen and reports true only if it is still the latest arming.
func (t *typingThrottle) expire(conversationID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.timers[conversationID]
	if !ok || current.gen != gen {
		return false
	}
	delete(t.timers, conversationID)
	return true
}

func (t *typingThrottle) disarm(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.timers[conversationID]; ok {
		current.timer.Stop()
		delete(t.timers, conversationID)
	}
}

func (t *typingThrottle) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, current := range t.timers {
		current.timer.Stop()
		delete(t.timers, id)
	}
}

// Typing records a keystroke by the local user. The typing event is re-emitted only when the state
// flips or the throttle allows it, and typing stops automatically after the idle timeout.
func (r *Relay) Typing(ctx context.Context, conversationID string, isGroup bool) error {
	recipients, err := r.participants(conversationID, isGroup)
	if err != nil {
		return err
	}
	me := r.store.UserID()

	r.mu.Lock()
	changed := r.store.SetTyping(conversationID, me, true)
	r.typing.arm(conversationID, func(gen uint64) {
		r.expireTyping(conversationID, isGroup, gen)
	})
	r.mu.Unlock()

	allowed := r.typing.allow(conversationID)
	if (changed || allowed) && len(recipients) > 0 {
		r.emit(ctx, &events.Typing{ConversationID: conversationID, UserID: me, IsTyping: true, IsGroup: isGroup}, recipients)
	}

	if changed {
		r.views.RefreshTyping(conversationID, conversationType(isGroup))
	}
	return nil
}

// StopTyping clears the local user's typing state and announces it when it was set.
func (r *Relay) StopTyping(ctx context.Context, conversationID string, isGroup bool) {
	r.typing.disarm(conversationID)

	r.mu.Lock()
	changed := r.store.SetTyping(conversationID, r.store.UserID(), false)
	r.mu.Unlock()
	if changed {
		r.announceStopTyping(ctx, conversationID, isGroup)
	}
}

// expireTyping runs when an idle timer fires. A keystroke that re-armed the timer in the
// meantime wins, so a stale generation is a no-op.
func (r *Relay) expireTyping(conversationID string, isGroup bool, gen uint64) {
	r.mu.Lock()
	if !r.typing.expire(conversationID, gen) {
		r.mu.Unlock()
		return
	}
	changed := r.store.SetTyping(conversationID, r.store.UserID(), false)
	r.mu.Unlock()
	if changed {
		r.announceStopTyping(context.Background(), conversationID, isGroup)
	}
}

func (r *Relay) announceStopTyping(ctx context.Context, conversationID string, isGroup bool) {
	me := r.store.UserID()
	if recipients, err := r.participants(conversationID, isGroup); err == nil && len(recipients) > 0 {
		r.emit(ctx, &events.Typing{ConversationID: conversationID, UserID: me, IsTyping: false, IsGroup: isGroup}, recipients)
	}
	r.views.RefreshTyping(conversationID, conversationType(isGroup))
}
