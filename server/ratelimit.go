// File: server/ratelimit.go
package server

import (
	"golang.org/x/time/rate"

	"github.com/headsoccer/server/utils"
)

// EventClass buckets wire events for rate limiting.
type EventClass string

const (
	ClassGeneral     EventClass = "general"
	ClassChat        EventClass = "chat"
	ClassMovement    EventClass = "movement"
	ClassMatchmaking EventClass = "matchmaking"
)

// ClassOf maps an event name to its rate-limit class.
func ClassOf(event string) EventClass {
	switch event {
	case EvPlayerInput, EvPlayerMovement, EvBallUpdate:
		return ClassMovement
	case EvChatMessage:
		return ClassChat
	case EvJoinMatchmaking, EvLeaveMatchmaking:
		return ClassMatchmaking
	default:
		return ClassGeneral
	}
}

// EventLimiter holds one token bucket per event class for a single
// connection. Violations are dropped, counted, and answered with
// rate_limit_exceeded; nothing auto-bans.
type EventLimiter struct {
	limiters   map[EventClass]*rate.Limiter
	violations map[EventClass]int
}

// NewEventLimiter builds per-class buckets from the configured per-minute
// budgets. Burst equals the full minute budget, so a client may spend its
// allowance in one burst but not refill faster than the sustained rate.
func NewEventLimiter(cfg utils.Config) *EventLimiter {
	perMin := func(n int) *rate.Limiter {
		if n <= 0 {
			n = 1
		}
		return rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}
	return &EventLimiter{
		limiters: map[EventClass]*rate.Limiter{
			ClassGeneral:     perMin(cfg.RateGeneralPerMin),
			ClassChat:        perMin(cfg.RateChatPerMin),
			ClassMovement:    perMin(cfg.RateMovementPerMin),
			ClassMatchmaking: perMin(cfg.RateMatchmakingPerMin),
		},
		violations: make(map[EventClass]int),
	}
}

// Allow consumes one token for the event's class. A false return means the
// message must be dropped.
func (l *EventLimiter) Allow(event string) bool {
	class := ClassOf(event)
	limiter, ok := l.limiters[class]
	if !ok {
		return true
	}
	if !limiter.Allow() {
		l.violations[class]++
		return false
	}
	return true
}

// Violations reports how many messages of a class have been dropped.
func (l *EventLimiter) Violations(class EventClass) int {
	return l.violations[class]
}
