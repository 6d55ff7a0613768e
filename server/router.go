// File: server/router.go
package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/headsoccer/server/utils"
)

// FieldKind is the expected JSON type for a validated field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindBool
	KindObject
)

// FieldRule validates one (possibly nested) payload field. Paths are dotted,
// e.g. "position.x".
type FieldRule struct {
	Path     string
	Required bool
	Kind     FieldKind
	MaxLen   int      // strings only, 0 = unlimited
	Enum     []string // strings only
	Min, Max *float64 // numbers only
}

// EventRule is the declarative schema for one ingress event.
type EventRule struct {
	RequiresAuth bool
	Fields       []FieldRule
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Router checks ingress payloads against per-event rules, sanitizes strings
// and stamps server timestamps. Handlers only ever see payloads that passed.
type Router struct {
	rules map[string]EventRule
}

func NewRouter(cfg utils.Config) *Router {
	return &Router{rules: defaultRules(cfg)}
}

// KnownEvent reports whether the router has a rule for the event.
func (r *Router) KnownEvent(event string) bool {
	_, ok := r.rules[event]
	return ok
}

// RequiresAuth reports whether the event needs an authenticated connection.
func (r *Router) RequiresAuth(event string) bool {
	return r.rules[event].RequiresAuth
}

// Validate decodes and checks one payload. On success it returns the
// sanitized payload with a timestamp stamped; on failure it returns the
// field-level reasons and the handler must not run.
func (r *Router) Validate(event string, data json.RawMessage) (map[string]interface{}, []FieldError) {
	rule, ok := r.rules[event]
	if !ok {
		return nil, []FieldError{{Field: "event", Reason: fmt.Sprintf("unknown event %q", event)}}
	}

	payload := map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, []FieldError{{Field: "data", Reason: "payload is not a JSON object"}}
		}
	}

	var errs []FieldError
	for _, f := range rule.Fields {
		value, present := lookupPath(payload, f.Path)
		if !present {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Path, Reason: "required field missing"})
			}
			continue
		}
		if reason := checkField(f, value); reason != "" {
			errs = append(errs, FieldError{Field: f.Path, Reason: reason})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	sanitizeStrings(payload)
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = float64(time.Now().UnixMilli())
	}
	return payload, nil
}

func checkField(f FieldRule, value interface{}) string {
	switch f.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return "expected a string"
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return fmt.Sprintf("exceeds %d characters", f.MaxLen)
		}
		if len(f.Enum) > 0 {
			for _, allowed := range f.Enum {
				if s == allowed {
					return ""
				}
			}
			return fmt.Sprintf("must be one of %s", strings.Join(f.Enum, ", "))
		}
	case KindNumber:
		n, ok := value.(float64)
		if !ok {
			return "expected a number"
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf("below minimum %v", *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("above maximum %v", *f.Max)
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			return "expected a boolean"
		}
	case KindObject:
		if _, ok := value.(map[string]interface{}); !ok {
			return "expected an object"
		}
	}
	return ""
}

func lookupPath(payload map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = payload
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// sanitizeStrings walks the payload and rewrites every string in place:
// trim, strip the HTML-significant characters, cap at 1000.
func sanitizeStrings(payload map[string]interface{}) {
	for key, value := range payload {
		switch v := value.(type) {
		case string:
			payload[key] = SanitizeString(v)
		case map[string]interface{}:
			sanitizeStrings(v)
		case []interface{}:
			for i, item := range v {
				if s, ok := item.(string); ok {
					v[i] = SanitizeString(s)
				} else if obj, ok := item.(map[string]interface{}); ok {
					sanitizeStrings(obj)
				}
			}
		}
	}
}

var sanitizeReplacer = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")

// SanitizeString applies the ingress string policy.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	s = sanitizeReplacer.Replace(s)
	if len(s) > 1000 {
		s = s[:1000]
	}
	return s
}

func numRange(min, max float64) (*float64, *float64) {
	return &min, &max
}

func defaultRules(cfg utils.Config) map[string]EventRule {
	margin := float64(cfg.BoundsMargin)
	posXMin, posXMax := numRange(-margin, float64(cfg.FieldWidth)+margin)
	posYMin, posYMax := numRange(-margin, float64(cfg.FieldHeight)+margin)
	velMin, velMax := numRange(-4000, 4000)
	powerMin, powerMax := numRange(0, 100)

	movementFields := []FieldRule{
		{Path: "keys", Kind: KindObject},
		{Path: "keys.left", Kind: KindBool},
		{Path: "keys.right", Kind: KindBool},
		{Path: "keys.up", Kind: KindBool},
		{Path: "keys.kick", Kind: KindBool},
		{Path: "position", Kind: KindObject},
		{Path: "position.x", Kind: KindNumber, Min: posXMin, Max: posXMax},
		{Path: "position.y", Kind: KindNumber, Min: posYMin, Max: posYMax},
		{Path: "velocity", Kind: KindObject},
		{Path: "velocity.x", Kind: KindNumber, Min: velMin, Max: velMax},
		{Path: "velocity.y", Kind: KindNumber, Min: velMin, Max: velMax},
		{Path: "timestamp", Kind: KindNumber},
		{Path: "sequenceId", Kind: KindNumber},
	}

	return map[string]EventRule{
		EvAuthenticate: {Fields: []FieldRule{
			{Path: "playerId", Required: true, Kind: KindString, MaxLen: 50},
			{Path: "username", Required: true, Kind: KindString, MaxLen: 20},
			{Path: "token", Kind: KindString, MaxLen: 200},
			{Path: "characterId", Kind: KindString, MaxLen: 50},
		}},
		EvJoinMatchmaking: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "gameMode", Required: true, Kind: KindString, Enum: []string{"casual", "ranked", "tournament"}},
			{Path: "region", Kind: KindString, MaxLen: 50},
			{Path: "preferences", Kind: KindObject},
		}},
		EvLeaveMatchmaking: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "reason", Kind: KindString, MaxLen: 100},
		}},
		EvReadyUp: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "ready", Kind: KindBool},
		}},
		EvJoinRoom: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "roomId", Kind: KindString, MaxLen: 64},
			{Path: "matchId", Kind: KindString, MaxLen: 64},
		}},
		EvPlayerInput:    {RequiresAuth: true, Fields: movementFields},
		EvPlayerMovement: {RequiresAuth: true, Fields: movementFields},
		EvBallUpdate: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "position", Required: true, Kind: KindObject},
			{Path: "position.x", Required: true, Kind: KindNumber, Min: posXMin, Max: posXMax},
			{Path: "position.y", Required: true, Kind: KindNumber, Min: posYMin, Max: posYMax},
			{Path: "velocity", Required: true, Kind: KindObject},
			{Path: "velocity.x", Required: true, Kind: KindNumber, Min: velMin, Max: velMax},
			{Path: "velocity.y", Required: true, Kind: KindNumber, Min: velMin, Max: velMax},
			{Path: "spin", Kind: KindNumber},
			{Path: "timestamp", Kind: KindNumber},
		}},
		EvGoalAttempt: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "position", Required: true, Kind: KindObject},
			{Path: "position.x", Required: true, Kind: KindNumber, Min: posXMin, Max: posXMax},
			{Path: "position.y", Required: true, Kind: KindNumber, Min: posYMin, Max: posYMax},
			{Path: "power", Kind: KindNumber, Min: powerMin, Max: powerMax},
			{Path: "direction", Kind: KindNumber},
			{Path: "timestamp", Kind: KindNumber},
		}},
		EvChatMessage: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "message", Required: true, Kind: KindString, MaxLen: 200},
			{Path: "type", Kind: KindString, Enum: []string{"all", "team", "private"}},
			{Path: "target", Kind: KindString, MaxLen: 50},
		}},
		EvPauseRequest: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "reason", Kind: KindString, MaxLen: 100},
		}},
		EvResumeRequest: {RequiresAuth: true},
		EvForfeitGame: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "reason", Kind: KindString, MaxLen: 100},
		}},
		EvRequestGameEnd: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "reason", Required: true, Kind: KindString, Enum: []string{"time_up", "mutual_agreement", "admin_request"}},
			{Path: "confirmed", Kind: KindBool},
			{Path: "adminCode", Kind: KindString, MaxLen: 100},
		}},
		EvLeaveRoom: {RequiresAuth: true, Fields: []FieldRule{
			{Path: "roomId", Kind: KindString, MaxLen: 64},
			{Path: "matchId", Kind: KindString, MaxLen: 64},
		}},
		EvPingLatency: {Fields: []FieldRule{
			{Path: "clientTime", Required: true, Kind: KindNumber},
		}},
		EvHeartbeatResponse: {},
	}
}
