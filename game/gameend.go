// File: game/gameend.go
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/headsoccer/server/store"
)

const (
	resultKeyPrefix  = "match:result:"
	sessionKeyPrefix = "session:"
	resultTTL        = 24 * time.Hour
)

// ResultRecorder persists terminal match outcomes and clears the players'
// session keys. Persistence failures are logged and swallowed; the game-end
// pipeline never blocks a room on storage.
type ResultRecorder struct {
	store store.Store
}

func NewResultRecorder(st store.Store) *ResultRecorder {
	return &ResultRecorder{store: st}
}

// Record writes the result under match:result:<roomID> with a 24h TTL and
// deletes both players' session keys.
func (r *ResultRecorder) Record(result MatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(result)
	if err != nil {
		fmt.Printf("ResultRecorder: Failed to marshal result for room %s: %v\n", result.RoomID, err)
		return
	}
	if err := r.store.SetEx(ctx, resultKeyPrefix+result.RoomID, string(data), resultTTL); err != nil {
		fmt.Printf("ResultRecorder: Failed to persist result for room %s: %v\n", result.RoomID, err)
	}
	for _, playerID := range result.Players {
		if playerID == "" {
			continue
		}
		if err := r.store.Del(ctx, sessionKeyPrefix+playerID); err != nil {
			fmt.Printf("ResultRecorder: Failed to clear session for %s: %v\n", playerID, err)
		}
	}
}

// Load fetches a persisted result, or store.ErrNotFound.
func (r *ResultRecorder) Load(ctx context.Context, roomID string) (MatchResult, error) {
	var result MatchResult
	raw, err := r.store.Get(ctx, resultKeyPrefix+roomID)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("decode result for room %s: %w", roomID, err)
	}
	return result, nil
}
