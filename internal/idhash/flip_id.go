package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"exchange-flip-assistant/internal/domain"
)

// ComputeFlipID computes a deterministic flip_id using SHA256.
// Formula: SHA256(item_id|origin|created_at|sequence)
// Returns hex-encoded hash (64 characters). Deterministic IDs make replayed
// ledgers byte-comparable against live ones.
func ComputeFlipID(
	itemID int,
	origin domain.FlipOrigin,
	createdAt int64,
	sequence uint64,
) string {
	data := fmt.Sprintf("%d|%s|%d|%d",
		itemID,
		string(origin),
		createdAt,
		sequence,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
