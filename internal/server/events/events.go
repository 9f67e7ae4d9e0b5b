// Package events publishes vault item change events to Kafka. The external
// notification service consumes this topic; delivery itself is not the
// vault's concern, so publishing is always best-effort.
package events

import "time"

// Topic carries every vault item event, keyed by item id.
const Topic = "vault.items"

// Event types.
const (
	ItemCreated     = "ITEM_CREATED"
	ItemRenamed     = "ITEM_RENAMED"
	ItemMoved       = "ITEM_MOVED"
	ItemDeleted     = "ITEM_DELETED"
	ItemShared      = "ITEM_SHARED"
	ItemUnshared    = "ITEM_UNSHARED"
	UploadFinalized = "UPLOAD_FINALIZED"
)

// ItemEvent describes one mutation of a vault item.
type ItemEvent struct {
	EventType string    `json:"eventType"`
	ItemID    string    `json:"itemId"`
	ItemType  string    `json:"itemType"`
	OwnerID   string    `json:"ownerId"`
	ActorID   string    `json:"actorId"`
	Timestamp time.Time `json:"timestamp"`

	// Sharing events carry the grantee and the capability granted.
	TargetUserID string `json:"targetUserId,omitempty"`
	AccessLevel  string `json:"accessLevel,omitempty"`
}

// NewItemEvent builds an event stamped with the current time.
func NewItemEvent(eventType, itemID, itemType, ownerID, actorID string) *ItemEvent {
	return &ItemEvent{
		EventType: eventType,
		ItemID:    itemID,
		ItemType:  itemType,
		OwnerID:   ownerID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
}
