package model

import "time"

// PurchaseLog records the price paid for a pass at the moment of purchase.
// It is append-only and written in the same transaction as the UserPass.
type PurchaseLog struct {
	ID          uint64    // purchase_logs.id
	UserID      uint64    // purchase_logs.user_id
	PassID      uint64    // purchase_logs.pass_id
	UserPassID  uint64    // purchase_logs.user_pass_id
	Price       int64     // purchase_logs.price
	PurchasedAt time.Time // purchase_logs.purchased_at
}
