package models

import "time"

// TransferState is the lifecycle state of an ownership transfer. Accepted
// and Declined are terminal and retained for history; a retracted transfer
// is deleted outright.
type TransferState string

const (
	TransferPending  TransferState = "pending"
	TransferAccepted TransferState = "accepted"
	TransferDeclined TransferState = "declined"
)

// Transfer is a pending or closed ownership hand-over of a single bike.
// At most one pending transfer exists per bike at a time.
type Transfer struct {
	ID         string
	SenderID   string
	ReceiverID string
	BikeID     string
	State      TransferState
	CreatedAt  time.Time
	ClosedAt   *time.Time
}
