package models

import "time"

// DeliveryPacket is one queued change addressed to a set of roles. The
// payload is the serialized wire envelope of the originating change; the
// server never interprets it. A packet is reclaimable once every receiver
// bit is also set in the delivered mask, or once it expires.
type DeliveryPacket struct {
	ID            string
	Kind          string
	SubjectID     string
	Payload       []byte
	BlobURL       string
	ReceiversMask uint8
	DeliveredMask uint8
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Delivered reports whether every addressed role has acknowledged.
func (p *DeliveryPacket) Delivered() bool {
	return p.ReceiversMask&^p.DeliveredMask == 0
}
