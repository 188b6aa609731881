package common

// EntityKind classifies a replicated record.
//
// Durable kinds are persisted server-side and served as authoritative deltas.
// Ephemeral kinds are never stored as queryable rows on the server: they only
// exist transiently as delivery-packet payloads until the peer acknowledges
// them. This is a deliberate privacy/cost trade-off and must not be bypassed.
type EntityKind string

const (
	// Ephemeral kinds (relay only).
	KindPhotoReport    EntityKind = "photo_report"
	KindPhotoReportSet EntityKind = "photo_report_set"
	KindRestriction    EntityKind = "restriction"

	// Durable kinds (stored and served as deltas).
	KindChatMessage   EntityKind = "chat_message"
	KindPhotoComment  EntityKind = "photo_comment"
	KindCalendarTask  EntityKind = "calendar_task"
	KindProgressEntry EntityKind = "progress_entry"
)

var durableKinds = map[EntityKind]bool{
	KindChatMessage:   true,
	KindPhotoComment:  true,
	KindCalendarTask:  true,
	KindProgressEntry: true,
}

var allKinds = map[EntityKind]bool{
	KindPhotoReport:    true,
	KindPhotoReportSet: true,
	KindRestriction:    true,
	KindChatMessage:    true,
	KindPhotoComment:   true,
	KindCalendarTask:   true,
	KindProgressEntry:  true,
}

var naturalKeyKinds = map[EntityKind]bool{
	KindPhotoReport:    true,
	KindPhotoReportSet: true,
	KindRestriction:    true,
	KindProgressEntry:  true,
}

// Durable reports whether the server stores this kind as queryable rows.
func (k EntityKind) Durable() bool {
	return durableKinds[k]
}

// ReconcilesByNaturalKey reports whether two records of this kind with the
// same subject and close creation times are the same logical record. Only
// the day-grained kinds qualify: a subject legitimately holds many chat
// messages, comments or tasks within a single day, and those must never be
// merged by proximity.
func (k EntityKind) ReconcilesByNaturalKey() bool {
	return naturalKeyKinds[k]
}

// Valid reports whether the kind is one the engine replicates.
func (k EntityKind) Valid() bool {
	return allKinds[k]
}

// DurableKinds returns the durable kinds in a stable order, for delta queries.
func DurableKinds() []EntityKind {
	return []EntityKind{KindChatMessage, KindPhotoComment, KindCalendarTask, KindProgressEntry}
}
