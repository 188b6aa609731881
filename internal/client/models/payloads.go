package models

// Typed payload shapes for the kinds the engine replicates. The engine itself
// treats payloads as opaque JSON; these structs are for producers (UI/mutation
// layer) and consumers of applied-record notifications.

type ChatMessagePayload struct {
	AuthorID string `json:"authorId"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sentAt"`
}

type PhotoCommentPayload struct {
	PhotoReportID string `json:"photoReportId"`
	AuthorID      string `json:"authorId"`
	Text          string `json:"text"`
}

type CalendarTaskPayload struct {
	Title   string `json:"title"`
	DueDate string `json:"dueDate"` // yyyy-mm-dd
	Done    bool   `json:"done"`
}

type ProgressEntryPayload struct {
	Date  string `json:"date"` // yyyy-mm-dd
	Notes string `json:"notes"`
}

// PhotoReportPayload describes an ephemeral photo report. The image itself
// lives in blob storage; only the URL travels through the relay.
type PhotoReportPayload struct {
	SetID string `json:"setId,omitempty"`
	Zone  string `json:"zone"`
	Date  string `json:"date"` // yyyy-mm-dd
}

type PhotoReportSetPayload struct {
	Date  string `json:"date"`
	Zones []string `json:"zones"`
}

type RestrictionPayload struct {
	Type    string `json:"type"`
	Until   string `json:"until,omitempty"` // yyyy-mm-dd
	Comment string `json:"comment,omitempty"`
}
