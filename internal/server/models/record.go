package models

// DurableRecord is the server-side authoritative copy of a durable-kind
// entity. Conflicts resolve last-write-wins on ModifiedAtMs.
type DurableRecord struct {
	ID           string
	Kind         string
	SubjectID    string
	Payload      []byte
	BlobURL      string
	CreatedAtMs  int64
	ModifiedAtMs int64
}
