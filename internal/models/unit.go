package models

// SourceUnit is the next item of work a source produced for a channel. A nil
// *SourceUnit means the source is empty.
type SourceUnit struct {
	Kind    SourceKind             `json:"kind"`
	Topic   string                 `json:"topic"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Advance CursorAdvance          `json:"-"`
}
