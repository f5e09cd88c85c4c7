package ledger

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// Tag is a name/value pair attached to a ledger message.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Tags keeps insertion order; names may repeat.
type Tags []Tag

// Get returns the value of the first tag named name.
func (ts Tags) Get(name string) (string, bool) {
	for _, t := range ts {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// Has reports whether any tag has both name and value.
func (ts Tags) Has(name, value string) bool {
	for _, t := range ts {
		if t.Name == name && t.Value == value {
			return true
		}
	}
	return false
}

// ClipTagValue shortens v to the largest prefix that fits in a tag value
// without splitting a rune.
func ClipTagValue(v string) string {
	if len(v) <= maxTagValueLen {
		return v
	}
	i := maxTagValueLen
	for i > 0 && !utf8.RuneStart(v[i]) {
		i--
	}
	return v[:i]
}

// Payload is a message's Data field. Compute units usually return a string
// but may return any JSON value; non-strings are kept as their raw JSON.
type Payload string

func (p *Payload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*p = Payload(s)
		return nil
	}
	*p = Payload(trimmed)
	return nil
}

// Message is one outbound message in a process result.
type Message struct {
	Data   Payload `json:"Data"`
	Tags   Tags    `json:"Tags"`
	Target string  `json:"Target,omitempty"`
	Anchor string  `json:"Anchor,omitempty"`
}

// Node is the evaluated result of one message sent to a process.
type Node struct {
	Messages []Message `json:"Messages"`
}

// Edge is one record in a results page. Cursor is opaque and orderable per
// process.
type Edge struct {
	Cursor string `json:"cursor"`
	Node   Node   `json:"node"`
}

// Results is a page returned by the compute unit.
type Results struct {
	Edges []Edge `json:"edges"`
}

type Sort string

const (
	SortAscending  Sort = "ASC"
	SortDescending Sort = "DESC"
)

// ResultsQuery selects a page of results. From is exclusive.
type ResultsQuery struct {
	From  string
	To    string
	Sort  Sort
	Limit int
}
