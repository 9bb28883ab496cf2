package model

// Edit operations accepted by the filter API.
const (
	OpSet    = "set"
	OpExtend = "extend"
	OpDelete = "delete"
)

// EditRequest is the logical view of a filter edit before it is applied:
// which operation, against which query text, with what arguments.
type EditRequest struct {
	Query   string
	Op      string
	Field   string
	Fields  []string // delete may name several fields at once
	Value   string
	Negated bool
}

// EditRecord is an applied edit as persisted in the history journal,
// including the query text before and after the rewrite.
type EditRecord struct {
	Timestamp int64    `json:"timestamp"`
	SearchID  string   `json:"search_id,omitempty"`
	Actor     string   `json:"actor,omitempty"`
	Op        string   `json:"op"`
	Field     string   `json:"field,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	Value     string   `json:"value,omitempty"`
	Negated   bool     `json:"negated,omitempty"`
	Before    string   `json:"before"`
	After     string   `json:"after"`
}
