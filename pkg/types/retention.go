package types

// Retention request modes.
const (
	RetentionModeCount = "count"
	RetentionModeAge   = "age"
)

// RetentionRequest asks the daemon to prune the oldest history records.
// Exactly one of DeleteCount (count mode) or OlderThanMs (age mode) must
// be positive.
type RetentionRequest struct {
	Mode        string `json:"mode"`
	DeleteCount int    `json:"deleteCount,omitempty"`
	OlderThanMs int64  `json:"olderThanMs,omitempty"`
}

// RetentionResult reports the outcome of one retention run. Deleted is
// accurate even when Success is false (partial batch failure).
type RetentionResult struct {
	Success    bool   `json:"success"`
	Deleted    int    `json:"deleted"`
	Message    string `json:"message"`
	Collection string `json:"collection,omitempty"`
	Error      string `json:"error,omitempty"`
}
