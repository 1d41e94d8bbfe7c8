package models

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TaskMessage is the queue payload produced by the API on upload.
type TaskMessage struct {
	RequestID   string `json:"request_id"`
	TraceID     string `json:"trace_id"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type Item struct {
	Position    int
	ProductName string
	InputURLs   []string
	OutputPaths []string
	Status      Status
}

// URLResult is the outcome of one input URL: Output is set on success,
// Err on failure.
type URLResult struct {
	URL    string
	Output string
	Err    error
}

func (r URLResult) OK() bool {
	return r.Err == nil
}

// ItemResult is what gets committed back for one item.
type ItemResult struct {
	Position    int
	ProductName string
	InputURLs   []string
	OutputPaths []string
	Status      Status
}

// TaskResult is the declared outcome of a processing run.
type TaskResult struct {
	RequestID string `json:"request_id"`
	Status    Status `json:"status"`
	CSVFile   string `json:"csv_file"`
}
