package types

// OutputFormat defines the CLI output format
type OutputFormat string

const (
	// OutputFormatJSON outputs the structured JSON envelope
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatTable outputs a human-readable table
	OutputFormatTable OutputFormat = "table"
)

// GlobalFlags holds flags shared by every command
type GlobalFlags struct {
	Profile      string
	OutputFormat OutputFormat
	Quiet        bool
	Verbose      bool
	Debug        bool
	JSON         bool
	Config       string
	LogFile      string
	Yes          bool
}

// CLIOutput is the stable JSON envelope written for every command
type CLIOutput struct {
	SchemaVersion string       `json:"schemaVersion"`
	TraceID       string       `json:"traceId"`
	Command       string       `json:"command"`
	Data          interface{}  `json:"data"`
	Warnings      []CLIWarning `json:"warnings"`
	Errors        []CLIError   `json:"errors"`
}

// CLIError is a tool-owned, stable error shape
type CLIError struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	HTTPStatus  int                    `json:"httpStatus,omitempty"`
	GraphCode   string                 `json:"graphCode,omitempty"`
	Retryable   bool                   `json:"retryable"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// CLIWarning is a non-fatal notice attached to command output
type CLIWarning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// TableRenderer renders a result as a table
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
	EmptyMessage() string
}

// TableRenderable exposes a TableRenderer for a result type
type TableRenderable interface {
	AsTableRenderer() TableRenderer
}
