package model

type DeployResponse struct {
	Success  bool     `json:"success"`
	TaskID   string   `json:"taskId"`
	ExitCode int      `json:"exitCode"`
	Step     string   `json:"step,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Message  string   `json:"message,omitempty"`
	Output   string   `json:"output,omitempty"`
}

type CommandResponse struct {
	Success  bool   `json:"success"`
	TaskID   string `json:"taskId"`
	ExitCode int    `json:"exitCode"`
	Message  string `json:"message,omitempty"`
	Output   string `json:"output,omitempty"`
}

type CheckResponse struct {
	Success bool     `json:"success"`
	Path    string   `json:"path,omitempty"`
	Details []string `json:"details,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// StreamMessage is one websocket frame of a streamed deployment: "output"
// frames carry a line of ggp output, the final "result" frame carries the
// deployment outcome.
type StreamMessage struct {
	Type   string          `json:"type"`
	TaskID string          `json:"taskId"`
	Line   string          `json:"line,omitempty"`
	Result *DeployResponse `json:"result,omitempty"`
	Error  *ErrorResponse  `json:"error,omitempty"`
}
