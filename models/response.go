package models

// CommandResponse is the envelope returned for every command, over HTTP or in-process.
type CommandResponse struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty" example:"Unknown action"`
}

// OK wraps data in a successful envelope.
func OK(data interface{}) CommandResponse {
	return CommandResponse{Success: true, Data: data}
}

// Fail builds a failed envelope from msg.
func Fail(msg string) CommandResponse {
	return CommandResponse{Success: false, Error: msg}
}
