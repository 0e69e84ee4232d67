package model

// CompletionResult is one response (or one streamed partial response) from
// the completion endpoint. It is merged into a Document and then dropped.
// For streamed results RawResponse holds the cumulative text so far.
type CompletionResult struct {
	ID           string         `json:"id"`
	Model        string         `json:"model"`
	Object       string         `json:"object"`
	Created      int64          `json:"created"`
	Choices      map[string]any `json:"choices"`
	Usage        map[string]any `json:"usage"`
	RawResponse  string         `json:"rawResponse"`
	HasError     bool           `json:"hasError"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	ErrorCode    string         `json:"errorCode,omitempty"`
}

// Text returns choices.content when it is a non-empty string and the raw
// response otherwise.
func (r *CompletionResult) Text() string {
	if r == nil {
		return ""
	}
	if s, ok := r.Choices["content"].(string); ok && s != "" {
		return s
	}
	return r.RawResponse
}
