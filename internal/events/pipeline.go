package events

// PipelineFailure is emitted when a request ends in an error envelope.
type PipelineFailure struct {
	Kind    string
	Message string
	// Retryable is set when the failure came from the registry and the same
	// request may succeed later.
	Retryable bool
}
