package models

// IngestResult represents the outcome of an ingestion request
type IngestResult struct {
	Processed    int      `json:"processed"`
	NodesCreated int      `json:"nodes_created"`
	EdgesCreated int      `json:"edges_created"`
	Errors       []string `json:"errors"`
	Status       string   `json:"status,omitempty"`
	WorkflowID   string   `json:"workflow_id,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// ExtractionStatus represents the state of an asynchronous extraction workflow
type ExtractionStatus struct {
	WorkflowID string                 `json:"workflow_id"`
	Status     string                 `json:"status"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
}
