package model

// GenerationJob is the queued request for an asynchronous generation run.
// Documents travel inline; uploads are bounded by the HTTP layer.
type GenerationJob struct {
	PresentationID string        `json:"presentation_id"`
	Prompt         string        `json:"prompt"`
	URLs           []string      `json:"urls,omitempty"`
	Documents      []JobDocument `json:"documents,omitempty"`
}

type JobDocument struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}
