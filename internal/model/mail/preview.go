package mail

import "time"

// PreviewResult is one rendering of the draft returned by the remote
// transformer. SequenceNumber is monotonic per draft lifetime; the preview
// engine never exposes a result whose sequence number is lower than the
// highest one already exposed.
type PreviewResult struct {
	SequenceNumber   uint64    `json:"sequenceNumber"`
	RenderedText     string    `json:"renderedText"`
	RenderedImageURL string    `json:"renderedImageUrl,omitempty"`
	GeneratedAt      time.Time `json:"generatedAt"`
}
