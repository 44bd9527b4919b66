package pub

import "context"

// GenerationResult carries the two logical content strings a generation
// run produces. Archive holds the packed bundle bytes when the service
// responded in archive mode; the publish path ignores it.
type GenerationResult struct {
	Summary string
	Full    string
	Archive []byte
}

// Generator produces fresh artifact content for a site. The concrete
// implementation orchestrates the external generation service's
// prepare/advance/finalize protocol; tests substitute a scripted fake.
type Generator interface {
	Run(ctx context.Context, websiteURL string, outputType OutputType) (*GenerationResult, error)
}
