package pub

import "path/filepath"

// OutputType selects which of the two public artifacts a publish affects.
type OutputType string

const (
	OutputSummary OutputType = "summary"
	OutputFull    OutputType = "full"
	OutputBoth    OutputType = "both"
)

// Valid reports whether the output type is one of the known selections.
func (t OutputType) Valid() bool {
	switch t {
	case OutputSummary, OutputFull, OutputBoth:
		return true
	}
	return false
}

// The two fixed public artifact names. They live directly under the site
// root (like robots.txt) so crawlers can find them at a predictable,
// unauthenticated location.
const (
	SummaryFilename = "llms.txt"
	FullFilename    = "llms-full.txt"
)

// Target is one of the two fixed publish targets.
type Target struct {
	Name OutputType // summary or full
	Path string     // absolute path under the site root
}

// TargetSet maps the site root to the canonical target paths.
type TargetSet struct {
	SiteRoot string
}

// Summary returns the summary artifact target.
func (s TargetSet) Summary() Target {
	return Target{Name: OutputSummary, Path: filepath.Join(s.SiteRoot, SummaryFilename)}
}

// Full returns the full artifact target.
func (s TargetSet) Full() Target {
	return Target{Name: OutputFull, Path: filepath.Join(s.SiteRoot, FullFilename)}
}

// Select returns the targets that participate in a publish of the given
// output type, in publish order (summary before full).
func (s TargetSet) Select(t OutputType) []Target {
	switch t {
	case OutputSummary:
		return []Target{s.Summary()}
	case OutputFull:
		return []Target{s.Full()}
	case OutputBoth:
		return []Target{s.Summary(), s.Full()}
	}
	return nil
}

// Filenames returns the artifact filenames affected by the given output type.
func (s TargetSet) Filenames(t OutputType) []string {
	var names []string
	for _, target := range s.Select(t) {
		names = append(names, filepath.Base(target.Path))
	}
	return names
}
