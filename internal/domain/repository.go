package domain

import "context"

// ResultCache stores analysis results keyed by product identity.
// Implementations must be safe for concurrent use and must hand out
// copies, never references into their backing store.
type ResultCache interface {
	Get(ctx context.Context, identity ProductIdentity) (*AnalysisResult, error)
	Put(ctx context.Context, identity ProductIdentity, productURL string, result *AnalysisResult) error
	Stats(ctx context.Context) (CacheStats, error)
	Clear(ctx context.Context) error
}

// Acquirer runs one external acquisition.
// Implementations must honor ctx cancellation and must not return
// until the work they started has stopped.
type Acquirer interface {
	Acquire(ctx context.Context, kind AcquisitionKind, targetURL string) (*AcquisitionOutput, error)
}
