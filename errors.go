package hnsw

import "errors"

// Error kinds surfaced by the index. Callers match them with errors.Is;
// wrapped messages identify the failed operation.
var (
	// ErrDimensionMismatch reports vectors of unequal length supplied to
	// the distance kernel or to Insert.
	ErrDimensionMismatch = errors.New("hnsw: dimension mismatch")

	// ErrCorruptImage reports a persisted image whose length prefixes
	// would read past the end of the region.
	ErrCorruptImage = errors.New("hnsw: corrupt index image")

	// ErrMmap reports a failure to establish or release the backing
	// region.
	ErrMmap = errors.New("hnsw: mmap region")

	// ErrCapacityExceeded reports a snapshot larger than the backing
	// region.
	ErrCapacityExceeded = errors.New("hnsw: region capacity exceeded")
)
