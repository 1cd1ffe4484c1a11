package hnsw

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultRegionPath is the backing file conventionally used for the
// persisted index, relative to the working directory.
const DefaultRegionPath = "hnsw_index.bin"

// RegionSize is the fixed size of the backing file and mapping. The region
// never grows; a snapshot larger than this fails with ErrCapacityExceeded.
const RegionSize = 250 << 20

// Region is a fixed-size, file-backed memory mapping holding one index
// image. It is owned by the process that opened it; the file is a
// process-local cache, not a shared-writer protocol.
type Region struct {
	f    *os.File
	data []byte
}

// OpenRegion opens the backing file at path, creating it if missing,
// extends a fresh file to RegionSize, and maps the full range read-write,
// shared.
func OpenRegion(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrMmap, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrMmap, path, err)
	}
	if info.Size() == 0 {
		if err := f.Truncate(RegionSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: truncate %s: %w", ErrMmap, path, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, RegionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mmap %s: %w", ErrMmap, path, err)
	}
	return &Region{f: f, data: data}, nil
}

// Bytes exposes the mapped range. The slice is valid until Close.
func (r *Region) Bytes() []byte {
	return r.data
}

// Close unmaps the region and closes the backing file.
func (r *Region) Close() error {
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			return fmt.Errorf("%w: munmap: %w", ErrMmap, err)
		}
		r.data = nil
	}
	return r.f.Close()
}
