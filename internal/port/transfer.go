package port

// TransferProgress is one progress callback from a running transfer
type TransferProgress struct {
	BytesWritten   int64
	ContentLength  int64
	BytesPerSecond float64
}

// TransferResult is delivered once when a transfer ends
type TransferResult struct {
	StatusCode   int
	BytesWritten int64
	Err          error
}

// JobHandle identifies a running transfer
type JobHandle uint64

// TransferJob is a started transfer.
// Done receives exactly one result and is then closed.
type TransferJob struct {
	Handle JobHandle
	Done   <-chan TransferResult
}

// Transfer is the native download primitive.
// Progress callbacks for one job are delivered from a single goroutine
// in non-decreasing BytesWritten order and stop before Done fires.
type Transfer interface {
	DownloadFile(fromURL, toFile string, onProgress func(TransferProgress)) (*TransferJob, error)
	StopDownload(handle JobHandle)
}
