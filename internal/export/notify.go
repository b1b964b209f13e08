package export

// Notifier receives session lifecycle notices. Implementations must not
// block; every call is fire-and-forget and the exporter's outcome never
// depends on delivery.
type Notifier interface {
	// Loading fires when a session begins.
	Loading(gallery string)

	// Success fires with the number of images that contributed output.
	Success(gallery string, count int)

	// Failure fires when the session fails as a whole.
	Failure(gallery string, err error)

	// Busy fires when a request is rejected because a session is active.
	Busy(gallery string)
}

// NopNotifier discards all notices.
type NopNotifier struct{}

func (NopNotifier) Loading(string)        {}
func (NopNotifier) Success(string, int)   {}
func (NopNotifier) Failure(string, error) {}
func (NopNotifier) Busy(string)           {}

var _ Notifier = NopNotifier{}

// ProgressSink receives per-image progress events. The exporter treats a
// nil sink as a no-op.
type ProgressSink interface {
	ImageStarted()
	ImageCompleted(size int64)
	ImageFailed()
	OutputWritten(size int64)
}
