// Package export orchestrates gallery exports: fetching metadata,
// resolving and retrieving every image, converting fetched bytes into
// bounded rasters, and packaging the results into the destination bucket.
//
// The Exporter is the single entry point. It holds the one busy lock a
// viewer instance gets: a second request while a session is active is
// rejected with ErrBusy, never queued. Sessions emit Loading, then
// exactly one of Success or Failure, through a fire-and-forget Notifier;
// the same outcome is also returned explicitly so callers never depend on
// notification delivery.
//
// Per-image failures are contained: an unreachable or undecodable image
// is skipped and the batch continues. Only whole-batch conditions (no
// routing map, no metadata, zero usable images) fail the session.
package export
