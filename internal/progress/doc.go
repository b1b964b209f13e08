// Package progress provides progress reporting for gallery exports.
//
// This package outputs human-readable progress information to stdout,
// including completion percentage, fetch speed, and ETA. Byte totals are
// unknown until images are fetched, so percentage and ETA derive from
// image counts.
//
// # Usage
//
//	reporter := progress.NewReporter(Options{
//	    TotalImages: len(images),
//	    Workers:     4,
//	    Output:      os.Stdout,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Update as images complete
//	reporter.ImageCompleted(fetchedSize)
//
// # Output Format
//
//	[collate] Exporting: gallery-1837201
//	[collate] Images: 150 | Workers: 4
//	[collate] Progress: 45.3% | Fetched: 112.40 MB | Speed: 8.21 MB/s | ETA: 22s
//	[collate] Images: 68 done | 0 failed | 4 in-progress | 78 pending
package progress
