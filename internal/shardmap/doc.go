// Package shardmap resolves the hash-bucket to server routing table that
// the image host publishes as a small script.
//
// The script is fetched once and parsed by pattern scanning; it is never
// executed. The parser understands four constructs:
//
//   - runs of `case N:` labels, which take the value of the next plain
//     `o = M` assignment (switch fallthrough)
//   - `if (g === N) { o = M }` overrides, applied after the fallthrough
//     pass and winning for their bucket
//   - a `var o = N` default server declaration
//   - a quoted base path literal (`b: '1719832261/'`), the one construct
//     that must be present
//
// A missing base path is the only hard parse failure. Parsed maps are
// cached for the process lifetime; failures leave the cache empty so the
// next caller refetches. Concurrent first resolutions collapse into one
// fetch.
package shardmap
