// Package imageurl computes retrieval URLs for gallery images.
//
// The image host shards objects across numbered servers by a bucket
// derived from the content hash: the last hex character concatenated with
// the two preceding characters, parsed base 16. The routing map translates
// buckets to 0-based server indexes; subdomains are 1-based, prefixed with
// the first letter of the variant extension:
//
//	https://w3.img.example.net/1719832261/786/abc...123.webp
//
// Resolution is pure derivation over the image descriptor and routing map
// and never performs I/O.
package imageurl
