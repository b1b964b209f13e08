// Package gallery fetches and decodes gallery metadata: the ordered list
// of image descriptors (content hash, original filename, declared
// dimensions, available variants) for a gallery id.
package gallery
