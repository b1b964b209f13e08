package imageurl

import (
	"fmt"
	"strconv"

	"github.com/ligustah/collate/internal/gallery"
	"github.com/ligustah/collate/internal/shardmap"
)

// Order selects the variant preference for resolution.
type Order int

const (
	// OrderCompactFirst prefers the smallest encodings: avif, then webp,
	// then the native variant as the most compatible fallback.
	OrderCompactFirst Order = iota

	// OrderNativeFirst prefers the image's original encoding, falling
	// back to webp and avif.
	OrderNativeFirst
)

// Candidate is one resolved URL for one variant of one image. Candidates
// are derived on demand and never stored.
type Candidate struct {
	URL     string
	Variant string
}

// Bucket derives the routing bucket from a content hash: the last hex
// character concatenated with the two preceding characters, parsed base
// 16. Returns false when the hash is too short or those characters are
// not hex.
func Bucket(hash string) (int, bool) {
	if len(hash) < 3 {
		return 0, false
	}
	key := string(hash[len(hash)-1]) + hash[len(hash)-3:len(hash)-1]
	n, err := strconv.ParseUint(key, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// Resolve computes the ordered candidate URLs for every available variant
// of img. host is the image domain suffix; the subdomain is the first
// letter of the variant extension followed by the 1-based server index.
// Resolution never fails: an image whose bucket cannot be derived, or
// with no determinable variant, yields no candidates.
func Resolve(img gallery.Image, m *shardmap.Map, host string, order Order) []Candidate {
	bucket, ok := Bucket(img.Hash)
	if !ok {
		return nil
	}

	var exts []string
	appendExt := func(ext string) {
		if ext == "" {
			return
		}
		for _, seen := range exts {
			if seen == ext {
				return
			}
		}
		exts = append(exts, ext)
	}

	switch order {
	case OrderNativeFirst:
		appendExt(img.Ext())
		if img.HasWebP {
			appendExt("webp")
		}
		if img.HasAVIF {
			appendExt("avif")
		}
	default:
		if img.HasAVIF {
			appendExt("avif")
		}
		if img.HasWebP {
			appendExt("webp")
		}
		appendExt(img.Ext())
	}

	server := m.Lookup(bucket) + 1 // map values are 0-based, subdomains 1-based

	candidates := make([]Candidate, 0, len(exts))
	for _, ext := range exts {
		candidates = append(candidates, Candidate{
			URL: fmt.Sprintf("https://%c%d.%s/%s/%d/%s.%s",
				ext[0], server, host, m.BasePath, bucket, img.Hash, ext),
			Variant: ext,
		})
	}
	return candidates
}
