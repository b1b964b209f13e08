package shardmap

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Common errors.
var (
	ErrNoBasePath = errors.New("shardmap: routing script missing base path")
)

// Map is a parsed routing table. Buckets holds explicit bucket to server
// index entries; hashes whose bucket is absent route to Default. Read-only
// after construction.
type Map struct {
	Buckets  map[int]int
	BasePath string
	Default  int
}

// Lookup returns the server index for a bucket.
func (m *Map) Lookup(bucket int) int {
	if v, ok := m.Buckets[bucket]; ok {
		return v
	}
	return m.Default
}

// tokenRe matches the four script constructs the parser understands, in
// document order. Alternative order matters: the var declaration and the
// conditional both contain a plain assignment, so they must win at their
// start position.
var tokenRe = regexp.MustCompile(
	`var\s+o\s*=\s*(\d+)` +
		`|if\s*\(\s*g\s*={2,3}\s*(\d+)\s*\)\s*\{?\s*o\s*=\s*(\d+)` +
		`|case\s+(\d+):` +
		`|o\s*=\s*(\d+)`,
)

// basePathRe matches the quoted base path literal (`b: '1719832261/'`).
var basePathRe = regexp.MustCompile(`\bb\s*[:=]\s*['"]([^'"]+?)/?['"]`)

// Parse extracts a routing Map from script text by pattern scanning. The
// script is never executed. Runs of case labels take the value of the next
// plain assignment; conditional overrides are applied afterwards and win
// for their bucket. The base path is required; everything else degrades to
// defaults.
func Parse(script string) (*Map, error) {
	bm := basePathRe.FindStringSubmatch(script)
	if bm == nil {
		return nil, ErrNoBasePath
	}

	m := &Map{
		Buckets:  make(map[int]int),
		BasePath: strings.TrimSuffix(bm[1], "/"),
	}

	overrides := make(map[int]int)
	var pending []int

	for _, tok := range tokenRe.FindAllStringSubmatch(script, -1) {
		switch {
		case tok[1] != "":
			m.Default = atoi(tok[1])
		case tok[2] != "":
			overrides[atoi(tok[2])] = atoi(tok[3])
		case tok[4] != "":
			pending = append(pending, atoi(tok[4]))
		case tok[5] != "":
			v := atoi(tok[5])
			for _, b := range pending {
				m.Buckets[b] = v
			}
			pending = nil
		}
	}

	for b, v := range overrides {
		m.Buckets[b] = v
	}

	return m, nil
}

// atoi converts a digits-only regexp capture. Overflowing values clamp;
// they can only come from a garbage script and resolve like any other
// unknown bucket.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
