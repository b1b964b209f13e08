// Package relay provides the hardened HTTP client used for all upstream
// fetches: the routing script, gallery metadata, and image objects.
//
// The client fetches whole objects only. It retries server errors and
// network failures with exponential backoff and jitter, maps client
// errors to sentinel errors (ErrNotFound, ErrForbidden, ...), refuses
// non-https URLs and hosts outside the configured allow-list, and caps
// response bodies at a configured size.
//
// # Usage
//
//	client := relay.NewClient(relay.Options{
//	    AllowedHosts: []string{".cdn.example.net", "meta.example.net"},
//	    Referer:      "https://viewer.example.net/",
//	})
//
//	res, err := client.Fetch(ctx, imageURL)
package relay
