// Package fingerprint computes stable identity keys for requests.
//
// Two requests that differ only in presentation (query parameter order,
// URL fragment, default ports, upper or lower case in scheme and host)
// must map to the same key, because the duplicate filter uses the key to
// decide whether a URL has already been scheduled anywhere in the crawl.
// The key is a hex-encoded SHA3-256 digest over a canonical record of
// method, normalized URL, and body, so it is safe to share between
// processes through the store.
package fingerprint
