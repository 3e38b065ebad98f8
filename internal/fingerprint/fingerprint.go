package fingerprint

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/kylin1020/spinneret/internal/model"
)

// ErrUnparsableURL is returned when a URL cannot be normalized.
var ErrUnparsableURL = errors.New("url cannot be parsed for fingerprinting")

// Compute returns the identity key for a request described by its method,
// URL, and body. The method defaults to GET when empty and is compared
// case-insensitively. The URL is normalized before hashing so equivalent
// spellings of the same resource collapse to one key.
func Compute(method, rawURL string, body []byte) (string, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", err
	}

	if method == "" {
		method = http.MethodGet
	}

	h := sha3.New256()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{'\n'})
	h.Write([]byte(normalized))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ForRequest returns the identity key for a request.
func ForRequest(req *model.Request) (string, error) {
	return Compute(req.Method, req.URL, req.Body)
}

// Normalize rewrites a URL into its canonical form:
//   - scheme and host are lowercased
//   - default ports are stripped (http:80, https:443)
//   - the fragment is dropped
//   - an empty path becomes "/"
//   - query parameters are sorted by key, then by value within a key,
//     with duplicates preserved
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnparsableURL, rawURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnparsableURL, rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	// Hostname() strips IPv6 brackets; restore them when rebuilding.
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" {
		u.Path = "/"
	}

	if u.RawQuery != "" {
		u.RawQuery = canonicalQuery(u.Query())
	}

	return u.String(), nil
}

// canonicalQuery re-encodes query values with values sorted inside each
// key. url.Values.Encode already sorts the keys themselves.
func canonicalQuery(values url.Values) string {
	for _, vs := range values {
		sort.Strings(vs)
	}
	return values.Encode()
}
