package utils

import "strings"

// JoinURL joins a base URL and a path without doubling the separator.
func JoinURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
