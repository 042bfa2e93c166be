// Package routes classifies request paths against the fixed set of
// path templates served by the engram memory service. The resulting
// category selects the authorization rule; the extracted parameters
// identify the resource owner and, for file paths, the filename.
package routes

import "strings"

// Category values live in pkg/authz; routes returns them as plain
// strings to keep this package free of policy concerns.
const (
	CategoryAdmin   = "admin"
	CategorySelf    = "gpt-self"
	CategoryMemory  = "memory"
	CategoryFile    = "file"
	CategoryInvalid = "invalid"
)

// Match is the result of classifying a request path.
type Match struct {
	Category string
	GPTID    string
	Filename string
}

// Classify matches path against the service's path templates:
//
//	/admin/gpts                  admin
//	/admin/gpts/{gptId}          admin
//	/admin/credentials/{gptId}   admin
//	/gpts/{gptId}                gpt-self
//	/memory/{gptId}              memory
//	/files/{gptId}/{filename}    file
//
// A trailing slash is normalized away. Unmatched paths, empty
// parameters, and parameters attempting directory traversal are
// classified as invalid with no extracted params.
func Classify(path string) Match {
	path = strings.TrimSuffix(path, "/")

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")

	switch {
	case len(segments) == 2 && segments[0] == "admin" && segments[1] == "gpts":
		return Match{Category: CategoryAdmin}

	case len(segments) == 3 && segments[0] == "admin" && segments[1] == "gpts":
		return param(Match{Category: CategoryAdmin, GPTID: segments[2]})

	case len(segments) == 3 && segments[0] == "admin" && segments[1] == "credentials":
		return param(Match{Category: CategoryAdmin, GPTID: segments[2]})

	case len(segments) == 2 && segments[0] == "gpts":
		return param(Match{Category: CategorySelf, GPTID: segments[1]})

	case len(segments) == 2 && segments[0] == "memory":
		return param(Match{Category: CategoryMemory, GPTID: segments[1]})

	case len(segments) == 3 && segments[0] == "files":
		return param(Match{Category: CategoryFile, GPTID: segments[1], Filename: segments[2]})

	default:
		return Match{Category: CategoryInvalid}
	}
}

// param validates the extracted parameters of a match. Empty segments
// and dot segments would either match the wrong template or escape the
// tenant's directory, so both invalidate the match.
func param(m Match) Match {
	for _, p := range []string{m.GPTID, m.Filename} {
		if p == "." || p == ".." {
			return Match{Category: CategoryInvalid}
		}
	}
	if m.GPTID == "" {
		return Match{Category: CategoryInvalid}
	}
	return m
}
