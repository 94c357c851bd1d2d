package git

import (
	"context"
	"strings"
)

// Remote identifies the hosted repository behind the origin remote.
type Remote struct {
	Owner string
	Name  string
}

// ParseOwnerRepo extracts the owner and repository name from a git remote URL.
// It handles scheme URLs (https://host/owner/name, ssh://git@host/owner/name),
// scp-like URLs (git@host:owner/name), and bare host/owner/name forms, with or
// without a trailing .git. ok is false when the URL does not look like a
// hosted repository, including local filesystem paths.
func ParseOwnerRepo(url string) (owner, name string, ok bool) {
	s := strings.TrimSpace(url)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	if s == "" {
		return "", "", false
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if at := strings.IndexByte(s, '@'); at >= 0 {
			s = s[at+1:]
		}
		return lastTwoSegments(s, 3)
	}

	// scp-like: git@host:owner/name
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return lastTwoSegments(strings.Trim(s[i+1:], "/"), 2)
	}

	// Bare host/owner/name. The leading segment must look like a hostname so
	// that local paths are rejected.
	parts := strings.Split(s, "/")
	if len(parts) >= 3 && strings.Contains(parts[0], ".") {
		return lastTwoSegments(s, 3)
	}

	return "", "", false
}

// lastTwoSegments returns the final two path segments of s when it has at
// least min segments and both are non-empty.
func lastTwoSegments(s string, min int) (string, string, bool) {
	parts := strings.Split(s, "/")
	if len(parts) < min {
		return "", "", false
	}
	owner, name := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

// DetectRemote resolves the repository identity. Explicitly configured owner
// and name win over values parsed from the origin remote URL. ok is false when
// neither source yields both fields; callers then run in local-only mode with
// branch, push, PR, and merge steps disabled.
func DetectRemote(ctx context.Context, client RemoteReader, cfgOwner, cfgName string) (Remote, bool) {
	r := Remote{Owner: cfgOwner, Name: cfgName}
	if r.Owner != "" && r.Name != "" {
		return r, true
	}

	url, err := client.RemoteURL(ctx)
	if err != nil {
		return Remote{}, false
	}

	owner, name, ok := ParseOwnerRepo(url)
	if !ok {
		return Remote{}, false
	}

	if r.Owner == "" {
		r.Owner = owner
	}
	if r.Name == "" {
		r.Name = name
	}
	return r, true
}

// Slug returns the owner/name form used by gh --repo flags.
func (r Remote) Slug() string {
	return r.Owner + "/" + r.Name
}
