package loop

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// branchTokenLen is how many ULID tail characters disambiguate branches
// created within the same second.
const branchTokenLen = 6

// BranchName builds the name for an iteration branch:
// <prefix>i<ordinal>-<UTC timestamp>-<token>. The token is the lowercased
// tail of a fresh ULID so two runs branching in the same second cannot
// collide.
func BranchName(prefix string, ordinal int, now time.Time) string {
	id := strings.ToLower(ulid.Make().String())
	token := id[len(id)-branchTokenLen:]
	return fmt.Sprintf("%si%d-%s-%s", prefix, ordinal, now.UTC().Format("20060102-150405"), token)
}
