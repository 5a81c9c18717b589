package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a random identifier carrying a short type prefix, e.g. "bill_1f0c...".
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}
