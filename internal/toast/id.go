package toast

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// newID returns a short uppercase id. The random prefix keeps ids opaque; the
// sequence suffix makes them unique for the controller's lifetime.
func newID(seq uint64) string {
	return randomHex(5) + strings.ToUpper(strconv.FormatUint(seq, 36))
}

func randomHex(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(s) {
		n = len(s)
	}
	return strings.ToUpper(s[:n])
}

// NewButtonID returns a short random id for a button.
func NewButtonID() string { return strings.ToLower(randomHex(8)) }
