package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "req-6f1c...".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
