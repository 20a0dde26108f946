package vo

import (
	"strings"

	"github.com/google/uuid"
)

const taskIDPrefix = "download_"

// NewTaskID returns a generation-ordered task id.
// UUIDv7 embeds a millisecond timestamp, so ids sort by creation time.
func NewTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does
		id = uuid.New()
	}
	return taskIDPrefix + id.String()
}

// IsTaskID reports whether s looks like an id from NewTaskID
func IsTaskID(s string) bool {
	if !strings.HasPrefix(s, taskIDPrefix) {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(s, taskIDPrefix))
	return err == nil
}
