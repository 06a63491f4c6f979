package store

import (
	"fmt"

	"github.com/google/uuid"
)

func JobKey(jobID uuid.UUID) string {
	return fmt.Sprintf("genqueue:job:%s", jobID)
}
