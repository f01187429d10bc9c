package queue

import (
	"time"

	"allsky/internal/daydate"
)

// Status is the lifecycle state of a queued row.
type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
)

// Request asks the worker to build artifacts for one day-date and
// partition, or to stop when Stop is set.
type Request struct {
	ID          int64
	UUID        string
	DayDate     string
	Partition   daydate.Partition
	WantVideo   bool
	WantKeogram bool
	Stop        bool
	ImageFolder string
	Status      Status
	CreatedAt   time.Time
	ClaimedAt   *time.Time
}

// Night reports whether the request targets the night partition.
func (r Request) Night() bool { return r.Partition.IsNight() }

// Upload hands a finished artifact to the transfer workers.
type Upload struct {
	ID         int64
	LocalPath  string
	RemotePath string
	Status     Status
	CreatedAt  time.Time
}
