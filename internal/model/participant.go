package model

import (
	"context"
	"fmt"
	"time"
)

// Participant status codes
const (
	StatusNotAccepted = iota
	StatusAllocated
	StatusStarted
	StatusCompleted
	StatusDebriefed
	StatusCredited
	StatusQuitEarly
)

// Participant is a stored record of one experiment session of one worker.
type Participant struct {
	UniqueID       string     `json:"uniqueid"`
	AssignmentID   string     `json:"assignmentid"`
	WorkerID       string     `json:"workerid"`
	HitID          string     `json:"hitid"`
	IPAddress      string     `json:"ipaddress,omitempty"`
	Browser        string     `json:"browser,omitempty"`
	Platform       string     `json:"platform,omitempty"`
	Language       string     `json:"language,omitempty"`
	Cond           int        `json:"cond"`
	Counterbalance int        `json:"counterbalance"`
	CodeVersion    string     `json:"codeversion"`
	BeginHit       time.Time  `json:"beginhit"`
	BeginExp       *time.Time `json:"beginexp,omitempty"`
	EndHit         *time.Time `json:"endhit,omitempty"`
	Status         int        `json:"status"`
	Debriefed      bool       `json:"debriefed"`
	// Datastring is an opaque JSON blob with data, eventdata and questiondata
	Datastring string `json:"datastring,omitempty"`
}

// UniqueID returns the primary key of a participant record.
func UniqueID(workerID, assignmentID string) string {
	return workerID + ":" + assignmentID
}

// NewParticipant returns a freshly allocated participant. UniqueID is fixed
// here and never changes during record lifetime.
func NewParticipant(workerID, assignmentID, hitID, codeVersion string, now time.Time) Participant {
	return Participant{
		UniqueID:     UniqueID(workerID, assignmentID),
		AssignmentID: assignmentID,
		WorkerID:     workerID,
		HitID:        hitID,
		CodeVersion:  codeVersion,
		BeginHit:     now,
		Status:       StatusAllocated,
		Debriefed:    false,
	}
}

func (p Participant) String() string {
	return fmt.Sprintf("Subject(%s, %d, %d, %s)", p.UniqueID, p.Cond, p.Status, p.CodeVersion)
}

// ParticipantStore is a keyed record store of participants.
// Get returns ErrNotFound for an unknown id. Put inserts or replaces the record.
type ParticipantStore interface {
	Get(ctx context.Context, uniqueID string) (Participant, error)
	Put(ctx context.Context, p Participant) error
}
