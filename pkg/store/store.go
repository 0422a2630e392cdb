package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/google/uuid"
)

const DefaultPrefix = "unifed:task"

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Key struct {
	JobID string   `json:"job_id"`
	Role  job.Role `json:"role"`
}

func (k Key) path() string {
	return k.JobID + ":" + string(k.Role)
}

type ErrorRecord struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

func NewErrorRecord(err error) ErrorRecord {
	return ErrorRecord{
		ID:      uuid.NewString(),
		Kind:    pkgerrors.Kind(err),
		Message: err.Error(),
		Time:    time.Now().UTC(),
	}
}

// Record is the single entry written for a (job, role).
type Record struct {
	Key
	Status    Status          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ErrorRecord    `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists task entries. Exactly one of SaveResult and SaveError succeeds
// per key; later writes fail with ErrAlreadyStored.
type Store interface {
	SaveResult(ctx context.Context, key Key, result []byte) error
	SaveError(ctx context.Context, key Key, rec ErrorRecord) error
	SaveLog(ctx context.Context, key Key, log string) error
	Get(ctx context.Context, key Key) (Record, error)
	GetLog(ctx context.Context, key Key) (string, error)
}
