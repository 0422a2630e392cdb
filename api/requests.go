package api

import (
	"fmt"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

type resultReq struct {
	JobID string
	Role  job.Role
}

func (req resultReq) validate() error {
	if req.JobID == "" {
		return fmt.Errorf("job_id: %w", pkgerrors.ErrMissingValue)
	}
	if !req.Role.Valid() {
		return fmt.Errorf("role %q: %w", req.Role, errInvalidRole)
	}

	return nil
}
