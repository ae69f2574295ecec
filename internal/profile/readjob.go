package profile

import (
	"context"
	"fmt"

	"github.com/getsentry/flamegraph/internal/sample"
	"github.com/getsentry/flamegraph/internal/storageutil"
)

type (
	ReadJob struct {
		Ctx            context.Context
		Storage        storageutil.ObjectHandler
		OrganizationID uint64
		Candidate      Candidate
		Index          int
		Result         chan<- storageutil.ReadJobResult
	}

	ReadJobResult struct {
		Err       error
		Candidate Candidate
		Index     int
		Batch     *sample.Batch
	}
)

func (job ReadJob) Read() {
	var batch sample.Batch

	err := storageutil.UnmarshalCompressed(
		job.Ctx,
		job.Storage,
		StoragePath(job.OrganizationID, job.Candidate.ProjectID, job.Candidate.ProfileID),
		&batch,
	)
	if err != nil {
		err = fmt.Errorf("profile %s: %w", job.Candidate.ProfileID, err)
	} else {
		for i := range batch.Profiles {
			if batch.Profiles[i].ProfileID == "" {
				batch.Profiles[i].ProfileID = job.Candidate.ProfileID
			}
			if batch.Profiles[i].ProjectID == 0 {
				batch.Profiles[i].ProjectID = job.Candidate.ProjectID
			}
		}
	}

	job.Result <- ReadJobResult{
		Err:       err,
		Candidate: job.Candidate,
		Index:     job.Index,
		Batch:     &batch,
	}
}

func (result ReadJobResult) Error() error {
	return result.Err
}
