package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getsentry/flamegraph/internal/sample"
	"github.com/getsentry/flamegraph/internal/storageutil"
)

type (
	// Candidate is a stored profile selected by the query layer.
	Candidate struct {
		ProjectID uint64 `json:"project_id"`
		ProfileID string `json:"profile_id"`
	}

	LoadStats struct {
		Loaded  int `json:"loaded"`
		Missing int `json:"missing"`
		Failed  int `json:"failed"`
	}
)

func StoragePath(organizationID, projectID uint64, profileID string) string {
	return fmt.Sprintf(
		"%d/%d/%s",
		organizationID,
		projectID,
		strings.ReplaceAll(profileID, "-", ""),
	)
}

// Write stores batch as the profile c of organizationID.
func Write(ctx context.Context, s storageutil.ObjectHandler, organizationID uint64, c Candidate, batch sample.Batch) error {
	return storageutil.CompressedWrite(ctx, s, StoragePath(organizationID, c.ProjectID, c.ProfileID), batch)
}

// Load reads every candidate through jobs and appends them, in candidate
// order, into a single batch. Missing profiles are skipped, other read
// errors are passed to onError and skipped as well. Only a done context
// aborts the load.
func Load(
	ctx context.Context,
	s storageutil.ObjectHandler,
	organizationID uint64,
	candidates []Candidate,
	jobs chan<- storageutil.ReadJob,
	onError func(error),
) (sample.Batch, LoadStats, error) {
	var stats LoadStats
	if err := ctx.Err(); err != nil {
		return sample.Batch{}, stats, err
	}
	results := make(chan storageutil.ReadJobResult, len(candidates))

	go func() {
		for i, c := range candidates {
			select {
			case <-ctx.Done():
				return
			case jobs <- ReadJob{
				Ctx:            ctx,
				Storage:        s,
				OrganizationID: organizationID,
				Candidate:      c,
				Index:          i,
				Result:         results,
			}:
			}
		}
	}()

	batches := make([]*sample.Batch, len(candidates))
	for range candidates {
		var res storageutil.ReadJobResult
		select {
		case <-ctx.Done():
			return sample.Batch{}, stats, ctx.Err()
		case res = <-results:
		}
		result, ok := res.(ReadJobResult)
		if !ok {
			continue
		}
		if err := result.Error(); err != nil {
			if errors.Is(err, storageutil.ErrObjectNotFound) {
				stats.Missing++
				continue
			}
			if ctx.Err() != nil {
				return sample.Batch{}, stats, ctx.Err()
			}
			stats.Failed++
			if onError != nil {
				onError(err)
			}
			continue
		}
		batches[result.Index] = result.Batch
		stats.Loaded++
	}

	var batch sample.Batch
	for _, b := range batches {
		if b != nil {
			batch.Append(*b)
		}
	}
	return batch, stats, nil
}
