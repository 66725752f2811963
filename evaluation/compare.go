package evaluation

import (
	"context"

	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

const (
	minCompareRuns = 2
	maxCompareRuns = 10
)

// RunComparison lines up several runs of the same dataset at the same k.
type RunComparison struct {
	DatasetID string
	K         int
	Runs      []ComparedRun
}

// ComparedRun is one run's aggregates plus its per-case results.
type ComparedRun struct {
	Run     model.EvaluationRun
	Results []model.TestCaseResult
}

// Compare loads the named runs and validates they are comparable: all
// COMPLETED, same dataset, same k, between 2 and 10 of them.
func Compare(ctx context.Context, store RunStore, runIDs []string) (RunComparison, error) {
	if len(runIDs) < minCompareRuns || len(runIDs) > maxCompareRuns {
		return RunComparison{}, errors.Validationf(
			"comparison needs between %d and %d runs, got %d", minCompareRuns, maxCompareRuns, len(runIDs))
	}

	var cmp RunComparison
	for i, id := range runIDs {
		run, err := store.GetRun(ctx, id)
		if err != nil {
			return RunComparison{}, err
		}
		if run.Status != model.RunCompleted {
			return RunComparison{}, errors.InvalidStatef("run %s is %s, only completed runs compare", run.ID, run.Status)
		}
		if i == 0 {
			cmp.DatasetID = run.DatasetID
			cmp.K = run.K
		} else {
			if run.DatasetID != cmp.DatasetID {
				return RunComparison{}, errors.Validationf(
					"run %s belongs to dataset %s, expected %s", run.ID, run.DatasetID, cmp.DatasetID)
			}
			if run.K != cmp.K {
				return RunComparison{}, errors.Validationf(
					"run %s uses k=%d, expected k=%d", run.ID, run.K, cmp.K)
			}
		}
		results, err := store.ListResults(ctx, run.ID)
		if err != nil {
			return RunComparison{}, err
		}
		cmp.Runs = append(cmp.Runs, ComparedRun{Run: run, Results: results})
	}
	return cmp, nil
}
