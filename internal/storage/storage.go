package storage

import (
	"context"
	"errors"

	"zapScope/internal/model"
)

// Journal is a sink for submission records.
type Journal interface {
	Record(ctx context.Context, rec model.SubmissionRecord) error
}

// Multi fans a record out to every journal and joins their errors.
type Multi []Journal

func (m Multi) Record(ctx context.Context, rec model.SubmissionRecord) error {
	var errs []error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
