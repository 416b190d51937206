package errors_test

import (
	// Go Internal Packages
	"context"
	"fmt"
	"testing"

	// Local Packages
	errors "tx-pipeline/errors"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	base := errors.E(errors.Aggregation, "missing merchant", nil)
	wrapped := fmt.Errorf("stage: %w", base)

	assert.Equal(t, errors.Aggregation, errors.KindOf(base))
	assert.Equal(t, errors.Aggregation, errors.KindOf(wrapped))
	assert.Equal(t, errors.Canceled, errors.KindOf(context.Canceled))
	assert.Equal(t, errors.Internal, errors.KindOf(fmt.Errorf("plain")))
	assert.Equal(t, errors.Kind(""), errors.KindOf(nil))
}

func TestIsKindWalksNestedErrors(t *testing.T) {
	inner := errors.E(errors.Conflict, "locked", nil)
	outer := errors.E(errors.Persistence, "save", inner)

	assert.True(t, errors.IsKind(outer, errors.Persistence))
	assert.True(t, errors.IsKind(outer, errors.Conflict))
	assert.False(t, errors.IsKind(outer, errors.Evaluation))
}

func TestValidationErrs(t *testing.T) {
	ve := errors.ValidationErrs()
	require.NoError(t, ve.Err())

	ve.Add("mongo.uri", "cannot be empty")
	ve.Add("application", "cannot be empty")
	ve.Add("application", "must be lowercase")

	err := ve.Err()
	require.Error(t, err)
	assert.Equal(t, errors.Invalid, errors.KindOf(err))
	assert.Equal(t, "application: cannot be empty, must be lowercase; mongo.uri: cannot be empty", err.Error())
}

func TestCanceledDetection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := errors.E(errors.Persistence, "insert", ctx.Err())

	assert.True(t, errors.IsCanceled(err))
	assert.Equal(t, errors.Persistence, errors.KindOf(err))
}
