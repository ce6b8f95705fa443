package stocktake

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-apotek/internal/common"
)

func testService() *Service {
	return &Service{validate: validator.New()}
}

func TestApplyRejectsEmptyCounts(t *testing.T) {
	svc := testService()
	_, err := svc.Apply(context.Background(), TakeInput{}, "tester")
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "VALIDATION", appErr.Code)
}

func TestApplyRejectsMalformedBatchID(t *testing.T) {
	svc := testService()
	_, err := svc.Apply(context.Background(), TakeInput{
		Counts: []CountInput{{BatchID: "not-a-uuid", CountedQty: 10}},
	}, "tester")
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "VALIDATION", appErr.Code)
}

func TestApplyRejectsNegativeCount(t *testing.T) {
	svc := testService()
	_, err := svc.Apply(context.Background(), TakeInput{
		Counts: []CountInput{{BatchID: "49c7db00-8f8a-4f3e-9f53-0d9bd6f0a111", CountedQty: -1}},
	}, "tester")
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "VALIDATION", appErr.Code)
}

func TestApplyRejectsOverlongNotes(t *testing.T) {
	svc := testService()
	notes := make([]byte, 501)
	for i := range notes {
		notes[i] = 'x'
	}
	_, err := svc.Apply(context.Background(), TakeInput{
		Notes:  string(notes),
		Counts: []CountInput{{BatchID: "49c7db00-8f8a-4f3e-9f53-0d9bd6f0a111", CountedQty: 5}},
	}, "tester")
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "VALIDATION", appErr.Code)
}
