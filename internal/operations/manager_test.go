package operations

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenocli/internal/errors"
	"phenocli/internal/shared/testutil"
)

// funcStage is a step backed by a function
type funcStage struct {
	BaseStage
	fn func(ctx context.Context, state *OperationState) error
}

func newFuncStage(id string, fn func(ctx context.Context, state *OperationState) error) *funcStage {
	return &funcStage{BaseStage: NewBaseStage(id, "stage "+id), fn: fn}
}

func (s *funcStage) Execute(ctx context.Context, state *OperationState) error {
	return s.fn(ctx, state)
}

func newManager(t *testing.T, steps ...Step) (*Manager, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	m := NewManager(logger, nil)
	for _, s := range steps {
		require.NoError(t, m.RegisterStep(s))
	}
	return m, handler
}

func TestManager_ExecutesInOrder(t *testing.T) {
	var order []string
	record := func(id string) Step {
		return newFuncStage(id, func(ctx context.Context, state *OperationState) error {
			order = append(order, id)
			return nil
		})
	}

	m, handler := newManager(t, record("a"), record("b"), record("c"))
	state := NewOperationState("run-1")

	require.NoError(t, m.Execute(context.Background(), state))

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, OperationStatusCompleted, state.GetStatus())
	for _, id := range order {
		assert.Equal(t, StepStatusCompleted, state.GetStage(id).GetStatus())
	}
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "all_stages_completed")
}

func TestManager_AbortsOnFirstError(t *testing.T) {
	cause := errors.NewDataIntegrityError("label A001 does not match")
	ranAfter := false

	m, handler := newManager(t,
		newFuncStage("ok", func(context.Context, *OperationState) error { return nil }),
		newFuncStage("bad", func(context.Context, *OperationState) error { return cause }),
		newFuncStage("after", func(context.Context, *OperationState) error { ranAfter = true; return nil }),
	)
	state := NewOperationState("run-2")

	err := m.Execute(context.Background(), state)
	require.Error(t, err)

	assert.False(t, ranAfter)
	assert.True(t, errors.IsType(err, errors.ErrTypeDataIntegrity), "cause stays reachable")

	var opErr *OperationError
	require.True(t, stderrors.As(err, &opErr))
	assert.Equal(t, "bad", opErr.Step)
	assert.Equal(t, ErrorTypeExecution, opErr.Type)
	assert.Contains(t, err.Error(), "label A001 does not match")

	assert.Equal(t, OperationStatusFailed, state.GetStatus())
	assert.Equal(t, StepStatusCompleted, state.GetStage("ok").GetStatus())
	assert.Equal(t, StepStatusFailed, state.GetStage("bad").GetStatus())
	assert.Equal(t, StepStatusSkipped, state.GetStage("after").GetStatus())
	assert.Len(t, state.GetFailedStages(), 1)
	testutil.AssertLogContains(t, handler, slog.LevelError, "stage_failed")
	testutil.AssertLogAttr(t, handler, "error_type", string(ErrorTypeExecution))
}

func TestManager_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m, _ := newManager(t,
		newFuncStage("first", func(context.Context, *OperationState) error { cancel(); return nil }),
		newFuncStage("second", func(context.Context, *OperationState) error { return nil }),
	)
	state := NewOperationState("run-3")

	err := m.Execute(ctx, state)

	assert.Equal(t, ErrorTypeCancellation, GetErrorType(err))
	assert.Equal(t, OperationStatusCancelled, state.GetStatus())
	assert.Equal(t, StepStatusSkipped, state.GetStage("second").GetStatus())
}

func TestManager_RegisterDuplicate(t *testing.T) {
	m := NewManager(nil, nil)
	step := newFuncStage("x", func(context.Context, *OperationState) error { return nil })

	require.NoError(t, m.RegisterStep(step))
	err := m.RegisterStep(step)
	assert.Equal(t, ErrorTypeFatal, GetErrorType(err))
	assert.Len(t, m.Steps(), 1)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "x", "msg"))

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"default message", "", "[execution] ingest: step execution failed: boom"},
		{"custom message", "read failed", "[execution] ingest: read failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError(stderrors.New("boom"), "ingest", tt.message)
			assert.Equal(t, tt.want, wrapped.Error())
			assert.Equal(t, ErrorTypeExecution, GetErrorType(wrapped))
		})
	}

	inner := NewFatalError("missing input", nil)
	again := WrapError(inner, "pivot", "outer")
	assert.Same(t, inner, again)
	assert.Equal(t, "pivot", again.Step)
	assert.Equal(t, "outer: missing input", again.Message)
}

func TestStepState_Lifecycle(t *testing.T) {
	s := NewStepState("ingest", "Data Ingestion")
	assert.Equal(t, StepStatusPending, s.GetStatus())
	assert.Zero(t, s.Duration())

	s.Start()
	assert.Equal(t, StepStatusActive, s.GetStatus())
	s.SetMetadata("records", 3)
	s.Complete()
	assert.Equal(t, StepStatusCompleted, s.GetStatus())
	assert.GreaterOrEqual(t, s.Duration().Nanoseconds(), int64(0))
	assert.Equal(t, 3, s.Metadata["records"])

	s.Skip("later failure")
	assert.Equal(t, "later failure", s.Message)
}
