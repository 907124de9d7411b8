package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"phenocli/internal/infrastructure"
)

// Manager runs a fixed list of steps in order and aborts on the first failure
type Manager struct {
	logger *slog.Logger
	steps  []Step
	tracer *StepTracer
}

// NewManager creates a manager. metrics may be nil.
func NewManager(logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		tracer: NewStepTracer(metrics),
	}
}

// RegisterStep appends a step to the execution order
func (m *Manager) RegisterStep(step Step) error {
	for _, existing := range m.steps {
		if existing.ID() == step.ID() {
			return NewFatalError(fmt.Sprintf("step %s already registered", step.ID()), nil)
		}
	}
	m.steps = append(m.steps, step)
	return nil
}

// Steps returns the registered steps in execution order
func (m *Manager) Steps() []Step {
	return append([]Step(nil), m.steps...)
}

// Execute runs every registered step against state
func (m *Manager) Execute(ctx context.Context, state *OperationState) error {
	for _, step := range m.steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	ctx, span := m.tracer.TraceOperation(ctx, state.ID, len(m.steps))
	defer span.End()

	state.Start()
	m.logger.InfoContext(ctx, "operation_started",
		slog.String("operation_id", state.ID),
		slog.Int("total_stages", len(m.steps)))

	for i, step := range m.steps {
		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("operation_id", state.ID),
				slog.String("Step", step.ID()))
			m.skipRemaining(state, i, "operation cancelled")
			state.Cancel()
			return NewCancellationError(step.ID(), err)
		}

		m.logger.InfoContext(ctx, "executing_stage",
			slog.String("operation_id", state.ID),
			slog.String("Step", step.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(m.steps)))

		if err := m.executeStage(ctx, state, step); err != nil {
			m.logger.ErrorContext(ctx, "stage_failed",
				slog.String("operation_id", state.ID),
				slog.String("Step", step.ID()),
				slog.String("error_type", string(GetErrorType(err))),
				slog.String("error", err.Error()))
			m.skipRemaining(state, i+1, fmt.Sprintf("Previous Step %s failed", step.ID()))
			state.Fail(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	state.Complete()
	m.logger.InfoContext(ctx, "all_stages_completed",
		slog.String("operation_id", state.ID),
		slog.Duration("duration", state.Duration()))
	return nil
}

// executeStage executes a single Step
func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError("Step state not found", nil)
	}

	stepCtx, span := m.tracer.TraceStep(ctx, state.ID, step)
	stepState.Start()

	start := time.Now()
	err := step.Execute(stepCtx, state)
	duration := time.Since(start)

	m.tracer.EndStep(stepCtx, span, step, duration, err)

	if err != nil {
		stepState.Fail(err)
		return WrapError(err, step.ID(), "")
	}

	stepState.Complete()
	m.logger.InfoContext(ctx, "stage_completed_successfully",
		slog.String("operation_id", state.ID),
		slog.String("Step", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

func (m *Manager) skipRemaining(state *OperationState, from int, reason string) {
	for _, step := range m.steps[from:] {
		if s := state.GetStage(step.ID()); s != nil {
			s.Skip(reason)
		}
	}
}
