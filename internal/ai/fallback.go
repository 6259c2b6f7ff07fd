package ai

import (
	"context"
	"time"

	"doccontrol/api/internal/logger"
)

// Fallback routes every agent call to the primary gateway under a timeout and
// answers with the mock when the primary is absent, fails or times out.
type Fallback struct {
	primary Gateway
	mock    Gateway
	timeout time.Duration
	log     *logger.Logger
}

func NewFallback(primary, mock Gateway, timeout time.Duration, log *logger.Logger) *Fallback {
	if mock == nil {
		mock = NewMock()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fallback{primary: primary, mock: mock, timeout: timeout, log: log.With("component", "ai.fallback")}
}

func runWithFallback[R any](ctx context.Context, f *Fallback, agent Agent,
	live func(context.Context) (R, error),
	mock func(context.Context) (R, error),
	meta func(*R) *Meta,
) (R, error) {
	if f.primary == nil {
		return mock(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	out, err := live(callCtx)
	if err == nil {
		return out, nil
	}

	f.log.Warn("ai agent failed, using mock", "agent", agent, "error", err)
	fallback, mockErr := mock(ctx)
	if mockErr != nil {
		return fallback, mockErr
	}
	meta(&fallback).FallbackError = err.Error()
	return fallback, nil
}

func (f *Fallback) Analyze(ctx context.Context, in AnalysisInput) (AnalysisResult, error) {
	return runWithFallback(ctx, f, AgentAnalysis,
		func(ctx context.Context) (AnalysisResult, error) { return f.primary.Analyze(ctx, in) },
		func(ctx context.Context) (AnalysisResult, error) { return f.mock.Analyze(ctx, in) },
		func(r *AnalysisResult) *Meta { return &r.Meta })
}

func (f *Fallback) Restructure(ctx context.Context, in RestructureInput) (RestructureResult, error) {
	return runWithFallback(ctx, f, AgentFormatting,
		func(ctx context.Context) (RestructureResult, error) { return f.primary.Restructure(ctx, in) },
		func(ctx context.Context) (RestructureResult, error) { return f.mock.Restructure(ctx, in) },
		func(r *RestructureResult) *Meta { return &r.Meta })
}

func (f *Fallback) ReviewText(ctx context.Context, in ReviewInput) (ReviewResult, error) {
	return runWithFallback(ctx, f, AgentSpelling,
		func(ctx context.Context) (ReviewResult, error) { return f.primary.ReviewText(ctx, in) },
		func(ctx context.Context) (ReviewResult, error) { return f.mock.ReviewText(ctx, in) },
		func(r *ReviewResult) *Meta { return &r.Meta })
}

func (f *Fallback) GenerateChangelog(ctx context.Context, in ChangelogInput) (ChangelogResult, error) {
	return runWithFallback(ctx, f, AgentChangelog,
		func(ctx context.Context) (ChangelogResult, error) { return f.primary.GenerateChangelog(ctx, in) },
		func(ctx context.Context) (ChangelogResult, error) { return f.mock.GenerateChangelog(ctx, in) },
		func(r *ChangelogResult) *Meta { return &r.Meta })
}

func (f *Fallback) DetectSafety(ctx context.Context, in SafetyInput) (SafetyResult, error) {
	return runWithFallback(ctx, f, AgentSafety,
		func(ctx context.Context) (SafetyResult, error) { return f.primary.DetectSafety(ctx, in) },
		func(ctx context.Context) (SafetyResult, error) { return f.mock.DetectSafety(ctx, in) },
		func(r *SafetyResult) *Meta { return &r.Meta })
}

func (f *Fallback) ExtractReferences(ctx context.Context, in ExtractInput) (ExtractResult, error) {
	return runWithFallback(ctx, f, AgentCrossrefExtract,
		func(ctx context.Context) (ExtractResult, error) { return f.primary.ExtractReferences(ctx, in) },
		func(ctx context.Context) (ExtractResult, error) { return f.mock.ExtractReferences(ctx, in) },
		func(r *ExtractResult) *Meta { return &r.Meta })
}

func (f *Fallback) ValidateReferences(ctx context.Context, in ValidateInput) (ValidateResult, error) {
	return runWithFallback(ctx, f, AgentCrossrefValidate,
		func(ctx context.Context) (ValidateResult, error) { return f.primary.ValidateReferences(ctx, in) },
		func(ctx context.Context) (ValidateResult, error) { return f.mock.ValidateReferences(ctx, in) },
		func(r *ValidateResult) *Meta { return &r.Meta })
}
