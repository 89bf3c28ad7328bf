// Package pipeline turns one natural-language question into a presented
// outcome: translate, validate the table reference, execute.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/query"
	"github.com/querypilot/querypilot/internal/sqlident"
)

type Pipeline struct {
	Translator nl2sql.Translator
	Warehouse  query.Warehouse
	Logger     *slog.Logger
	// WarehouseTimeout bounds validation and execution together. Zero means
	// only the caller's context applies.
	WarehouseTimeout time.Duration
	Now              func() time.Time
}

// Run never returns an error: every failure is folded into the Outcome.
func (p *Pipeline) Run(ctx context.Context, question string) Outcome {
	start := p.now()
	outcome := p.run(ctx, question)
	outcome.Duration = p.now().Sub(start)
	observability.ObservePipelineOutcome(string(outcome.Kind), outcome.Duration)

	logger := p.logger().With("kind", outcome.Kind, "stage", outcome.Stage, "duration_ms", outcome.Duration.Milliseconds())
	if outcome.IsError() {
		logger.Warn("question pipeline failed", "error", outcome.Err)
	} else {
		logger.Info("question pipeline completed")
	}
	return outcome
}

func (p *Pipeline) run(ctx context.Context, question string) Outcome {
	outcome := Outcome{Question: question, Stage: StagePromptBuilt}
	if strings.TrimSpace(question) == "" {
		outcome.Kind = KindEmptyQuestion
		outcome.Message = EmptyQuestionMessage
		return outcome
	}

	translated, err := p.translate(ctx, question)
	outcome.Stage = StageLLMCalled
	if err != nil {
		outcome.Kind = KindLLMCallFailure
		outcome.Err = err
		outcome.Message = llmFailureMessage(err)
		return outcome
	}
	outcome.SQL = translated.SQL
	if p.Warehouse == nil {
		err := errors.New("warehouse is not configured")
		outcome.Kind = KindExecutionInfraError
		outcome.Err = err
		outcome.Message = executionInfraMessage(err)
		return outcome
	}

	if p.WarehouseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.WarehouseTimeout)
		defer cancel()
	}

	ref, found, err := sqlident.ExtractTableRef(outcome.SQL)
	outcome.Stage = StageIdentifierExtracted
	if err != nil {
		outcome.Kind = KindMalformedIdentifier
		outcome.Err = err
		outcome.Message = malformedIdentifierMessage(err)
		return outcome
	}
	if found {
		outcome.Ref = &ref
		if err := p.validate(ctx, ref); err != nil {
			outcome.Stage = StageValidated
			outcome.Err = err
			if errors.Is(err, query.ErrNotFound) {
				outcome.Kind = KindIdentifierNotFound
				outcome.Message = notFoundMessage(ref)
			} else {
				outcome.Kind = KindValidationInfraError
				outcome.Message = validationInfraMessage(ref, err)
			}
			return outcome
		}
		outcome.Stage = StageValidated
	} else {
		p.logger().Debug("no FROM clause in generated SQL, skipping validation")
	}

	result, err := p.Warehouse.Execute(ctx, outcome.SQL)
	observability.ObserveWarehouseCall("execute", err)
	outcome.Stage = StageExecuted
	if err != nil {
		outcome.Err = err
		if errors.Is(err, query.ErrBadRequest) {
			outcome.Kind = KindMalformedQuery
			outcome.Message = malformedQueryMessage(err)
		} else {
			outcome.Kind = KindExecutionInfraError
			outcome.Message = executionInfraMessage(err)
		}
		return outcome
	}
	if result.Empty() {
		outcome.Kind = KindEmpty
		outcome.Message = EmptyResultMessage
		return outcome
	}
	outcome.Kind = KindRows
	outcome.Table = &result
	return outcome
}

func (p *Pipeline) translate(ctx context.Context, question string) (nl2sql.Result, error) {
	if p.Translator == nil {
		return nl2sql.Result{}, errors.New("language model is not configured")
	}
	result, err := p.Translator.Translate(ctx, nl2sql.Request{Question: question})
	provider := result.Provider
	if provider == "" {
		provider = "unknown"
	}
	observability.ObserveTranslate(provider, err)
	if err != nil {
		return nl2sql.Result{}, err
	}
	p.logger().Debug("generated sql", "provider", result.Provider, "model", result.Model, "sql", result.SQL)
	return result, nil
}

// validate looks up the dataset, then the table inside it.
func (p *Pipeline) validate(ctx context.Context, ref sqlident.Ref) error {
	err := p.Warehouse.DatasetExists(ctx, ref.Dataset)
	observability.ObserveWarehouseCall("dataset_exists", err)
	if err != nil {
		return err
	}
	err = p.Warehouse.TableExists(ctx, ref.Dataset, ref.Table)
	observability.ObserveWarehouseCall("table_exists", err)
	return err
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
