package pipeline

import (
	"fmt"
	"time"

	"github.com/querypilot/querypilot/internal/query"
	"github.com/querypilot/querypilot/internal/sqlident"
)

type Kind string

const (
	KindRows                 Kind = "rows"
	KindEmpty                Kind = "empty"
	KindEmptyQuestion        Kind = "empty_question"
	KindLLMCallFailure       Kind = "llm_call_failure"
	KindMalformedIdentifier  Kind = "malformed_identifier"
	KindIdentifierNotFound   Kind = "identifier_not_found"
	KindValidationInfraError Kind = "validation_infra_error"
	KindMalformedQuery       Kind = "malformed_query"
	KindExecutionInfraError  Kind = "execution_infra_error"
)

// Stage is the last step a run reached before presenting its outcome.
type Stage string

const (
	StagePromptBuilt         Stage = "prompt_built"
	StageLLMCalled           Stage = "llm_called"
	StageIdentifierExtracted Stage = "identifier_extracted"
	StageValidated           Stage = "validated"
	StageExecuted            Stage = "executed"
)

const (
	EmptyResultMessage   = "Query executed successfully, but no results were found."
	EmptyQuestionMessage = "Please enter a question."
)

// Outcome is the discriminated result of one pipeline run. Table is set only
// for KindRows; Message carries the user-facing text for every other kind.
type Outcome struct {
	Question string
	SQL      string
	Stage    Stage
	Kind     Kind
	Message  string
	Table    *query.Result
	Ref      *sqlident.Ref
	Err      error
	Duration time.Duration
}

// IsError reports whether the run failed. Empty results are not failures.
func (o Outcome) IsError() bool {
	switch o.Kind {
	case KindRows, KindEmpty:
		return false
	default:
		return true
	}
}

// Text is the single line shown to the user when no table is rendered.
func (o Outcome) Text() string {
	if o.Kind == KindRows && o.Table != nil {
		return fmt.Sprintf("%d rows", len(o.Table.Rows))
	}
	return o.Message
}

func llmFailureMessage(err error) string {
	return fmt.Sprintf("Error generating SQL query: %v", err)
}

func notFoundMessage(ref sqlident.Ref) string {
	return fmt.Sprintf("Error: Dataset or table '%s' does not exist.", ref.String())
}

func malformedIdentifierMessage(err error) string {
	return fmt.Sprintf("Error: Could not read the table reference in the generated SQL: %v", err)
}

func validationInfraMessage(ref sqlident.Ref, err error) string {
	return fmt.Sprintf("Error validating dataset or table '%s': %v", ref.String(), err)
}

func malformedQueryMessage(err error) string {
	return fmt.Sprintf("Error querying BigQuery: %v", err)
}

func executionInfraMessage(err error) string {
	return fmt.Sprintf("Unexpected error: %v", err)
}
