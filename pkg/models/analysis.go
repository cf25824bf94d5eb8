package models

import (
	stderrors "errors"

	apperrors "go-fieldfix/internal/errors"
)

// ResultStatus tells whether an analysis produced a report
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailure ResultStatus = "failure"
)

// AnalysisResult is the outcome of one analysis: either the report text or a
// typed failure. It is a value type and is never modified after construction.
type AnalysisResult struct {
	Status      ResultStatus        `json:"status"`
	Text        string              `json:"text,omitempty"`
	FailureKind apperrors.ErrorType `json:"failure_kind,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// Success creates a successful result carrying the report text
func Success(text string) AnalysisResult {
	return AnalysisResult{Status: StatusSuccess, Text: text}
}

// Failure creates a failed result
func Failure(kind apperrors.ErrorType, message string) AnalysisResult {
	return AnalysisResult{Status: StatusFailure, FailureKind: kind, Message: message}
}

// FailureFromError converts an error into a failed result. AppErrors keep their
// type and message; the cause is not exposed to users.
func FailureFromError(err error) AnalysisResult {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return Failure(appErr.Type, appErr.Message)
	}
	return Failure(apperrors.ErrorTypeInternal, "unexpected error")
}

// IsSuccess reports whether the result carries a report
func (r AnalysisResult) IsSuccess() bool {
	return r.Status == StatusSuccess
}
