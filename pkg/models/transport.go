package models

// URLAnalysisRequest asks for the analysis of an image referenced by URL
type URLAnalysisRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Category string `json:"category" binding:"required"`
	Subject  string `json:"subject,omitempty"`
	Context  string `json:"context,omitempty"`
}

// AnalysisResponse is the JSON shape of an analysis outcome
type AnalysisResponse struct {
	Status           ResultStatus `json:"status"`
	Category         string       `json:"category,omitempty"`
	Report           string       `json:"report,omitempty"`
	ReportHTML       string       `json:"report_html,omitempty"`
	FailureKind      string       `json:"failure_kind,omitempty"`
	Message          string       `json:"message,omitempty"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
}

// CategoryInfo describes one analysis category
type CategoryInfo struct {
	Name         string `json:"name"`
	SubjectLabel string `json:"subject_label"`
	ExtraSection string `json:"extra_section"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
