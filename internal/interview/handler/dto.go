package handler

import "github.com/voicetyped/interviewer/internal/interview"

// StartInterviewRequest is the body of POST /api/v1/interviews.
// Raw résumé and job description texts are summarized when no summary is
// given.
type StartInterviewRequest struct {
	Profile       string            `json:"profile,omitempty"`
	ResumeSummary string            `json:"resume_summary,omitempty"`
	JDSummary     string            `json:"jd_summary,omitempty"`
	ResumeText    string            `json:"resume_text,omitempty"`
	JDText        string            `json:"jd_text,omitempty"`
	Variables     map[string]string `json:"variables,omitempty"`
}

// SummaryRequest is the body of POST /api/v1/summaries.
type SummaryRequest struct {
	ResumeText string `json:"resume_text,omitempty"`
	JDText     string `json:"jd_text,omitempty"`
}

// SummaryResponse carries the generated summaries.
type SummaryResponse struct {
	ResumeSummary string `json:"resume_summary,omitempty"`
	JDSummary     string `json:"jd_summary,omitempty"`
}

// InterviewResponse wraps a session snapshot.
type InterviewResponse struct {
	Interview interview.View `json:"interview"`
}

// ExchangesResponse is an interview transcript in turn order.
type ExchangesResponse struct {
	Exchanges []interview.Exchange `json:"exchanges"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
