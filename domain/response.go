package domain

// ErrorResponse is the uniform error body served by the API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitAnalysisResponse is returned by the upload and remote endpoints once
// a run completes and its record is persisted.
type SubmitAnalysisResponse struct {
	Status         string  `json:"status"`
	Message        string  `json:"message"`
	AnalysisID     string  `json:"analysis_id"`
	Filename       string  `json:"filename"`
	Duration       float64 `json:"duration"`
	ProcessingTime float64 `json:"processing_time"`
}

// ListAnalysesResponse pages through persisted records; Total is the full
// unfiltered count, independent of the pagination window.
type ListAnalysesResponse struct {
	Total   int64             `json:"total"`
	Skip    int64             `json:"skip"`
	Limit   int64             `json:"limit"`
	Results []*AnalysisRecord `json:"results"`
}
