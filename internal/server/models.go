package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// GenerateResponse carries the final artifact of a completed pipeline run.
// Remaining is the caller's slots left in the current quota window; -1 means
// the quota did not apply (admin bypass).
type GenerateResponse struct {
	Text      string `json:"text"`
	Rounds    int    `json:"rounds"`
	Remaining int    `json:"remaining"`
}

// QuotaExceededResponse is returned alongside a 429 status.
type QuotaExceededResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
}
