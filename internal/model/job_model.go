package model

// JobDetails is a job posting as submitted by the user, before it is queued.
type JobDetails struct {
	Title       string `json:"title" validate:"required"`
	Company     string `json:"company"`
	Description string `json:"description" validate:"required"`
	URL         string `json:"url"`
}

// JobInput is a queued job posting. It is never mutated after creation.
type JobInput struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}
