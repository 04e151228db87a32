package model

type SearchFilters struct {
	Keyword         string   `json:"keyword"`
	Location        string   `json:"location"`
	ExperienceLevel []string `json:"experience_level" validate:"dive,oneof=1 2 3 4 5 6"`
	Remote          []string `json:"remote" validate:"dive,oneof=1 2 3"`
	JobType         []string `json:"job_type" validate:"dive,oneof=F P C T O I"`
	EasyApply       bool     `json:"easy_apply"`
}
