package model

type Resume struct {
	Text     string `json:"text"`
	FileName string `json:"file_name"`
}
