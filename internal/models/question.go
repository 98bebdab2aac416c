package models

// Question is one entry of the promotion quiz pool. Choices are ordered;
// Correct is the zero-based index of the right choice.
type Question struct {
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
	Correct int      `json:"correct"`
}
