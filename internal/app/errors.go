package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrFileRequired     = errors.New("file is required")
	ErrFileEmpty        = errors.New("uploaded file is empty")
	ErrFileTooLarge     = errors.New("uploaded file is too large")
	ErrFileNotFound     = errors.New("file not found")
	ErrQuestionEmpty    = errors.New("question is empty")
	ErrLLMNotConfigured = errors.New("llm is not configured")
	ErrEnqueue          = errors.New("job enqueue failed")
)
