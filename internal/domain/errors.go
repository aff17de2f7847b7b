package domain

import "errors"

var (
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrQuestionIndex indicates a question lookup outside the bank's range.
	ErrQuestionIndex = errors.New("question index out of range")
	// ErrNoQuestions indicates a bank with zero questions; a session cannot
	// be started on it.
	ErrNoQuestions = errors.New("question bank has no questions")
)
