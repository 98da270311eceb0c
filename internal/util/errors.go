package util

import "errors"

var (
	ErrExerciseNotFound       = errors.New("exercise not found")
	ErrItemNotFound           = errors.New("exercise item not found")
	ErrAttemptNotFound        = errors.New("attempt not found")
	ErrAttemptAlreadyTerminal = errors.New("attempt already completed or abandoned")
	ErrItemAlreadyAnswered    = errors.New("item already answered")
	ErrInvalidAnswerShape     = errors.New("answer shape does not match exercise type")
	ErrInvalidAnswerKey       = errors.New("stored answer key does not match exercise type")
	ErrUnknownExerciseType    = errors.New("unknown exercise type")
	ErrInvalidExercise        = errors.New("invalid exercise definition")
	ErrExerciseTypeLocked     = errors.New("exercise type cannot change once items exist")
	ErrConcurrentUpdate       = errors.New("attempt was modified concurrently")
	ErrUnauthorized           = errors.New("attempt belongs to another student")
)
