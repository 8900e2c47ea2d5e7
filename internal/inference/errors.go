package inference

import "fmt"

// ClassificationError means no usable classification came back.
type ClassificationError struct {
	Reason string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err == nil {
		return "classification failed: " + e.Reason
	}
	return fmt.Sprintf("classification failed: %s: %v", e.Reason, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

type TranslationError struct {
	Reason string
	Err    error
}

func (e *TranslationError) Error() string {
	if e.Err == nil {
		return "translation failed: " + e.Reason
	}
	return fmt.Sprintf("translation failed: %s: %v", e.Reason, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

type InsightError struct {
	Reason string
	Err    error
}

func (e *InsightError) Error() string {
	if e.Err == nil {
		return "insight generation failed: " + e.Reason
	}
	return fmt.Sprintf("insight generation failed: %s: %v", e.Reason, e.Err)
}

func (e *InsightError) Unwrap() error { return e.Err }
