package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

var (
	ErrFiltered    = errors.New("response blocked by content filter")
	ErrRateLimited = errors.New("rate limited")
	ErrTransient   = errors.New("transient provider error")
	ErrEmpty       = errors.New("empty response")
)

// ErrorClass tells the fallback ladder what to do with a failed call.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassRateLimit
	ClassTransient
	ClassFiltered
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassRateLimit:
		return "rate_limit"
	case ClassTransient:
		return "transient"
	case ClassFiltered:
		return "filtered"
	default:
		return "fatal"
	}
}

// Classify maps an error from any Chat or Analyzer to an ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	switch {
	case errors.Is(err, ErrFiltered):
		return ClassFiltered
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimit
	case errors.Is(err, ErrTransient), errors.Is(err, ErrEmpty), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	case errors.Is(err, context.Canceled):
		return ClassFatal
	}

	if code, status, ok := apiError(err); ok {
		switch {
		case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
			return ClassRateLimit
		case code >= 500 || code == http.StatusRequestTimeout:
			return ClassTransient
		case code == http.StatusNotFound:
			return ClassTransient
		}
		return ClassFatal
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "resource_exhausted"), strings.Contains(msg, "quota"):
		return ClassRateLimit
	case strings.Contains(msg, "safety"), strings.Contains(msg, "blocked"):
		return ClassFiltered
	}
	return ClassTransient
}

func apiError(err error) (int, string, bool) {
	var byValue genai.APIError
	if errors.As(err, &byValue) {
		return byValue.Code, byValue.Status, true
	}
	var byPtr *genai.APIError
	if errors.As(err, &byPtr) && byPtr != nil {
		return byPtr.Code, byPtr.Status, true
	}
	return 0, "", false
}
