package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassNone},
		{"filtered sentinel", fmt.Errorf("x: %w", ErrFiltered), ClassFiltered},
		{"rate sentinel", fmt.Errorf("x: %w", ErrRateLimited), ClassRateLimit},
		{"empty", ErrEmpty, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"canceled", context.Canceled, ClassFatal},
		{"api 429", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, ClassRateLimit},
		{"api 429 ptr", &genai.APIError{Code: 429}, ClassRateLimit},
		{"api 503", fmt.Errorf("wrapped: %w", genai.APIError{Code: 503}), ClassTransient},
		{"api 400", genai.APIError{Code: 400}, ClassFatal},
		{"string quota", errors.New("quota exceeded"), ClassRateLimit},
		{"unknown", errors.New("connection reset"), ClassTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "hello", CleanReply("<think>plan</think>\n \"hello\""))
	assert.Equal(t, "a \"b\" c", CleanReply("a \"b\" c"))
	assert.Equal(t, `"one" and "two"`, CleanReply(`"one" and "two"`))
	assert.Equal(t, "hi", CleanReply("“hi”"))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 3, HistoryTokens([]Message{{Content: "abcd"}, {Content: "abcdefgh"}}))
}

func TestHistoryConversion(t *testing.T) {
	in := []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleModel, Content: "hey"}}
	assert.Equal(t, in, fromContents(toContents(in)))
}
