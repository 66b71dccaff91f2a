package sentencetest

import (
	"testing"

	"github.com/blue-robotics/nmea-bridge/sentence"
	"github.com/stretchr/testify/assert"
)

// AssertSentence checks that actual has the expected wire type and fields,
// ignoring Raw and Received which vary run to run.
func AssertSentence(t *testing.T, expectType string, expectFields []string, actual sentence.Sentence) {
	assert.Equal(t, expectType, actual.Type)
	assert.Equal(t, expectFields, actual.Fields)
}

// AssertFieldAt asserts the field at index i, using Sentence.Field's
// bounds-safe access so an assertion against a too-short sentence fails
// with a clear mismatch instead of panicking.
func AssertFieldAt(t *testing.T, expect string, actual sentence.Sentence, i int) {
	assert.Equal(t, expect, actual.Field(i))
}
