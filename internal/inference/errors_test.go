package inference_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LiboWorks/bitrag/internal/inference"
)

func TestStage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&inference.PoolTimeoutError{Waited: "1s"}, "timeout"},
		{context.Canceled, "interrupted"},
		{fmt.Errorf("wrap: %w", inference.ErrInterrupted), "interrupted"},
		{&inference.ModelLoadError{Path: "m.gguf", Err: errors.New("x")}, "load"},
		{inference.ErrTokenization, "tokenize"},
		{&inference.DecodeError{Code: 1}, "decode"},
		{inference.ErrBatchFull, "decode"},
		{inference.ErrSampling, "sample"},
		{inference.ErrBackendInit, "config"},
		{inference.ErrIO, "io"},
		{&inference.StageError{Stage: "tokenize", Err: errors.New("bad")}, "tokenize"},
		{errors.New("mystery"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inference.Stage(tt.err), "Stage(%v)", tt.err)
	}
}

func TestDecodeErrorMessages(t *testing.T) {
	assert.Contains(t, (&inference.DecodeError{Code: 1}).Error(), "context full")
	assert.Equal(t, "decode failed with code -3", (&inference.DecodeError{Code: -3}).Error())
}

func TestPoolTimeoutError(t *testing.T) {
	err := &inference.PoolTimeoutError{Waited: "30s"}
	assert.Equal(t, "timeout waiting for context (30s)", err.Error())
	assert.True(t, inference.IsRetryable(fmt.Errorf("generate: %w", err)))
	assert.False(t, inference.IsRetryable(inference.ErrDecode))
}

func TestFormatChatPrompt(t *testing.T) {
	got := inference.FormatChatPrompt("Be brief.", "hi")
	assert.Equal(t, "<|system|>\nBe brief.</s>\n<|user|>\nhi</s>\n<|assistant|>\n", got)

	got = inference.FormatChatPrompt("  ", "hi")
	assert.Contains(t, got, inference.DefaultSystemPrompt)
}
