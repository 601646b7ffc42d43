package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_CannedAndFallbackResponses(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddResponse("ping", "pong")
	m.SetFallback("default answer")

	resp, err := m.Complete(context.Background(), Request{Prompt: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Text)

	resp, err = m.Complete(context.Background(), Request{Prompt: "anything else"})
	require.NoError(t, err)
	assert.Equal(t, "default answer", resp.Text)

	assert.Equal(t, "test-model", m.Info().Name)
	assert.Equal(t, "mock", m.Info().Provider)
}

func TestMockModel_Errors(t *testing.T) {
	m := NewMockModel("test-model")

	_, err := m.Complete(context.Background(), Request{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Complete(ctx, Request{Prompt: "ping"})
	assert.ErrorIs(t, err, context.Canceled)
}
