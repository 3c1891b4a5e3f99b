package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBService_Unreachable(t *testing.T) {
	_, err := NewDBService(context.Background(), "127.0.0.1", 1, "remi", "remi", "remi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping 127.0.0.1:1/remi")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDBService(ctx, "127.0.0.1", 1, "remi", "remi", "remi")
	assert.Error(t, err)
}
