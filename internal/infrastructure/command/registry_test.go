package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
)

func echoHandler(ctx context.Context, argv []string) (*service.CommandResult, error) {
	return &service.CommandResult{Success: true, Message: "ok"}, nil
}

func TestRegisterIsIdempotentBySignature(t *testing.T) {
	r := NewRegistry()
	spec := service.CommandSpec{Name: "ping", Description: "pings", Category: "test", Handler: echoHandler}
	require.NoError(t, r.Register(spec))
	require.NoError(t, r.Register(spec))
}

func TestRegisterConflictOnDifferentSignature(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(service.CommandSpec{Name: "ping", Description: "pings", Category: "test", Handler: echoHandler}))

	err := r.Register(service.CommandSpec{Name: "ping", Description: "something else", Category: "test", Handler: echoHandler})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCommandConflict))
}

func TestExecuteUnknownCommandNeverErrors(t *testing.T) {
	r := NewRegistry()
	res, err := r.Execute(context.Background(), []string{"nope"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "unknown command", res.Message)
}

func TestExecuteEmptyArgvNeverErrors(t *testing.T) {
	r := NewRegistry()
	res, err := r.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestExecuteDispatchesToHandler(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(service.CommandSpec{Name: "ping", Handler: echoHandler}))

	res, err := r.Execute(context.Background(), []string{"ping"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Message)
}
