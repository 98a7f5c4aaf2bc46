package deploy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeat_Defaults(t *testing.T) {
	h, err := newHeartbeat(nil, nil)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, h.interval)
	require.Equal(t, "alive", h.message)
}

func TestHeartbeat_Options(t *testing.T) {
	h, err := newHeartbeat(json.RawMessage(`{"interval_ms":100,"message":"tick"}`), nil)
	require.NoError(t, err)
	require.Equal(t, 100*time.Millisecond, h.interval)
	require.Equal(t, "tick", h.message)
}

func TestHeartbeat_InvalidOptions(t *testing.T) {
	_, err := newHeartbeat(json.RawMessage(`{"interval_ms":-1}`), nil)
	require.Error(t, err)

	_, err = newHeartbeat(json.RawMessage(`{"interval_ms":`), nil)
	require.Error(t, err)
}

func TestHeartbeat_StartStop(t *testing.T) {
	registry := NewRegistry()
	RegisterBuiltins(registry, nil)

	d := New(registry, nil)

	id, err := d.Deploy(context.Background(), "heartbeat", json.RawMessage(`{"interval_ms":10,"ha":true}`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, d.Undeploy(ctx, id))
}
