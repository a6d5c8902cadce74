package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestServer connects and completes the auth challenge
func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var challenge AuthChallenge
	require.NoError(t, conn.ReadJSON(&challenge))
	require.Equal(t, "auth.challenge", challenge.Event)

	require.NoError(t, conn.WriteJSON(AuthResponse{
		Method:    "auth.response",
		Signature: computeHMAC(challenge.Challenge, "test-secret"),
	}))

	var result AuthResult
	require.NoError(t, conn.ReadJSON(&result))
	require.True(t, result.Success)

	return conn
}

func TestServer_WebSocketAuthFlow(t *testing.T) {
	server, _, _ := newTestServer(t)

	t.Run("bad signature is rejected", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
		defer ts.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
		require.NoError(t, err)
		defer conn.Close()

		var challenge AuthChallenge
		require.NoError(t, conn.ReadJSON(&challenge))

		require.NoError(t, conn.WriteJSON(AuthResponse{
			Method:    "auth.response",
			Signature: "not-a-signature",
		}))

		var result AuthResult
		require.NoError(t, conn.ReadJSON(&result))
		assert.False(t, result.Success)
	})

	t.Run("unauthenticated requests are refused", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
		defer ts.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
		require.NoError(t, err)
		defer conn.Close()

		var challenge AuthChallenge
		require.NoError(t, conn.ReadJSON(&challenge))

		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"id":"req-1","method":"getLeadData","params":{"leadId":"x"}}`)))

		var resp RPCResponse
		require.NoError(t, conn.ReadJSON(&resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, Unauthorized, resp.Error.Code)
	})
}

func TestServer_PipelinedResponses(t *testing.T) {
	server, _, _ := newTestServer(t)

	// A slow handler keeps many response goroutines in flight at once, so
	// responses and broadcasts contend for the same connection.
	require.NoError(t, server.RegisterMethod("slowEcho", nil, nil,
		func(_ context.Context, _ Principal, params map[string]interface{}) (interface{}, error) {
			time.Sleep(5 * time.Millisecond)
			return params["n"], nil
		}))

	conn := dialTestServer(t, server)

	const requests = 50
	for i := 0; i < requests; i++ {
		req := fmt.Sprintf(`{"id":"req-%d","method":"slowEcho","params":{"n":%d},"principal":{"id":"op-1"}}`, i, i)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(req)))
	}

	stopBroadcasting := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopBroadcasting:
				return
			default:
				server.Broadcast("heartbeat", map[string]interface{}{"at": time.Now().UnixMilli()})
			}
		}
	}()
	defer close(stopBroadcasting)

	seen := make(map[string]bool)
	deadline := time.Now().Add(10 * time.Second)
	for len(seen) < requests {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, message, err := conn.ReadMessage()
		require.NoError(t, err)

		// Every frame must be intact JSON whether it is a response or a
		// broadcast event.
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(message, &frame))
		if _, isEvent := frame["event"]; isEvent {
			continue
		}

		var resp RPCResponse
		require.NoError(t, json.Unmarshal(message, &resp))
		require.Nil(t, resp.Error, "request %s failed", resp.ID)
		assert.False(t, seen[resp.ID], "duplicate response for %s", resp.ID)
		seen[resp.ID] = true
	}

	assert.Len(t, seen, requests)
}
