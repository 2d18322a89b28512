package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/quarkscript/debug-go/pkg/debug"
	"github.com/quarkscript/debug-go/pkg/event"
)

type stubHost struct{}

func (stubHost) Evaluate(frame *event.Frame, expression string) (interface{}, error) {
	return expression, nil
}

func dialTestServer(t *testing.T) (*debug.Session, *Server, *websocket.Conn, string) {
	t.Helper()
	session := debug.NewSession(stubHost{})
	server := NewServer(session)
	ts := httptest.NewServer(server)
	t.Cleanup(func() {
		server.Close()
		session.Close()
		ts.Close()
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return session, server, conn, url
}

// pump stands in for the execution thread: it drains commands until the
// test finishes.
func pump(t *testing.T, session *debug.Session) {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				session.ProcessPendingCommands()
			}
		}
	}()
}

func readResponse(t *testing.T, conn *websocket.Conn, requestSeq int64) gjson.Result {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		r := gjson.ParseBytes(data)
		if r.Get("type").String() == "response" && r.Get("request_seq").Int() == requestSeq {
			return r
		}
	}
}

func TestCommandRoundTrip(t *testing.T) {
	session, server, conn, _ := dialTestServer(t)
	pump(t, session)

	if !waitFor(func() bool { return server.IsConnected() }) {
		t.Fatal("server never saw the client")
	}

	cmd := `{"seq":1,"type":"request","command":"setbreakpoint","arguments":{"type":"scriptName","target":"demo.qs","line":3}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	resp := readResponse(t, conn, 1)
	if !resp.Get("success").Bool() {
		t.Fatalf("response = %s", resp.Raw)
	}
	id := int(resp.Get("body.breakpoint").Int())
	if _, ok := session.Breakpoints().Get(id); !ok {
		t.Fatalf("breakpoint %d not registered", id)
	}
}

func TestSuspendTakesEffectBeforeDraining(t *testing.T) {
	session, _, conn, _ := dialTestServer(t)

	// No pump: the command queue is never drained here, so only the
	// transport's suspend fast path can arm the break request.
	cmd := `{"seq":7,"type":"request","command":"suspend"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	if !waitFor(func() bool { return session.BreakRequested() }) {
		t.Fatal("suspend did not arm the break request")
	}
}

func TestSecondClientIsRejected(t *testing.T) {
	_, server, _, url := dialTestServer(t)
	if !waitFor(func() bool { return server.IsConnected() }) {
		t.Fatal("first client never attached")
	}

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("second Dial: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := second.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if gjson.GetBytes(data, "body.message").String() != "debugger already attached" {
		t.Fatalf("rejection message = %s", data)
	}
	if _, _, err := second.ReadMessage(); err == nil {
		t.Fatal("second connection stayed open")
	}
}

func TestMalformedCommandGetsErrorResponse(t *testing.T) {
	session, _, conn, _ := dialTestServer(t)
	pump(t, session)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"seq":3,`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	r := gjson.ParseBytes(data)
	if r.Get("success").Bool() || r.Get("message").String() == "" {
		t.Fatalf("response = %s", data)
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
