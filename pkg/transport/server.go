// Package transport exposes a debugger session over a WebSocket endpoint.
package transport

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quarkscript/debug-go/pkg/debug"
	"github.com/quarkscript/debug-go/pkg/event"
	"github.com/quarkscript/debug-go/pkg/protocol"
)

// Server accepts one debugger client at a time and bridges it to a session:
// inbound frames are queued as commands for the execution thread, responses
// and events flow back over the outbound queue.
type Server struct {
	session *debug.Session
	debug   bool

	upgrader websocket.Upgrader

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool

	outbound chan []byte
	done     chan struct{}
	closed   sync.Once
}

// NewServer creates a server for the given session and installs itself as
// the session's message handler.
func NewServer(session *debug.Session) *Server {
	s := &Server{
		session: session,
		debug:   session.Config().Debug,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		outbound: make(chan []byte, 100),
		done:     make(chan struct{}),
	}
	session.SetMessageHandler(s.deliver)
	return s
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.debug {
			log.Printf("[QuarkScript Debug] Upgrade failed: %v", err)
		}
		return
	}

	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"event","event":"error","body":{"message":"debugger already attached"}}`))
		conn.Close()
		return
	}
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	if s.debug {
		log.Printf("[QuarkScript Debug] Debugger attached from %s", r.RemoteAddr)
	}

	s.runMessageLoop(conn)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.connected = false
	}
	s.mu.Unlock()
	conn.Close()

	if s.debug {
		log.Println("[QuarkScript Debug] Debugger detached")
	}
}

// Close shuts the server down and drops the attached client.
func (s *Server) Close() {
	s.closed.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}

// IsConnected reports whether a debugger client is attached.
func (s *Server) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Server) runMessageLoop(conn *websocket.Conn) {
	heartbeatTicker := time.NewTicker(30 * time.Second)
	defer heartbeatTicker.Stop()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if s.debug && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("[QuarkScript Debug] Read error: %v", err)
				}
				return
			}
			s.handleCommand(message)
		}
	}()

	for {
		select {
		case <-s.done:
			return
		case <-readDone:
			return
		case <-heartbeatTicker.C:
			conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case msg := <-s.outbound:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if s.debug {
					log.Printf("[QuarkScript Debug] Write error: %v", err)
				}
				return
			}
		}
	}
}

// handleCommand runs on the read goroutine, which is a control thread from
// the session's point of view. A suspend command takes effect here, before
// queueing, so a running execution halts at its next safe point even while
// no command is being drained.
func (s *Server) handleCommand(data []byte) {
	if protocol.CommandName(data) == protocol.CmdSuspend {
		s.session.RequestBreak()
	}
	if err := s.session.SendCommand(data, nil); err != nil {
		if s.debug {
			log.Printf("[QuarkScript Debug] Command rejected: %v", err)
		}
	}
}

// deliver queues an outbound message, dropping the oldest when the client
// cannot keep up.
func (s *Server) deliver(m *event.Message) {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	if !connected {
		return
	}

	select {
	case s.outbound <- m.Body:
	default:
		select {
		case <-s.outbound:
		default:
		}
		s.outbound <- m.Body
	}
}
