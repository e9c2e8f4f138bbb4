package tcp

import (
	"net"
	"sync"

	"github.com/weft-web/weft/http/status"
)

type OnConn func(net.Conn)

// Server owns a listener and the set of its open connections. The set exists
// solely for lifecycle operations (bulk shutdown); per-request logic never
// touches it.
type Server struct {
	sock     net.Listener
	onConn   OnConn
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	shutdown bool
}

func NewServer(sock net.Listener, onConn OnConn) *Server {
	return &Server{
		sock:   sock,
		onConn: onConn,
		conns:  map[net.Conn]struct{}{},
	}
}

func (s *Server) Start() error {
	wg := new(sync.WaitGroup)

	for {
		conn, err := s.sock.Accept()
		if err != nil {
			wg.Wait()

			s.mu.Lock()
			wasShutdown := s.shutdown
			s.mu.Unlock()

			if wasShutdown {
				return status.ErrShutdown
			}

			return err
		}

		s.add(conn)
		wg.Add(1)
		go s.connHandler(wg, conn)
	}
}

// Stop shuts the listener and ALL the connections down.
func (s *Server) Stop() error {
	if err := s.stopListener(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		_ = conn.Close()
	}

	return nil
}

// GracefulShutdown stops the listener, leaving the connections free to end
// their lives peacefully.
func (s *Server) GracefulShutdown() error {
	return s.stopListener()
}

func (s *Server) stopListener() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	return s.sock.Close()
}

func (s *Server) add(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) remove(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) connHandler(wg *sync.WaitGroup, conn net.Conn) {
	s.onConn(conn)
	s.remove(conn)
	wg.Done()
}

// PauseAll stops accepting new connections on all the servers.
func PauseAll(servers []*Server) {
	for _, server := range servers {
		_ = server.GracefulShutdown()
	}
}

// StopAll tears down all the servers with their connections.
func StopAll(servers []*Server) {
	for _, server := range servers {
		_ = server.Stop()
	}
}
