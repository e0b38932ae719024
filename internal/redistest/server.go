// Package redistest provides an in-process Redis-compatible server for tests.
package redistest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raniellyferreira/redistmpl/protocol"
	"github.com/raniellyferreira/redistmpl/reply"
)

// HandlerFunc produces the reply for a command. args excludes the command name.
type HandlerFunc func(args [][]byte) reply.Node

// Server is a small RESP server backed by an in-memory keyspace. It speaks
// enough of the Redis command set to exercise clients end to end.
type Server struct {
	listener net.Listener
	clients  sync.Map // map[net.Conn]*Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	dbs      map[int]map[string]entry
	handlers map[string]HandlerFunc
	received []protocol.Command
	conns    int
}

type entry struct {
	str  []byte
	list [][]byte
	exp  time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

// Client represents a connected client
type Client struct {
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	server *Server
	db     int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer starts a server on a random loopback port
func NewServer() (*Server, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		listener: l,
		ctx:      ctx,
		cancel:   cancel,
		dbs:      make(map[int]map[string]entry),
		handlers: make(map[string]HandlerFunc),
	}

	s.wg.Add(1)
	go s.acceptConnections()

	return s, nil
}

// Start starts a server and stops it when the test ends
func Start(t testing.TB) *Server {
	t.Helper()
	s, err := NewServer()
	if err != nil {
		t.Fatalf("redistest: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

// Stop closes the listener and every client connection
func (s *Server) Stop() {
	s.cancel()
	_ = s.listener.Close()

	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})

	s.wg.Wait()
}

// Addr returns the listening address
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// HostPort returns the listening host and port
func (s *Server) HostPort() (string, int) {
	addr := s.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// Handle overrides the reply for a command name
func (s *Server) Handle(name string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[strings.ToUpper(name)] = fn
}

// Received returns every command received so far, in order
func (s *Server) Received() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Command, len(s.received))
	copy(out, s.received)
	return out
}

// Connections returns the number of accepted connections
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// Seed stores a string value in db
func (s *Server) Seed(db int, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyspace(db)[key] = entry{str: []byte(value)}
}

// Value returns a string value from db
func (s *Server) Value(db int, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(db, key)
	if !ok || e.list != nil {
		return "", false
	}
	return string(e.str), true
}

// TTL returns the remaining lifetime of a key, or zero when it has none
func (s *Server) TTL(db int, key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(db, key)
	if !ok || e.exp.IsZero() {
		return 0
	}
	return time.Until(e.exp)
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			// back off on accept errors such as EMFILE
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		delay = 0
		s.handleNewClient(conn)
	}
}

func (s *Server) handleNewClient(conn net.Conn) {
	s.mu.Lock()
	s.conns++
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		conn:   conn,
		reader: protocol.NewReader(conn),
		writer: protocol.NewWriter(conn),
		server: s,
		ctx:    ctx,
		cancel: cancel,
	}

	s.clients.Store(conn, client)

	s.wg.Add(1)
	go client.handle()
}

// Close closes the client connection
func (c *Client) Close() {
	c.cancel()
	_ = c.conn.Close()
	c.server.clients.Delete(c.conn)
}

func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()

	for {
		value, err := c.reader.ReadNext()
		if err != nil {
			if err == io.EOF || c.ctx.Err() != nil {
				return
			}
			c.write(reply.Error(fmt.Sprintf("ERR Protocol error: %v", err)))
			return
		}

		cmd, err := protocol.ParseCommand(value)
		if err != nil {
			c.write(reply.Error(fmt.Sprintf("ERR Protocol error: %v", err)))
			continue
		}

		if quit := c.executeCommand(cmd); quit {
			return
		}
	}
}

// executeCommand replies to cmd and reports whether the connection should close
func (c *Client) executeCommand(cmd *protocol.Command) bool {
	s := c.server
	s.mu.Lock()
	s.received = append(s.received, *cmd)
	override := s.handlers[cmd.Name]
	s.mu.Unlock()

	if override != nil {
		c.write(override(cmd.Args))
		return false
	}

	switch cmd.Name {
	case "PING":
		c.handlePing(cmd)
	case "ECHO":
		c.handleEcho(cmd)
	case "SELECT":
		c.handleSelect(cmd)
	case "GET":
		c.handleGet(cmd)
	case "SET":
		c.handleSet(cmd)
	case "SETEX":
		c.handleSetEx(cmd)
	case "DEL":
		c.handleDel(cmd)
	case "EXISTS":
		c.handleExists(cmd)
	case "APPEND":
		c.handleAppend(cmd)
	case "INCR":
		c.handleIncr(cmd)
	case "RPUSH":
		c.handleRPush(cmd)
	case "LRANGE":
		c.handleLRange(cmd)
	case "QUIT":
		c.write(reply.Status("OK"))
		return true
	default:
		c.write(reply.Error(fmt.Sprintf("ERR unknown command '%s'", strings.ToLower(cmd.Name))))
	}
	return false
}

func (c *Client) arity(cmd *protocol.Command, min int) bool {
	if len(cmd.Args) < min {
		c.write(reply.Error(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd.Name))))
		return false
	}
	return true
}

func (c *Client) handlePing(cmd *protocol.Command) {
	if len(cmd.Args) == 0 {
		c.write(reply.Status("PONG"))
		return
	}
	c.write(reply.Bulk(cmd.Args[0]))
}

func (c *Client) handleEcho(cmd *protocol.Command) {
	if !c.arity(cmd, 1) {
		return
	}
	c.write(reply.Bulk(cmd.Args[0]))
}

func (c *Client) handleSelect(cmd *protocol.Command) {
	if !c.arity(cmd, 1) {
		return
	}
	db, err := strconv.Atoi(string(cmd.Args[0]))
	if err != nil || db < 0 || db > 15 {
		c.write(reply.Error("ERR DB index is out of range"))
		return
	}
	c.db = db
	c.write(reply.Status("OK"))
}

func (c *Client) handleGet(cmd *protocol.Command) {
	if !c.arity(cmd, 1) {
		return
	}
	s := c.server
	s.mu.Lock()
	e, ok := s.lookup(c.db, string(cmd.Args[0]))
	s.mu.Unlock()

	switch {
	case !ok:
		c.write(reply.Nil())
	case e.list != nil:
		c.write(wrongType())
	default:
		c.write(reply.Bulk(e.str))
	}
}

func (c *Client) handleSet(cmd *protocol.Command) {
	if !c.arity(cmd, 2) {
		return
	}
	c.store(cmd.Args[0], cmd.Args[1], time.Time{})
	c.write(reply.Status("OK"))
}

func (c *Client) handleSetEx(cmd *protocol.Command) {
	if !c.arity(cmd, 3) {
		return
	}
	secs, err := strconv.Atoi(string(cmd.Args[1]))
	if err != nil || secs <= 0 {
		c.write(reply.Error("ERR invalid expire time in 'setex' command"))
		return
	}
	c.store(cmd.Args[0], cmd.Args[2], time.Now().Add(time.Duration(secs)*time.Second))
	c.write(reply.Status("OK"))
}

func (c *Client) handleDel(cmd *protocol.Command) {
	if !c.arity(cmd, 1) {
		return
	}
	s := c.server
	s.mu.Lock()
	var n int64
	for _, k := range cmd.Args {
		if _, ok := s.lookup(c.db, string(k)); ok {
			delete(s.keyspace(c.db), string(k))
			n++
		}
	}
	s.mu.Unlock()
	c.write(reply.Integer(n))
}

func (c *Client) handleExists(cmd *protocol.Command) {
	if !c.arity(cmd, 1) {
		return
	}
	s := c.server
	s.mu.Lock()
	var n int64
	for _, k := range cmd.Args {
		if _, ok := s.lookup(c.db, string(k)); ok {
			n++
		}
	}
	s.mu.Unlock()
	c.write(reply.Integer(n))
}

func (c *Client) handleAppend(cmd *protocol.Command) {
	if !c.arity(cmd, 2) {
		return
	}
	s := c.server
	s.mu.Lock()
	key := string(cmd.Args[0])
	e, ok := s.lookup(c.db, key)
	if ok && e.list != nil {
		s.mu.Unlock()
		c.write(wrongType())
		return
	}
	e.str = append(append([]byte{}, e.str...), cmd.Args[1]...)
	s.keyspace(c.db)[key] = e
	n := len(e.str)
	s.mu.Unlock()
	c.write(reply.Integer(int64(n)))
}

func (c *Client) handleIncr(cmd *protocol.Command) {
	if !c.arity(cmd, 1) {
		return
	}
	s := c.server
	s.mu.Lock()
	key := string(cmd.Args[0])
	e, _ := s.lookup(c.db, key)
	if e.list != nil {
		s.mu.Unlock()
		c.write(wrongType())
		return
	}
	var cur int64
	if e.str != nil {
		v, err := strconv.ParseInt(string(e.str), 10, 64)
		if err != nil {
			s.mu.Unlock()
			c.write(reply.Error("ERR value is not an integer or out of range"))
			return
		}
		cur = v
	}
	cur++
	e.str = strconv.AppendInt(nil, cur, 10)
	s.keyspace(c.db)[key] = e
	s.mu.Unlock()
	c.write(reply.Integer(cur))
}

func (c *Client) handleRPush(cmd *protocol.Command) {
	if !c.arity(cmd, 2) {
		return
	}
	s := c.server
	s.mu.Lock()
	key := string(cmd.Args[0])
	e, ok := s.lookup(c.db, key)
	if ok && e.list == nil {
		s.mu.Unlock()
		c.write(wrongType())
		return
	}
	for _, v := range cmd.Args[1:] {
		e.list = append(e.list, append([]byte{}, v...))
	}
	s.keyspace(c.db)[key] = e
	n := len(e.list)
	s.mu.Unlock()
	c.write(reply.Integer(int64(n)))
}

func (c *Client) handleLRange(cmd *protocol.Command) {
	if !c.arity(cmd, 3) {
		return
	}
	start, err1 := strconv.Atoi(string(cmd.Args[1]))
	stop, err2 := strconv.Atoi(string(cmd.Args[2]))
	if err1 != nil || err2 != nil {
		c.write(reply.Error("ERR value is not an integer or out of range"))
		return
	}

	s := c.server
	s.mu.Lock()
	e, ok := s.lookup(c.db, string(cmd.Args[0]))
	s.mu.Unlock()
	if ok && e.list == nil {
		c.write(wrongType())
		return
	}

	n := len(e.list)
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}

	elems := []reply.Node{}
	for i := start; i <= stop; i++ {
		elems = append(elems, reply.Bulk(e.list[i]))
	}
	c.write(reply.Array(elems...))
}

func (c *Client) store(key, value []byte, exp time.Time) {
	s := c.server
	s.mu.Lock()
	s.keyspace(c.db)[string(key)] = entry{str: append([]byte{}, value...), exp: exp}
	s.mu.Unlock()
}

func (c *Client) write(n reply.Node) {
	_ = c.writer.WriteNode(n)
	_ = c.writer.Flush()
}

// keyspace returns the map for db. Callers hold s.mu.
func (s *Server) keyspace(db int) map[string]entry {
	ks, ok := s.dbs[db]
	if !ok {
		ks = make(map[string]entry)
		s.dbs[db] = ks
	}
	return ks
}

// lookup returns a live entry, evicting it when expired. Callers hold s.mu.
func (s *Server) lookup(db int, key string) (entry, bool) {
	ks := s.keyspace(db)
	e, ok := ks[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(time.Now()) {
		delete(ks, key)
		return entry{}, false
	}
	return e, true
}

func wrongType() reply.Node {
	return reply.Error("WRONGTYPE Operation against a key holding the wrong kind of value")
}
