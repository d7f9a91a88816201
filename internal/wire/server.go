package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/matching"
)

const (
	maxRecvSize        = 4 * 1024
	defaultWorkers     = 10
	defaultConnTimeout = time.Second
)

var ErrImproperConversion = errors.New("improper type conversion")

// Engine is the subset of MarketManager the wire front-end drives;
// kept as an interface so tests can fake it without a real book.
type Engine interface {
	AddOrder(o matching.Order) matching.ErrorCode
	DeleteOrder(orderID uint64) matching.ErrorCode
	ReduceOrder(orderID uint64, by matching.Quantity) matching.ErrorCode
	MitigateOrder(orderID uint64, newQuantity matching.Quantity) matching.ErrorCode
	ModifyOrder(orderID uint64, newPrice matching.Price, newQuantity matching.Quantity) matching.ErrorCode
	ReplaceOrder(orderID uint64, replacement matching.Order) matching.ErrorCode
}

type clientMessage struct {
	clientAddress string
	message       Message
}

// Server is a tomb-supervised TCP front-end over an Engine, the same
// accept-loop/worker-pool/session-handler shape as fenrir's
// internal/net.Server, generalized to the full order message set.
type Server struct {
	address string
	port    int
	engine  Engine
	pool    WorkerPool

	cancel context.CancelFunc

	sessionsLock sync.Mutex
	sessions     map[string]net.Conn

	inbox chan clientMessage
}

// New builds a wire server that dispatches parsed messages onto engine.
func New(address string, port int, engine Engine) *Server {
	return &Server{
		address:  address,
		port:     port,
		engine:   engine,
		pool:     NewWorkerPool(defaultWorkers),
		sessions: make(map[string]net.Conn),
		inbox:    make(chan clientMessage, 1),
	}
}

// Shutdown cancels the server's run context.
func (s *Server) Shutdown() {
	log.Info().Msg("wire server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens for connections until ctx is cancelled, supervising the
// worker pool and session handler under a single tomb.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("wire: listen: %w", err)
	}
	defer listener.Close()
	go func() {
		// Unblock Accept once the run context ends.
		<-ctx.Done()
		listener.Close()
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("wire server listening")
	for {
		select {
		case <-ctx.Done():
			return t.Wait()
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("accept failed")
				continue
			}
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.inbox:
			s.handleMessage(msg)
		}
	}
}

func (s *Server) handleMessage(msg clientMessage) {
	var report Report
	switch m := msg.message.(type) {
	case NewOrderMessage:
		report = Report{Code: s.engine.AddOrder(m.Order), OrderID: m.Order.ID}
	case CancelOrderMessage:
		report = Report{Code: s.engine.DeleteOrder(m.OrderID), OrderID: m.OrderID}
	case ReduceOrderMessage:
		report = Report{Code: s.engine.ReduceOrder(m.OrderID, m.By), OrderID: m.OrderID}
	case MitigateOrderMessage:
		report = Report{Code: s.engine.MitigateOrder(m.OrderID, m.NewQuantity), OrderID: m.OrderID}
	case ModifyOrderMessage:
		report = Report{Code: s.engine.ModifyOrder(m.OrderID, m.NewPrice, m.NewQuantity), OrderID: m.OrderID}
	case ReplaceOrderMessage:
		report = Report{Code: s.engine.ReplaceOrder(m.OldOrderID, m.Replacement), OrderID: m.Replacement.ID}
	case heartbeatMessage:
		return
	default:
		log.Error().Str("clientAddress", msg.clientAddress).Msg("unhandled message type")
		return
	}
	if !report.Code.Ok() {
		report.Err = report.Code.String()
	}
	s.reply(msg.clientAddress, &report)
}

func (s *Server) reply(clientAddress string, report *Report) {
	s.sessionsLock.Lock()
	conn, ok := s.sessions[clientAddress]
	s.sessionsLock.Unlock()
	if !ok {
		return
	}
	if _, err := conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("clientAddress", clientAddress).Msg("failed writing report")
		s.deleteSession(clientAddress)
	}
}

// handleConnection reads exactly one frame off conn, parses it onto
// the session inbox, and re-queues the connection for its next frame.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("failed setting connection deadline")
		s.deleteSession(conn.RemoteAddr().String())
		return nil
	}

	buf := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
	}

	n, err := conn.Read(buf)
	if err != nil {
		s.deleteSession(conn.RemoteAddr().String())
		return nil
	}

	message, err := ParseMessage(buf[:n])
	if err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed parsing frame")
		s.deleteSession(conn.RemoteAddr().String())
		return nil
	}

	s.inbox <- clientMessage{clientAddress: conn.RemoteAddr().String(), message: message}
	s.pool.AddTask(conn)
	return nil
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	s.sessions[conn.RemoteAddr().String()] = conn
}

func (s *Server) deleteSession(address string) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	delete(s.sessions, address)
}
