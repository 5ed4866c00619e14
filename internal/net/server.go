package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"gungnir/internal/engine"
	"gungnir/internal/utils"
)

const (
	MAX_RECV_SIZE      = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var ErrImproperConversion = errors.New("improper type conversion")

// Engine is the interface that provides access to order handling.
type Engine interface {
	Submit(request engine.Request) (engine.HandleResult, error)
	LogBook()
}

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

type Server struct {
	address            string
	port               int
	engine             Engine
	clock              engine.Clock
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage

	// Maps live order ids to the client that placed them, so execution
	// reports reach the resting counterparty of a crossing.
	orderClients map[uuid.UUID]string
}

func New(address string, port int, eng Engine) *Server {
	return &Server{
		address:        address,
		port:           port,
		engine:         eng,
		clock:          engine.SystemClock{},
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
		orderClients:   make(map[uuid.UUID]string),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Start the worker pool.
	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	// Start the session handler.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	// Start accepting connections.
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			// Add the client to client sessions we are tracking.
			// We expect to potentially maintain a long TCP session.
			s.addClientSession(conn)

			// Pass over the connection to be read from.
			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler reads off incoming messages from clients and handles
// high-level session logic. Messages are received from the pool of workers.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			if err := s.handleMessage(message); err != nil {
				log.Error().
					Err(err).
					Str("clientAddress", message.clientAddress).
					Msg("error handling message")
				s.reportError(message.clientAddress, err)
			}
		}
	}
}

func (s *Server) handleMessage(message ClientMessage) error {
	switch message.message.GetType() {
	case Heartbeat:
		return nil

	case NewOrder:
		order, ok := message.message.(NewOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		place, err := order.PlaceRequest()
		if err != nil {
			return err
		}
		result, err := s.engine.Submit(place)
		if err != nil {
			s.reportError(message.clientAddress, err)
			log.Error().
				Err(err).
				Str("clientAddress", message.clientAddress).
				Msg("error while placing order")
			return nil
		}
		s.trackOrder(result.OrderID, message.clientAddress)
		s.reportResult(message.clientAddress, result)

	case CancelOrder:
		order, ok := message.message.(CancelOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		result, err := s.engine.Submit(order.CancelRequest())
		if err != nil {
			s.reportError(message.clientAddress, err)
			log.Error().
				Err(err).
				Str("clientAddress", message.clientAddress).
				Stringer("orderID", order.OrderID).
				Msg("error while cancelling order")
			return nil
		}
		s.untrackOrder(order.OrderID)
		s.reportResult(message.clientAddress, result)

	case BookStatus:
		s.engine.LogBook()

	default:
		log.Error().
			Int("messageType", int(message.message.GetType())).
			Msg("invalid message type")
		return ErrInvalidMessageType
	}
	return nil
}

// reportResult fans a handled request back out: lifecycle events go to the
// requesting client, execution reports to whichever client owns each
// matched order. Orders fully consumed by the match are untracked.
func (s *Server) reportResult(clientAddress string, result engine.HandleResult) {
	for _, event := range result.Events {
		s.send(clientAddress, eventReport(event, s.clock.NowMillis()))
	}
	for _, trade := range result.Match.Trades {
		owner := s.orderOwner(trade.OrderID, clientAddress)
		s.send(owner, tradeReport(trade))
		if trade.Status == engine.Filled {
			s.untrackOrder(trade.OrderID)
		}
	}
}

func (s *Server) reportError(clientAddress string, err error) {
	s.send(clientAddress, errorReport(err, s.clock.NowMillis()))
}

// send writes one report frame to a client, reaping the session on a dead
// connection.
func (s *Server) send(clientAddress string, report Report) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return
	}
	if _, err := client.conn.Write(report.Serialize()); err != nil {
		log.Error().
			Err(err).
			Str("clientAddress", clientAddress).
			Msg("unable to send report")
		delete(s.clientSessions, clientAddress)
	}
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection, parses and passes it forward to
// sessionHandler to handle it. If the connection dies, the client session
// is cleaned up. Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	// Set max read timeout.
	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	select {
	case <-t.Dying():
		conn.Close()
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				// Nothing arrived within the window; requeue so the
				// session stays alive without pinning a worker.
				s.pool.AddTask(conn)
				return nil
			}
			// The client has likely exited. Clean up the session.
			s.deleteClientSession(conn.RemoteAddr().String())
			conn.Close()
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
			s.reportError(conn.RemoteAddr().String(), err)
			s.pool.AddTask(conn)
			return nil
		}

		// Pass over to the message handling buffer and exit this worker.
		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: conn.RemoteAddr().String(),
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}

func (s *Server) trackOrder(orderID uuid.UUID, clientAddress string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.orderClients[orderID] = clientAddress
}

func (s *Server) untrackOrder(orderID uuid.UUID) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.orderClients, orderID)
}

func (s *Server) orderOwner(orderID uuid.UUID, fallback string) string {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if owner, ok := s.orderClients[orderID]; ok {
		return owner
	}
	return fallback
}
