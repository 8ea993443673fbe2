// Package server serves tender requests as one JSON document per connection over TCP or vsock.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mdlayher/vsock"
	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/receipt"
	"github.com/cloudx-io/opentender/tender"
	"github.com/cloudx-io/opentender/tenderapi"
)

// Supported listener networks.
const (
	NetworkTCP   = "tcp"
	NetworkVsock = "vsock"
)

const defaultReadTimeout = 30 * time.Second

// Options configures a Server.
type Options struct {
	MaxWorkers  int
	ReadTimeout time.Duration
	Metrics     *Metrics
}

// Server accepts connections, reads one request per connection and writes one response.
type Server struct {
	service     *tender.Service
	issuer      *receipt.Issuer
	logger      *zap.Logger
	metrics     *Metrics
	maxWorkers  int
	readTimeout time.Duration
	routes      map[string]handlerFunc
}

// New creates a Server. A nil Metrics gets a fresh, unregistered instance.
func New(service *tender.Service, issuer *receipt.Issuer, logger *zap.Logger, opts Options) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("tender service is required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("receipt issuer is required")
	}
	if opts.MaxWorkers <= 0 {
		return nil, fmt.Errorf("max workers must be positive, got %d", opts.MaxWorkers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}

	s := &Server{
		service:     service,
		issuer:      issuer,
		logger:      logger,
		metrics:     opts.Metrics,
		maxWorkers:  opts.MaxWorkers,
		readTimeout: opts.ReadTimeout,
	}
	s.routes = s.handlers()
	return s, nil
}

// Listen opens a listener on network: addr is used for tcp, port for vsock.
func Listen(network, addr string, port uint32) (net.Listener, error) {
	switch network {
	case NetworkTCP:
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		return l, nil
	case NetworkVsock:
		l, err := vsock.Listen(port, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported listen network %q", network)
	}
}

// Serve accepts connections on l until ctx is cancelled. Connections arriving while every
// worker is busy are closed immediately.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("failed to close listener", zap.Error(err))
		}
	}()

	semaphore := make(chan struct{}, s.maxWorkers)
	s.logger.Info("server listening",
		zap.String("addr", l.Addr().String()),
		zap.Int("max_workers", s.maxWorkers))

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("failed to accept connection", zap.Error(err))
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			s.metrics.IncConnectionsRejected()
			s.logger.Warn("no workers available, rejecting connection")
			if err := conn.Close(); err != nil {
				s.logger.Error("failed to close rejected connection", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in handleConnection", zap.Any("panic", r), zap.Stack("stack"))
		}
		if err := conn.Close(); err != nil {
			s.logger.Debug("failed to close connection", zap.Error(err))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		s.logger.Error("failed to read request", zap.Error(err))
		return
	}

	response := s.Handle(ctx, buf.Bytes())

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// Handle decodes one raw request, dispatches it by type and returns the response document.
func (s *Server) Handle(ctx context.Context, raw []byte) any {
	start := time.Now()

	var base tenderapi.BaseRequest
	if err := json.Unmarshal(raw, &base); err != nil {
		s.metrics.ObserveRequest("invalid", StatusFailure, time.Since(start).Seconds())
		return tenderapi.NewErrorResponse(fmt.Sprintf("Failed to decode request: %v", err))
	}

	handler, ok := s.routes[base.Type]
	if !ok {
		s.metrics.ObserveRequest("unknown", StatusFailure, time.Since(start).Seconds())
		return tenderapi.NewErrorResponse(fmt.Sprintf("Unknown request type: %s", base.Type))
	}

	response, err := handler(ctx, raw)
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		s.logger.Warn("request failed", zap.String("type", base.Type), zap.Error(err))
		response = tenderapi.NewErrorResponse(err.Error())
	} else {
		s.logger.Debug("request handled", zap.String("type", base.Type), zap.Duration("elapsed", time.Since(start)))
	}
	s.metrics.ObserveRequest(base.Type, status, time.Since(start).Seconds())
	return response
}
