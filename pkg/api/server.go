// Package api exposes an administrative/inspection surface over gRPC:
// list active agents, read an agent's runtime status, publish an
// envelope on an agent's behalf, and a liveness probe. The retrieval
// pack carries no protoc toolchain output for a purpose-built service,
// so requests and responses are plain JSON-tagged structs carried over
// the jsonCodec (codec.go) instead of generated protobuf messages —
// still real gRPC: framing, streaming, metadata, and interceptors all
// apply, only the payload codec differs from a generated protobuf service.
package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/gagents/gagents/pkg/manager"
	"github.com/gagents/gagents/pkg/security"
	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/protobuf/types/known/anypb"
)

const serviceName = "gagents.admin.AgentAdmin"

// ListActiveAgentsRequest has no fields; every active agent in this
// process is returned.
type ListActiveAgentsRequest struct{}

type ListActiveAgentsResponse struct {
	AgentIDs []string `json:"agent_ids"`
}

type GetAgentStatusRequest struct {
	AgentID string `json:"agent_id"`
}

type GetAgentStatusResponse struct {
	AgentID      string `json:"agent_id"`
	Active       bool   `json:"active"`
	Version      int64  `json:"version"`
	MailboxDepth int    `json:"mailbox_depth"`
	ErrorCount   int64  `json:"error_count"`
	DroppedCount int64  `json:"dropped_count"`
}

type PublishEnvelopeRequest struct {
	AgentID       string            `json:"agent_id"`
	TypeURL       string            `json:"type_url"`
	PayloadValue  []byte            `json:"payload_value"`
	Direction     string            `json:"direction"`
	CorrelationID string            `json:"correlation_id"`
	Metadata      map[string]string `json:"metadata"`
}

type PublishEnvelopeResponse struct {
	Status string `json:"status"`
}

type HealthRequest struct{}

type HealthResponse struct {
	Status       string `json:"status"`
	ActiveAgents int    `json:"active_agents"`
}

// Server implements the admin/inspection service against a single
// process-wide ActorFactory.
type Server struct {
	factory *manager.ActorFactory
	grpc    *grpc.Server
}

// NewServer builds an admin server secured with mTLS client-certificate
// verification rooted at ca's certificate.
func NewServer(factory *manager.ActorFactory, ca *security.CertAuthority, serverCert *tls.Certificate) (*Server, error) {
	rootCert, err := x509.ParseCertificate(ca.GetRootCACert())
	if err != nil {
		return nil, fmt.Errorf("parse root CA certificate: %w", err)
	}
	certPool := x509.NewCertPool()
	certPool.AddCert(rootCert)

	tlsConfig := &tls.Config{
		ClientAuth:   tls.RequireAndVerifyClientCert,
		Certificates: []tls.Certificate{*serverCert},
		ClientCAs:    certPool,
		MinVersion:   tls.VersionTLS13,
	}

	grpcServer := grpc.NewServer(grpc.Creds(credentials.NewTLS(tlsConfig)))
	s := &Server{factory: factory, grpc: grpcServer}
	grpcServer.RegisterService(&serviceDesc, s)
	return s, nil
}

// NewReadOnlyServer builds an admin server with no transport security,
// intended for a local Unix socket listener: ReadOnlyInterceptor rejects
// PublishEnvelope so a local socket can never mutate agent state, only
// inspect it.
func NewReadOnlyServer(factory *manager.ActorFactory) *Server {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(ReadOnlyInterceptor()))
	s := &Server{factory: factory, grpc: grpcServer}
	grpcServer.RegisterService(&serviceDesc, s)
	return s
}

// Start listens on addr and serves until Stop is called.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

func (s *Server) listActiveAgents(ctx context.Context, req *ListActiveAgentsRequest) (*ListActiveAgentsResponse, error) {
	ids := s.factory.ActiveIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return &ListActiveAgentsResponse{AgentIDs: out}, nil
}

func (s *Server) getAgentStatus(ctx context.Context, req *GetAgentStatusRequest) (*GetAgentStatusResponse, error) {
	id, err := uuid.Parse(req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("invalid agent id %q: %w", req.AgentID, err)
	}
	rt, ok := s.factory.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: agent %s", types.ErrNotActive, req.AgentID)
	}
	return &GetAgentStatusResponse{
		AgentID:      req.AgentID,
		Active:       rt.IsActive(),
		Version:      rt.Version(),
		MailboxDepth: rt.MailboxDepth(),
		ErrorCount:   rt.ErrorCount(),
		DroppedCount: rt.DroppedCount(),
	}, nil
}

func (s *Server) publishEnvelope(ctx context.Context, req *PublishEnvelopeRequest) (*PublishEnvelopeResponse, error) {
	id, err := uuid.Parse(req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("invalid agent id %q: %w", req.AgentID, err)
	}
	rt, ok := s.factory.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: agent %s", types.ErrNotActive, req.AgentID)
	}

	direction, err := parseDirection(req.Direction)
	if err != nil {
		return nil, err
	}

	payload, err := s.factory.TypeRegistry().Unpack(&anypb.Any{TypeUrl: req.TypeURL, Value: req.PayloadValue})
	if err != nil {
		return nil, fmt.Errorf("unpack payload: %w", err)
	}

	if err := rt.Publish(payload, direction, req.CorrelationID, req.Metadata); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	return &PublishEnvelopeResponse{Status: "ok"}, nil
}

func (s *Server) health(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "healthy", ActiveAgents: s.factory.Len()}, nil
}

func parseDirection(s string) (types.Direction, error) {
	switch s {
	case "", "self", "SELF":
		return types.DirectionSelf, nil
	case "up", "UP":
		return types.DirectionUp, nil
	case "down", "DOWN":
		return types.DirectionDown, nil
	case "both", "BOTH":
		return types.DirectionBoth, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}
