// Package client is a thin Go SDK over the admin gRPC surface (pkg/api):
// list active agents, read one agent's runtime status, publish an
// envelope on an agent's behalf, and probe liveness. Grounded on the
// common Go gRPC client wrapper shape (one method per RPC, a short
// context.Context timeout per call) but dialing the jsonCodec admin
// service instead of a generated protobuf client.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/gagents/gagents/pkg/api"
	"github.com/gagents/gagents/pkg/security"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Client wraps an admin gRPC connection to a single agent host process.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient dials addr with mTLS, loading the CLI certificate and CA
// root from certDir. Callers must have already obtained a certificate
// out of band (e.g. via an operator-issued cert bundle) — unlike the
// teacher's join-token flow, this runtime has no cluster-membership
// bootstrap step to request one through.
func NewClient(addr, certDir string) (*Client, error) {
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("no client certificate found at %s", certDir)
	}

	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}

	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      certPool,
		MinVersion:   tls.VersionTLS13,
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return nil, fmt.Errorf("dial agent host %s: %w", addr, err)
	}

	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.conn.Invoke(ctx, "/"+"gagents.admin.AgentAdmin"+"/"+method, req, resp)
}

// ListActiveAgents returns the ids of every agent active in the remote
// process.
func (c *Client) ListActiveAgents() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp := new(api.ListActiveAgentsResponse)
	if err := c.invoke(ctx, "ListActiveAgents", &api.ListActiveAgentsRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.AgentIDs, nil
}

// GetAgentStatus reads one agent's runtime status.
func (c *Client) GetAgentStatus(agentID string) (*api.GetAgentStatusResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp := new(api.GetAgentStatusResponse)
	if err := c.invoke(ctx, "GetAgentStatus", &api.GetAgentStatusRequest{AgentID: agentID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PublishEnvelope publishes a typed payload on behalf of agentID.
// typeURL identifies the payload's registered proto type; direction is
// one of "self", "up", "down", "both".
func (c *Client) PublishEnvelope(agentID, typeURL string, payload []byte, direction, correlationID string, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := &api.PublishEnvelopeRequest{
		AgentID:       agentID,
		TypeURL:       typeURL,
		PayloadValue:  payload,
		Direction:     direction,
		CorrelationID: correlationID,
		Metadata:      metadata,
	}
	resp := new(api.PublishEnvelopeResponse)
	return c.invoke(ctx, "PublishEnvelope", req, resp)
}

// Health probes the remote agent host's liveness.
func (c *Client) Health() (*api.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp := new(api.HealthResponse)
	if err := c.invoke(ctx, "Health", &api.HealthRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
