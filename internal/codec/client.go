package codec

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const logLikelihoodMethod = "/belief.v1.ModelService/LogLikelihood"

// #region client-struct
// CodecClient wraps the gRPC connection to an external model service.
type CodecClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the model gRPC server at addr.
func NewCodecClient(addr string) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{conn: conn, cc: conn}, nil
}

// NewCodecClientWithConn creates a CodecClient over an existing connection.
// Close does not close cc.
func NewCodecClientWithConn(cc grpc.ClientConnInterface) *CodecClient {
	return &CodecClient{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns it.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region log-likelihood
// LogLikelihood asks the model service for log p(disturbance | particle, control).
func (c *CodecClient) LogLikelihood(ctx context.Context, particle, control, disturbance float64) (float64, error) {
	req, err := structpb.NewStruct(map[string]any{
		"particle":    particle,
		"control":     control,
		"disturbance": disturbance,
	})
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp := new(wrapperspb.DoubleValue)
	if err := c.cc.Invoke(ctx, logLikelihoodMethod, req, resp); err != nil {
		return 0, fmt.Errorf("log likelihood rpc: %w", err)
	}
	return resp.GetValue(), nil
}

// #endregion log-likelihood

// #region remote-model
// RemoteModel adapts a CodecClient to belief.Model. The first RPC failure is
// kept in Err; that call and every later one yield NaN, which fails the update.
type RemoteModel struct {
	client  *CodecClient
	ctx     context.Context
	timeout time.Duration

	mu  sync.Mutex
	err error
}

// Model binds the client to ctx with a per-call timeout.
func (c *CodecClient) Model(ctx context.Context, timeout time.Duration) *RemoteModel {
	return &RemoteModel{client: c, ctx: ctx, timeout: timeout}
}

// LogLikelihood implements belief.Model.
func (m *RemoteModel) LogLikelihood(particle, control, disturbance float64) float64 {
	if m.Err() != nil {
		return math.NaN()
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	defer cancel()

	ll, err := m.client.LogLikelihood(ctx, particle, control, disturbance)
	if err != nil {
		m.mu.Lock()
		if m.err == nil {
			m.err = err
		}
		m.mu.Unlock()
		return math.NaN()
	}
	return ll
}

// Err returns the first RPC failure, if any.
func (m *RemoteModel) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// #endregion remote-model
