package codec

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of the quantum field service.
const (
	MethodInitializeField  = "/anima.QuantumField/InitializeField"
	MethodCheckStability   = "/anima.QuantumField/CheckStability"
	MethodGeneratePatterns = "/anima.QuantumField/GeneratePatterns"
)

// #region config
// ClientConfig holds the per-call timeout and circuit breaker settings.
type ClientConfig struct {
	Timeout          time.Duration // per-call deadline
	MaxRequests      uint32        // requests allowed while half-open
	Interval         time.Duration // closed-state counter reset period
	OpenTimeout      time.Duration // open duration before probing half-open
	FailureThreshold float64       // failure ratio that trips the breaker
	MinRequests      uint32        // requests needed before the ratio is judged
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:          2 * time.Second,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		OpenTimeout:      10 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// #endregion config

// #region client-struct
// Invoker is the unary call surface of a gRPC connection.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// FieldClient implements quantum.Gateway over gRPC with structpb payloads.
// Every call runs through a circuit breaker; failures and an open breaker
// surface as ErrTransientExternal.
type FieldClient struct {
	conn    *grpc.ClientConn
	invoker Invoker
	breaker *gobreaker.CircuitBreaker
	config  ClientConfig
	log     zerolog.Logger
}

var _ quantum.Gateway = (*FieldClient)(nil)

// #endregion client-struct

// #region constructor
// NewFieldClient connects to the quantum field service at addr.
func NewFieldClient(addr string, config ClientConfig, logger *zerolog.Logger) (*FieldClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewFieldClientWithInvoker(conn, config, logger)
	c.conn = conn
	return c, nil
}

// NewFieldClientWithInvoker creates a FieldClient over an injected invoker.
// Used for testing without a real gRPC connection.
func NewFieldClientWithInvoker(inv Invoker, config ClientConfig, logger *zerolog.Logger) *FieldClient {
	def := DefaultClientConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MinRequests == 0 {
		config.MinRequests = def.MinRequests
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	lg := zerolog.Nop()
	if logger != nil {
		lg = logger.With().Str("component", "field_client").Logger()
	}
	c := &FieldClient{invoker: inv, config: config, log: lg}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "quantum-field",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return c
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection, if the client owns one.
func (c *FieldClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// BreakerState reports the circuit breaker state.
func (c *FieldClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// #endregion close

// #region initialize-field
// InitializeField asks the service to create or reset the entity's field.
func (c *FieldClient) InitializeField(ctx context.Context, entityID string) (quantum.FieldInit, error) {
	resp, err := c.call(ctx, "initialize field", MethodInitializeField, entityID)
	if err != nil {
		return quantum.FieldInit{}, err
	}
	sig := resp.GetFields()["signature"].GetStringValue()
	if sig == "" {
		return quantum.FieldInit{}, errtrack.E(errtrack.ErrTransientExternal, "initialize field",
			fmt.Errorf("response missing signature"))
	}
	return quantum.FieldInit{
		Coherence: unit(resp.GetFields()["coherence"].GetNumberValue()),
		Signature: sig,
	}, nil
}

// #endregion initialize-field

// #region check-stability
// CheckStability reports whether the service considers the field stable.
func (c *FieldClient) CheckStability(ctx context.Context, entityID string) (bool, error) {
	resp, err := c.call(ctx, "check stability", MethodCheckStability, entityID)
	if err != nil {
		return false, err
	}
	return resp.GetFields()["stable"].GetBoolValue(), nil
}

// #endregion check-stability

// #region generate-patterns
// GeneratePatterns asks the service for the next pattern triple.
func (c *FieldClient) GeneratePatterns(ctx context.Context, entityID string) (quantum.GeneratedPatterns, error) {
	resp, err := c.call(ctx, "generate patterns", MethodGeneratePatterns, entityID)
	if err != nil {
		return quantum.GeneratedPatterns{}, err
	}
	f := resp.GetFields()
	return quantum.GeneratedPatterns{
		Pattern:       unit(f["pattern"].GetNumberValue()),
		Awareness:     unit(f["awareness"].GetNumberValue()),
		Understanding: unit(f["understanding"].GetNumberValue()),
	}, nil
}

// #endregion generate-patterns

// #region helpers
func (c *FieldClient) call(ctx context.Context, op, method, entityID string) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"entity_id": entityID})
	if err != nil {
		return nil, errtrack.E(errtrack.ErrValidation, op, err)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
		reply := &structpb.Struct{}
		if err := c.invoker.Invoke(cctx, method, req, reply); err != nil {
			return nil, err
		}
		return reply, nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("entity", entityID).Msg("field gateway call failed")
		return nil, errtrack.E(errtrack.ErrTransientExternal, op, fmt.Errorf("%s rpc: %w", op, err))
	}
	return out.(*structpb.Struct), nil
}

func unit(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
