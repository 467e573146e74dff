package codec

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock
type mockInvoker struct {
	replies map[string]map[string]any
	err     error
	calls   []string
	lastReq *structpb.Struct
}

func (m *mockInvoker) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	m.calls = append(m.calls, method)
	m.lastReq = args.(*structpb.Struct)
	if m.err != nil {
		return m.err
	}
	resp, err := structpb.NewStruct(m.replies[method])
	if err != nil {
		return err
	}
	proto.Merge(reply.(proto.Message), resp)
	return nil
}

func newClient(m *mockInvoker) *FieldClient {
	return NewFieldClientWithInvoker(m, DefaultClientConfig(), nil)
}

// #endregion mock

// #region constructor-tests
func TestNewFieldClientLazyDial(t *testing.T) {
	client, err := NewFieldClient("localhost:0", DefaultClientConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestNewFieldClientWithInvoker(t *testing.T) {
	c := newClient(&mockInvoker{})
	if c.invoker == nil {
		t.Fatal("expected non-nil invoker")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close without conn: %v", err)
	}
	if c.BreakerState() != gobreaker.StateClosed {
		t.Errorf("expected closed breaker, got %s", c.BreakerState())
	}
}

// #endregion constructor-tests

// #region initialize-tests
func TestInitializeField_Success(t *testing.T) {
	mock := &mockInvoker{replies: map[string]map[string]any{
		MethodInitializeField: {"coherence": 0.9, "signature": "sig-abc"},
	}}
	c := newClient(mock)

	init, err := c.InitializeField(context.Background(), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if init.Coherence != 0.9 || init.Signature != "sig-abc" {
		t.Errorf("unexpected init: %+v", init)
	}
	if got := mock.lastReq.GetFields()["entity_id"].GetStringValue(); got != "e1" {
		t.Errorf("expected entity_id e1 in request, got %q", got)
	}
	if mock.calls[0] != MethodInitializeField {
		t.Errorf("unexpected method %q", mock.calls[0])
	}
}

func TestInitializeField_ClampsCoherence(t *testing.T) {
	mock := &mockInvoker{replies: map[string]map[string]any{
		MethodInitializeField: {"coherence": 3.0, "signature": "s"},
	}}
	init, err := newClient(mock).InitializeField(context.Background(), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if init.Coherence != 1 {
		t.Errorf("expected clamped coherence 1, got %f", init.Coherence)
	}
}

func TestInitializeField_MissingSignature(t *testing.T) {
	mock := &mockInvoker{replies: map[string]map[string]any{
		MethodInitializeField: {"coherence": 0.5},
	}}
	_, err := newClient(mock).InitializeField(context.Background(), "e1")
	if !errors.Is(err, errtrack.ErrTransientExternal) {
		t.Fatalf("expected transient external error, got %v", err)
	}
}

func TestInitializeField_Error(t *testing.T) {
	mock := &mockInvoker{err: errors.New("rpc failed")}
	_, err := newClient(mock).InitializeField(context.Background(), "e1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, mock.err) {
		t.Errorf("expected wrapped rpc error, got: %v", err)
	}
	if !errors.Is(err, errtrack.ErrTransientExternal) {
		t.Errorf("expected transient external kind, got: %v", err)
	}
}

// #endregion initialize-tests

// #region stability-tests
func TestCheckStability(t *testing.T) {
	mock := &mockInvoker{replies: map[string]map[string]any{
		MethodCheckStability: {"stable": true},
	}}
	stable, err := newClient(mock).CheckStability(context.Background(), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stable {
		t.Error("expected stable")
	}
}

// #endregion stability-tests

// #region patterns-tests
func TestGeneratePatterns(t *testing.T) {
	mock := &mockInvoker{replies: map[string]map[string]any{
		MethodGeneratePatterns: {"pattern": 0.4, "awareness": 0.6, "understanding": -1.0},
	}}
	gen, err := newClient(mock).GeneratePatterns(context.Background(), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Pattern != 0.4 || gen.Awareness != 0.6 {
		t.Errorf("unexpected patterns: %+v", gen)
	}
	if gen.Understanding != 0 {
		t.Errorf("expected negative understanding clamped to 0, got %f", gen.Understanding)
	}
}

// #endregion patterns-tests

// #region breaker-tests
func TestBreakerOpensAfterFailures(t *testing.T) {
	mock := &mockInvoker{err: errors.New("unavailable")}
	c := newClient(mock)

	for i := 0; i < 3; i++ {
		if _, err := c.CheckStability(context.Background(), "e1"); err == nil {
			t.Fatal("expected error")
		}
	}
	if c.BreakerState() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", c.BreakerState())
	}

	_, err := c.CheckStability(context.Background(), "e1")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open state error, got %v", err)
	}
	if !errors.Is(err, errtrack.ErrTransientExternal) {
		t.Errorf("expected transient external kind, got %v", err)
	}
	if len(mock.calls) != 3 {
		t.Errorf("open breaker must not invoke, got %d calls", len(mock.calls))
	}
}

// #endregion breaker-tests
