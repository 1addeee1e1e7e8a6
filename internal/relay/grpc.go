package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/runnerr0/broadcastmonitor/internal/intent"
)

const (
	relayServiceName = "broadcastmonitor.relay.v1.Relay"
	deliverMethod    = "/" + relayServiceName + "/Deliver"

	fieldAction  = "action"
	fieldPackage = "package"
	fieldExtras  = "extras"
)

// deliverServer is the service implementation type registered below. The
// request is a google.protobuf.Struct so no generated code is needed.
type deliverServer interface {
	Deliver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

var relayServiceDesc = grpc.ServiceDesc{
	ServiceName: relayServiceName,
	HandlerType: (*deliverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "broadcastmonitor/relay/v1/relay.proto",
}

func deliverHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(deliverServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deliverMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(deliverServer).Deliver(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer receives relay messages on a unix socket. Only messages
// addressed to its package are handed on.
type GRPCServer struct {
	pkg    string
	path   string
	lis    net.Listener
	srv    *grpc.Server
	logger *slog.Logger

	mu      sync.RWMutex
	handler Handler
}

// ListenUnix binds a unix socket at path, replacing a stale one, and
// returns a server ready for Listen.
func ListenUnix(path, pkg string, logger *slog.Logger) (*GRPCServer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	s := &GRPCServer{
		pkg:    pkg,
		path:   path,
		lis:    lis,
		srv:    grpc.NewServer(),
		logger: logger,
	}
	s.srv.RegisterService(&relayServiceDesc, s)
	return s, nil
}

// Path returns the socket path.
func (s *GRPCServer) Path() string {
	return s.path
}

// Listen serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Listen(ctx context.Context, h Handler) error {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.lis) }()

	select {
	case <-ctx.Done():
		s.srv.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server without waiting for in-flight calls.
func (s *GRPCServer) Close() {
	s.srv.Stop()
	_ = s.lis.Close()
}

// Deliver implements the relay service.
func (s *GRPCServer) Deliver(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	msg := structToIntent(req)
	if msg.Package != s.pkg {
		s.logger.Warn("rejecting relay message for another package", "package", msg.Package)
		return nil, status.Errorf(codes.PermissionDenied, "message addressed to %q", msg.Package)
	}

	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	if h == nil {
		return nil, status.Error(codes.Unavailable, "receiver not ready")
	}

	h(msg)
	return &emptypb.Empty{}, nil
}

// GRPCChannel sends relay messages to a GRPCServer.
type GRPCChannel struct {
	conn *grpc.ClientConn
}

// DialUnix returns a channel to the server at path. The connection is
// established lazily on the first send.
func DialUnix(path string) (*GRPCChannel, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve socket path: %w", err)
	}
	conn, err := grpc.NewClient("unix://"+abs, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to relay socket: %w", err)
	}
	return &GRPCChannel{conn: conn}, nil
}

// Broadcast implements Channel.
func (c *GRPCChannel) Broadcast(ctx context.Context, msg *intent.Intent) error {
	req, err := intentToStruct(msg)
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	return c.conn.Invoke(ctx, deliverMethod, req, new(emptypb.Empty))
}

// Close releases the connection.
func (c *GRPCChannel) Close() error {
	return c.conn.Close()
}

func intentToStruct(msg *intent.Intent) (*structpb.Struct, error) {
	extras, err := wireExtras(msg.Extras)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		fieldAction:  msg.Action,
		fieldPackage: msg.Package,
		fieldExtras:  extras,
	})
}

func structToIntent(s *structpb.Struct) *intent.Intent {
	fields := s.GetFields()
	msg := intent.New(fields[fieldAction].GetStringValue())
	msg.Package = fields[fieldPackage].GetStringValue()

	extras := fields[fieldExtras].GetStructValue().AsMap()
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		msg.Extras.Put(k, extras[k])
	}
	return msg
}

// wireExtras converts a bundle into values structpb and encoding/json both
// accept: strings, numbers, bools, and nil. Anything else is stringified.
func wireExtras(b *intent.Bundle) (map[string]any, error) {
	out := make(map[string]any, b.Len())
	for _, k := range b.Keys() {
		v, err := b.Get(k)
		if err != nil {
			return nil, fmt.Errorf("read extra %q: %w", k, err)
		}
		switch t := v.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
			out[k] = t
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out, nil
}
