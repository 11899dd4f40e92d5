package control

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"vawter.tech/stopper"

	"github.com/core-tools/hsu-init/pkg/domain"
	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
)

// Server serves the control service on a unix socket.
type Server struct {
	socketPath string
	listener   net.Listener
	grpcServer *grpc.Server
	sctx       *stopper.Context
	logger     logging.Logger
}

// Listen binds socketPath, replacing a stale socket left by an earlier run,
// and starts serving contract in the background until ctx is done or Close
// is called.
func Listen(ctx context.Context, socketPath string, contract domain.Contract, logger logging.Logger) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, errors.NewIOError("failed to create control socket directory", err).WithContext("socket", socketPath)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.NewIOError("failed to remove stale control socket", err).WithContext("socket", socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, errors.NewIOError("failed to listen on control socket", err).WithContext("socket", socketPath)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		logger.Warnf("Failed to restrict control socket permissions, socket: %s, error: %v", socketPath, err)
	}

	grpcServer := grpc.NewServer()
	RegisterGRPCServerHandler(grpcServer, contract, logger)

	s := &Server{
		socketPath: socketPath,
		listener:   listener,
		grpcServer: grpcServer,
		sctx:       stopper.WithContext(ctx),
		logger:     logger,
	}

	s.sctx.Go(func(sctx *stopper.Context) error {
		if err := grpcServer.Serve(listener); err != nil && !sctx.IsStopping() {
			logger.Errorf("Control server stopped: %v", err)
			return err
		}
		return nil
	})
	s.sctx.Go(func(sctx *stopper.Context) error {
		<-sctx.Stopping()
		grpcServer.GracefulStop()
		_ = os.Remove(socketPath)
		return nil
	})

	logger.Infof("Control server listening on %s", socketPath)
	return s, nil
}

func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) Close() error {
	s.sctx.Stop(time.Second)
	return s.sctx.Wait()
}

// Dial connects to a control socket.
func Dial(ctx context.Context, socketPath string) (*grpc.ClientConn, error) {
	conn, err := grpc.DialContext(ctx, "unix:"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, errors.NewIOError("failed to connect to control socket", err).WithContext("socket", socketPath)
	}
	return conn, nil
}
