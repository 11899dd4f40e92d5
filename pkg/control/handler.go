package control

import (
	"context"

	"github.com/core-tools/hsu-init/pkg/domain"
	"github.com/core-tools/hsu-init/pkg/logging"
	"github.com/core-tools/hsu-init/pkg/units"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func RegisterGRPCServerHandler(grpcServerRegistrar grpc.ServiceRegistrar, handler domain.Contract, logger logging.Logger) {
	grpcServerRegistrar.RegisterService(&controlServiceDesc, &grpcServerHandler{
		handler: handler,
		logger:  logger,
	})
}

type grpcServerHandler struct {
	handler domain.Contract
	logger  logging.Logger
}

func (h *grpcServerHandler) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	statuses, err := h.handler.Status(ctx)
	if err != nil {
		h.logger.Errorf("Status server handler: %v", err)
		return nil, err
	}
	response, err := encodeStatuses(statuses)
	if err != nil {
		h.logger.Errorf("Status server handler: %v", err)
		return nil, err
	}
	h.logger.Debugf("Status server handler done, units: %d", len(statuses))
	return response, nil
}

// SnapshotSource is anything holding the latest published unit state.
type SnapshotSource interface {
	Units() []units.Status
}

// NewSnapshotContract serves Status from source without touching the
// registry.
func NewSnapshotContract(source SnapshotSource) domain.Contract {
	return &snapshotContract{source: source}
}

type snapshotContract struct {
	source SnapshotSource
}

func (c *snapshotContract) Status(ctx context.Context) ([]units.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.source.Units(), nil
}
