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

func NewGRPCClientGateway(grpcClientConnection grpc.ClientConnInterface, logger logging.Logger) domain.Contract {
	return &grpcClientGateway{
		conn:   grpcClientConnection,
		logger: logger,
	}
}

type grpcClientGateway struct {
	conn   grpc.ClientConnInterface
	logger logging.Logger
}

func (gw *grpcClientGateway) Status(ctx context.Context) ([]units.Status, error) {
	response := new(structpb.Struct)
	if err := gw.conn.Invoke(ctx, StatusMethodName, &emptypb.Empty{}, response); err != nil {
		gw.logger.Errorf("Status client gateway: %v", err)
		return nil, err
	}
	statuses, err := decodeStatuses(response)
	if err != nil {
		gw.logger.Errorf("Status client gateway: %v", err)
		return nil, err
	}
	gw.logger.Debugf("Status client gateway done")
	return statuses, nil
}
