package control

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/units"
)

const (
	ServiceName      = "hsuinit.Control"
	StatusMethodName = "/hsuinit.Control/Status"
)

type controlServer interface {
	Status(ctx context.Context, request *emptypb.Empty) (*structpb.Struct, error)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Status",
			Handler:    statusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hsuinit/control.proto",
}

func statusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: StatusMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(controlServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// encodeStatuses converts a snapshot to the wire form: a struct with a
// "units" list, one struct per unit.
func encodeStatuses(statuses []units.Status) (*structpb.Struct, error) {
	list := make([]interface{}, len(statuses))
	for i, st := range statuses {
		entry := map[string]interface{}{
			"name":     st.Name,
			"command":  st.Command,
			"restart":  string(st.Restart),
			"after":    st.After,
			"state":    string(st.State),
			"pid":      st.PID,
			"starts":   st.Starts,
			"restarts": st.Restarts,
		}
		if !st.StartedAt.IsZero() {
			entry["started_at"] = st.StartedAt.UTC().Format(time.RFC3339Nano)
		}
		if st.LastExitCode != nil {
			entry["last_exit_code"] = *st.LastExitCode
			entry["last_exit_at"] = st.LastExitAt.UTC().Format(time.RFC3339Nano)
		}
		list[i] = entry
	}

	out, err := structpb.NewStruct(map[string]interface{}{"units": list})
	if err != nil {
		return nil, errors.NewInternalError("failed to encode status", err)
	}
	return out, nil
}

func decodeStatuses(in *structpb.Struct) ([]units.Status, error) {
	raw, ok := in.AsMap()["units"]
	if !ok {
		return nil, errors.NewValidationError("status response has no units", nil)
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("status units has type %T", raw), nil)
	}

	out := make([]units.Status, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.NewValidationError(fmt.Sprintf("status unit %d has type %T", i, item), nil)
		}
		st := units.Status{
			Name:     stringField(entry, "name"),
			Command:  stringField(entry, "command"),
			Restart:  units.RestartPolicy(stringField(entry, "restart")),
			After:    stringField(entry, "after"),
			State:    units.State(stringField(entry, "state")),
			PID:      intField(entry, "pid"),
			Starts:   intField(entry, "starts"),
			Restarts: intField(entry, "restarts"),
		}
		st.StartedAt = timeField(entry, "started_at")
		if _, ok := entry["last_exit_code"]; ok {
			code := intField(entry, "last_exit_code")
			st.LastExitCode = &code
			st.LastExitAt = timeField(entry, "last_exit_at")
		}
		out = append(out, st)
	}
	return out, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]interface{}, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}

func timeField(m map[string]interface{}, key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, stringField(m, key))
	if err != nil {
		return time.Time{}
	}
	return t
}
