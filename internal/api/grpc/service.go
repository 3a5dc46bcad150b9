package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names on the wire.
const (
	ServiceName      = "metronome.ingress.ClassificationStreamService"
	StreamMethodName = "StreamClassifications"
	StreamFullMethod = "/" + ServiceName + "/" + StreamMethodName
)

// ClassificationStreamServer is the server API for ClassificationStreamService.
type ClassificationStreamServer interface {
	StreamClassifications(ClassificationStream) error
}

// ClassificationStream is the server side of a client-streaming call.
// Frames and the ack are google.protobuf.Struct messages.
type ClassificationStream interface {
	Recv() (*structpb.Struct, error)
	SendAndClose(*structpb.Struct) error
	grpc.ServerStream
}

// ServiceDesc describes ClassificationStreamService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClassificationStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    StreamMethodName,
			Handler:       streamClassificationsHandler,
			ClientStreams: true,
		},
	},
	Metadata: "metronome/ingress/v1/classification.proto",
}

func streamClassificationsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ClassificationStreamServer).StreamClassifications(&classificationStream{stream})
}

type classificationStream struct {
	grpc.ServerStream
}

func (x *classificationStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *classificationStream) SendAndClose(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// ClassificationStreamClient is the client side of a client-streaming call.
type ClassificationStreamClient interface {
	Send(*structpb.Struct) error
	CloseAndRecv() (*structpb.Struct, error)
	grpc.ClientStream
}

// Client calls ClassificationStreamService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// StreamClassifications opens a client stream.
func (c *Client) StreamClassifications(ctx context.Context, opts ...grpc.CallOption) (ClassificationStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], StreamFullMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &classificationStreamClient{stream}, nil
}

type classificationStreamClient struct {
	grpc.ClientStream
}

func (x *classificationStreamClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *classificationStreamClient) CloseAndRecv() (*structpb.Struct, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
