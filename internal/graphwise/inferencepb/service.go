package inferencepb

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "ai.graphwise.transformer.InferenceService"

	InferenceService_EmbedSentence_FullMethodName = "/" + ServiceName + "/EmbedSentence"
)

// InferenceServiceClient is the client API for the inference service.
type InferenceServiceClient interface {
	EmbedSentence(ctx context.Context, in *SentenceRequest, opts ...grpc.CallOption) (*SentenceResponse, error)
}

type inferenceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInferenceServiceClient binds the service to cc. The connection must
// use Codec, e.g. via grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})).
func NewInferenceServiceClient(cc grpc.ClientConnInterface) InferenceServiceClient {
	return &inferenceServiceClient{cc}
}

func (c *inferenceServiceClient) EmbedSentence(ctx context.Context, in *SentenceRequest, opts ...grpc.CallOption) (*SentenceResponse, error) {
	out := new(SentenceResponse)
	if err := c.cc.Invoke(ctx, InferenceService_EmbedSentence_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// InferenceServiceServer is the server API for the inference service.
type InferenceServiceServer interface {
	EmbedSentence(context.Context, *SentenceRequest) (*SentenceResponse, error)
}

// RegisterInferenceServiceServer registers srv on s. The server must be
// created with grpc.ForceServerCodec(Codec{}).
func RegisterInferenceServiceServer(s grpc.ServiceRegistrar, srv InferenceServiceServer) {
	s.RegisterService(&InferenceService_ServiceDesc, srv)
}

func _InferenceService_EmbedSentence_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SentenceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InferenceServiceServer).EmbedSentence(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: InferenceService_EmbedSentence_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InferenceServiceServer).EmbedSentence(ctx, req.(*SentenceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// InferenceService_ServiceDesc describes the service for grpc.ServiceRegistrar.
var InferenceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InferenceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "EmbedSentence",
			Handler:    _InferenceService_EmbedSentence_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "graphwise_transformer.proto",
}
