// Package catalogrpc holds the gRPC contract between the composite and the
// downstream services. Messages travel as google.protobuf.Struct, so the
// service descriptors are declared here instead of generated.
package catalogrpc

import (
	"context"
	"errors"
	"io"
	"iter"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

const (
	ProductServiceName        = "catalog.v1.ProductService"
	RecommendationServiceName = "catalog.v1.RecommendationService"
	ReviewServiceName         = "catalog.v1.ReviewService"

	GetProductMethod          = "/" + ProductServiceName + "/GetProduct"
	ListRecommendationsMethod = "/" + RecommendationServiceName + "/ListRecommendations"
	ListReviewsMethod         = "/" + ReviewServiceName + "/ListReviews"
)

type ProductServer interface {
	GetProduct(ctx context.Context, r Request) (catalog.Product, error)
}

type RecommendationServer interface {
	ListRecommendations(ctx context.Context, r Request, send func(catalog.Recommendation) error) error
}

type ReviewServer interface {
	ListReviews(ctx context.Context, r Request, send func(catalog.Review) error) error
}

var productServiceDesc = grpc.ServiceDesc{
	ServiceName: ProductServiceName,
	HandlerType: (*ProductServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProduct", Handler: getProductHandler},
	},
	Metadata: "catalog/v1/catalog.proto",
}

var recommendationServiceDesc = grpc.ServiceDesc{
	ServiceName: RecommendationServiceName,
	HandlerType: (*RecommendationServer)(nil),
	Streams: []grpc.StreamDesc{
		{StreamName: "ListRecommendations", Handler: listRecommendationsHandler, ServerStreams: true},
	},
	Metadata: "catalog/v1/catalog.proto",
}

var reviewServiceDesc = grpc.ServiceDesc{
	ServiceName: ReviewServiceName,
	HandlerType: (*ReviewServer)(nil),
	Streams: []grpc.StreamDesc{
		{StreamName: "ListReviews", Handler: listReviewsHandler, ServerStreams: true},
	},
	Metadata: "catalog/v1/catalog.proto",
}

func RegisterProductServer(s grpc.ServiceRegistrar, srv ProductServer) {
	s.RegisterService(&productServiceDesc, srv)
}

func RegisterRecommendationServer(s grpc.ServiceRegistrar, srv RecommendationServer) {
	s.RegisterService(&recommendationServiceDesc, srv)
}

func RegisterReviewServer(s grpc.ServiceRegistrar, srv ReviewServer) {
	s.RegisterService(&reviewServiceDesc, srv)
}

func getProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		r, err := decodeRequest(req.(*structpb.Struct))
		if err != nil {
			return nil, ToStatus(err)
		}
		p, err := srv.(ProductServer).GetProduct(ctx, r)
		if err != nil {
			return nil, ToStatus(err)
		}
		return toStruct(p)
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetProductMethod}
	return interceptor(ctx, in, info, call)
}

func listRecommendationsHandler(srv any, stream grpc.ServerStream) error {
	r, err := recvRequest(stream)
	if err != nil {
		return ToStatus(err)
	}
	return ToStatus(srv.(RecommendationServer).ListRecommendations(stream.Context(), r, sender[catalog.Recommendation](stream)))
}

func listReviewsHandler(srv any, stream grpc.ServerStream) error {
	r, err := recvRequest(stream)
	if err != nil {
		return ToStatus(err)
	}
	return ToStatus(srv.(ReviewServer).ListReviews(stream.Context(), r, sender[catalog.Review](stream)))
}

func recvRequest(stream grpc.ServerStream) (Request, error) {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return Request{}, err
	}
	return decodeRequest(in)
}

func sender[T any](stream grpc.ServerStream) func(T) error {
	return func(v T) error {
		s, err := toStruct(v)
		if err != nil {
			return err
		}
		return stream.SendMsg(s)
	}
}

type ProductClient struct {
	cc grpc.ClientConnInterface
}

func NewProductClient(cc grpc.ClientConnInterface) *ProductClient {
	return &ProductClient{cc: cc}
}

func (c *ProductClient) GetProduct(ctx context.Context, r Request, opts ...grpc.CallOption) (catalog.Product, error) {
	in, err := encodeRequest(r)
	if err != nil {
		return catalog.Product{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetProductMethod, in, out, opts...); err != nil {
		return catalog.Product{}, FromStatus(err)
	}
	return decodeRecord(out, r.ProductKey, productKey)
}

type RecommendationClient struct {
	cc grpc.ClientConnInterface
}

func NewRecommendationClient(cc grpc.ClientConnInterface) *RecommendationClient {
	return &RecommendationClient{cc: cc}
}

func (c *RecommendationClient) ListRecommendations(ctx context.Context, r Request, opts ...grpc.CallOption) iter.Seq2[catalog.Recommendation, error] {
	return listStream(ctx, c.cc, &recommendationServiceDesc.Streams[0], ListRecommendationsMethod, r, recommendationKey, opts)
}

type ReviewClient struct {
	cc grpc.ClientConnInterface
}

func NewReviewClient(cc grpc.ClientConnInterface) *ReviewClient {
	return &ReviewClient{cc: cc}
}

func (c *ReviewClient) ListReviews(ctx context.Context, r Request, opts ...grpc.CallOption) iter.Seq2[catalog.Review, error] {
	return listStream(ctx, c.cc, &reviewServiceDesc.Streams[0], ListReviewsMethod, r, reviewKey, opts)
}

// listStream opens the server stream lazily on first iteration. Breaking out
// of the loop cancels the stream.
func listStream[T any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, r Request, key func(T) string, opts []grpc.CallOption) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		in, err := encodeRequest(r)
		if err != nil {
			yield(zero, err)
			return
		}
		stream, err := cc.NewStream(ctx, desc, method, opts...)
		if err != nil {
			yield(zero, FromStatus(err))
			return
		}
		// io.EOF from SendMsg means the server already ended the stream; the
		// real status surfaces from RecvMsg.
		if err := stream.SendMsg(in); err != nil && !errors.Is(err, io.EOF) {
			yield(zero, FromStatus(err))
			return
		}
		if err := stream.CloseSend(); err != nil {
			yield(zero, FromStatus(err))
			return
		}
		for {
			out := new(structpb.Struct)
			err := stream.RecvMsg(out)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(zero, FromStatus(err))
				return
			}
			v, err := decodeRecord(out, r.ProductKey, key)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
