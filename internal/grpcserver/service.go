package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The services speak well-known protobuf types only: requests are Empty or a
// StringValue id, responses are a Struct shaped like the HTTP JSON bodies.
const (
	CatalogServiceName = "videolibrary.Catalog"
	LibraryServiceName = "videolibrary.Library"

	ListVideosMethod     = "/videolibrary.Catalog/ListVideos"
	GetVideoMethod       = "/videolibrary.Catalog/GetVideo"
	ListCategoriesMethod = "/videolibrary.Catalog/ListCategories"
	GetCategoryMethod    = "/videolibrary.Catalog/GetCategory"
	PingMethod           = "/videolibrary.Catalog/Ping"
	GetLibraryMethod     = "/videolibrary.Library/GetLibrary"
)

// CatalogServer serves the public catalog.
type CatalogServer interface {
	ListVideos(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	GetVideo(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ListCategories(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	GetCategory(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	Ping(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
}

// LibraryServer serves the caller's own sequences and playlists.
type LibraryServer interface {
	GetLibrary(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

type unaryMethod = func(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error)

// unary adapts a typed server method to the grpc method handler shape, the
// same way generated code does.
func unary[S any, Req proto.Message, Resp proto.Message](
	fullMethod string,
	newRequest func() Req,
	call func(server S, ctx context.Context, req Req) (Resp, error),
) unaryMethod {
	return func(
		srv interface{},
		ctx context.Context,
		dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor,
	) (interface{}, error) {
		in := newRequest()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(S), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newEmpty() *emptypb.Empty { return &emptypb.Empty{} }

func newStringValue() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListVideos",
			Handler:    unary(ListVideosMethod, newEmpty, CatalogServer.ListVideos),
		},
		{
			MethodName: "GetVideo",
			Handler:    unary(GetVideoMethod, newStringValue, CatalogServer.GetVideo),
		},
		{
			MethodName: "ListCategories",
			Handler:    unary(ListCategoriesMethod, newEmpty, CatalogServer.ListCategories),
		},
		{
			MethodName: "GetCategory",
			Handler:    unary(GetCategoryMethod, newStringValue, CatalogServer.GetCategory),
		},
		{
			MethodName: "Ping",
			Handler:    unary(PingMethod, newEmpty, CatalogServer.Ping),
		},
	},
	Streams: []grpc.StreamDesc{},
}

var libraryServiceDesc = grpc.ServiceDesc{
	ServiceName: LibraryServiceName,
	HandlerType: (*LibraryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetLibrary",
			Handler:    unary(GetLibraryMethod, newEmpty, LibraryServer.GetLibrary),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterCatalogServer(registrar grpc.ServiceRegistrar, srv CatalogServer) {
	registrar.RegisterService(&catalogServiceDesc, srv)
}

func RegisterLibraryServer(registrar grpc.ServiceRegistrar, srv LibraryServer) {
	registrar.RegisterService(&libraryServiceDesc, srv)
}

// Client calls both services over one connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invokeStruct(ctx context.Context, method string, in proto.Message, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListVideos(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, ListVideosMethod, &emptypb.Empty{}, opts...)
}

func (c *Client) GetVideo(ctx context.Context, videoID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, GetVideoMethod, wrapperspb.String(videoID), opts...)
}

func (c *Client) ListCategories(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, ListCategoriesMethod, &emptypb.Empty{}, opts...)
}

func (c *Client) GetCategory(ctx context.Context, categoryID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, GetCategoryMethod, wrapperspb.String(categoryID), opts...)
}

func (c *Client) Ping(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, PingMethod, &emptypb.Empty{}, &emptypb.Empty{}, opts...)
}

func (c *Client) GetLibrary(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, GetLibraryMethod, &emptypb.Empty{}, opts...)
}
