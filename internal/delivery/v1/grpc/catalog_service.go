package grpc

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const catalogServiceName = "visualsearch.v1.CatalogService"

// CatalogServiceServer: серверная часть visualsearch.v1.CatalogService.
// Сообщения передаются как google.protobuf.Struct:
//
//	Recommend({history: [string]})              -> {results: [Item]}
//	Similar({product_id: string, top_k: number}) -> {results: [Item]}
type CatalogServiceServer interface {
	Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Similar(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: catalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: recommendHandler},
		{MethodName: "Similar", Handler: similarHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "visualsearch/v1/catalog.proto",
}

func recommendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).Recommend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + catalogServiceName + "/Recommend"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CatalogServiceServer).Recommend(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

func similarHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).Similar(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + catalogServiceName + "/Similar"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CatalogServiceServer).Similar(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

type CatalogService struct {
	searchUC usecase.SearchUC
	logger   logger.Logger
}

func NewCatalogService(searchUC usecase.SearchUC, logger logger.Logger) *CatalogService {
	return &CatalogService{searchUC: searchUC, logger: logger}
}

func (g *CatalogService) Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Recommend"

	history, err := historyFromStruct(in)
	if err != nil {
		g.logger.Warnf("%s: %v", op, err)
		return nil, GRPCErrorResponse(err)
	}

	res, err := g.searchUC.Recommend(ctx, usecase.NewRecommendReq(history))
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	out, err := toGRPCResults(res.Results)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s: encode results", op)
		return nil, GRPCErrorResponse(err)
	}

	return out, nil
}

func (g *CatalogService) Similar(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Similar"

	topK, err := topKFromStruct(in)
	if err != nil {
		g.logger.Warnf("%s: %v", op, err)
		return nil, GRPCErrorResponse(err)
	}
	productID := in.GetFields()[fieldProductID].GetStringValue()

	res, err := g.searchUC.Similar(ctx, usecase.NewSimilarReq(productID, topK))
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	out, err := toGRPCResults(res.Results)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s: encode results", op)
		return nil, GRPCErrorResponse(err)
	}

	return out, nil
}
