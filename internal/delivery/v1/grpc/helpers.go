package grpc

import (
	"errors"
	"math"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldHistory   = "history"
	fieldProductID = "product_id"
	fieldTopK      = "top_k"
	fieldResults   = "results"
)

// GRPCErrorResponse сопоставляет ошибку usecase с gRPC-статусом.
func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrNoHistory):
		return status.Error(codes.InvalidArgument, e.ErrNoHistory.Error())
	case errors.Is(err, e.ErrEmptyProductID):
		return status.Error(codes.InvalidArgument, e.ErrEmptyProductID.Error())
	case errors.Is(err, e.ErrInvalidTopK):
		return status.Error(codes.InvalidArgument, e.ErrInvalidTopK.Error())
	case errors.Is(err, e.ErrStatusBadRequest):
		return status.Error(codes.InvalidArgument, e.ErrStatusBadRequest.Error())
	case errors.Is(err, e.ErrProductNotFound):
		return status.Error(codes.NotFound, e.ErrProductNotFound.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}

// historyFromStruct достаёт список id из поля history. Нестроковый элемент считается ошибкой запроса.
func historyFromStruct(in *structpb.Struct) ([]string, error) {
	list := in.GetFields()[fieldHistory].GetListValue()
	if list == nil {
		return nil, nil
	}

	history := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, e.Wrap(fieldHistory, e.ErrStatusBadRequest)
		}
		history = append(history, sv.StringValue)
	}

	return history, nil
}

// topKFromStruct возвращает 0, если top_k не передан. Значения больше MaxInt32 урезаются,
// дальше usecase ограничивает их размером каталога.
func topKFromStruct(in *structpb.Struct) (int, error) {
	v, ok := in.GetFields()[fieldTopK]
	if !ok {
		return 0, nil
	}

	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, e.Wrap(fieldTopK, e.ErrInvalidTopK)
	}
	n := nv.NumberValue
	if math.IsNaN(n) || n <= 0 || n != math.Trunc(n) {
		return 0, e.Wrap(fieldTopK, e.ErrInvalidTopK)
	}

	return int(min(n, math.MaxInt32)), nil
}

func toGRPCItem(item domain.ScoredItem) map[string]interface{} {
	return map[string]interface{}{
		"product_id":  item.ProductID,
		"score":       item.Score,
		"url":         item.URL,
		"trend_score": item.TrendScore,
	}
}

func toGRPCResults(items []domain.ScoredItem) (*structpb.Struct, error) {
	results := make([]interface{}, len(items))
	for i, item := range items {
		results[i] = toGRPCItem(item)
	}

	return structpb.NewStruct(map[string]interface{}{fieldResults: results})
}
