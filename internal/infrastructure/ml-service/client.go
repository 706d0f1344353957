package ml_service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const vectorizeImageMethod = "/ml.MachineLearningService/VectorizeImage"

// VectorizeClient: клиентская часть ML-сервиса.
// Запрос содержит байты изображения, ответ {vector: [number], model_version: string}.
type VectorizeClient interface {
	VectorizeImage(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type vectorizeClient struct {
	cc grpc.ClientConnInterface
}

func NewVectorizeClient(cc grpc.ClientConnInterface) VectorizeClient {
	return &vectorizeClient{cc: cc}
}

func (c *vectorizeClient) VectorizeImage(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, vectorizeImageMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
