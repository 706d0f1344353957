package grpc

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeSearchUC struct {
	results    []domain.ScoredItem
	gotHistory []string
	gotSimilar *usecase.SimilarReq
}

func (f *fakeSearchUC) SearchByImage(context.Context, *usecase.SearchByImageReq) (*usecase.SearchRes, error) {
	return usecase.NewSearchRes(nil, nil), nil
}

func (f *fakeSearchUC) Recommend(_ context.Context, req *usecase.RecommendReq) (*usecase.RecommendRes, error) {
	f.gotHistory = req.History
	if len(req.History) == 0 {
		return nil, e.ErrNoHistory
	}
	return usecase.NewRecommendRes(f.results), nil
}

func (f *fakeSearchUC) Similar(_ context.Context, req *usecase.SimilarReq) (*usecase.RecommendRes, error) {
	f.gotSimilar = req
	switch req.ProductID {
	case "":
		return nil, e.ErrEmptyProductID
	case "missing":
		return nil, e.Wrap(req.ProductID, e.ErrProductNotFound)
	}
	return usecase.NewRecommendRes(f.results), nil
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()

	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func resultIDs(t *testing.T, out *structpb.Struct) []string {
	t.Helper()

	var ids []string
	for _, v := range out.GetFields()[fieldResults].GetListValue().GetValues() {
		ids = append(ids, v.GetStructValue().GetFields()[fieldProductID].GetStringValue())
	}
	return ids
}

func TestCatalogService_Recommend(t *testing.T) {
	uc := &fakeSearchUC{results: []domain.ScoredItem{
		domain.NewScoredItem("c", 1.5, "http://shop/c", 0.25),
		domain.NewScoredItem("d", 0.75, "", 0),
	}}
	svc := NewCatalogService(uc, logger.NewNopLogger())

	out, err := svc.Recommend(context.Background(), mustStruct(t, map[string]interface{}{
		"history": []interface{}{"a", "b"},
	}))
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	ids := resultIDs(t, out)
	if len(ids) != 2 || ids[0] != "c" || ids[1] != "d" {
		t.Errorf("ids = %v", ids)
	}
	first := out.GetFields()[fieldResults].GetListValue().GetValues()[0].GetStructValue().GetFields()
	if first["score"].GetNumberValue() != 1.5 || first["url"].GetStringValue() != "http://shop/c" {
		t.Errorf("first item = %v", first)
	}
	if len(uc.gotHistory) != 2 {
		t.Errorf("history = %v", uc.gotHistory)
	}
}

func TestCatalogService_Errors(t *testing.T) {
	svc := NewCatalogService(&fakeSearchUC{}, logger.NewNopLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"empty history", func() error {
			_, err := svc.Recommend(ctx, mustStruct(t, map[string]interface{}{}))
			return err
		}, codes.InvalidArgument},
		{"non-string history", func() error {
			_, err := svc.Recommend(ctx, mustStruct(t, map[string]interface{}{"history": []interface{}{1.0}}))
			return err
		}, codes.InvalidArgument},
		{"empty product id", func() error {
			_, err := svc.Similar(ctx, mustStruct(t, map[string]interface{}{}))
			return err
		}, codes.InvalidArgument},
		{"unknown product", func() error {
			_, err := svc.Similar(ctx, mustStruct(t, map[string]interface{}{"product_id": "missing"}))
			return err
		}, codes.NotFound},
		{"fractional top_k", func() error {
			_, err := svc.Similar(ctx, mustStruct(t, map[string]interface{}{"product_id": "a", "top_k": 2.5}))
			return err
		}, codes.InvalidArgument},
		{"string top_k", func() error {
			_, err := svc.Similar(ctx, mustStruct(t, map[string]interface{}{"product_id": "a", "top_k": "3"}))
			return err
		}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(tt.call()); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCatalogService_OverGRPC(t *testing.T) {
	uc := &fakeSearchUC{results: []domain.ScoredItem{domain.NewScoredItem("b", 0.9, "", 0)}}
	srv := NewGRPCServer(&cfg.GRPCConfig{NetworkMode: "tcp"}, logger.NewNopLogger())
	srv.RegisterServices(uc)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := new(structpb.Struct)
	in := mustStruct(t, map[string]interface{}{"product_id": "a", "top_k": 3.0})
	if err := conn.Invoke(ctx, "/"+catalogServiceName+"/Similar", in, out); err != nil {
		t.Fatalf("Invoke Similar: %v", err)
	}
	if ids := resultIDs(t, out); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("ids = %v", ids)
	}
	if uc.gotSimilar == nil || uc.gotSimilar.ProductID != "a" || uc.gotSimilar.TopK != 3 {
		t.Errorf("similar req = %+v", uc.gotSimilar)
	}

	err = conn.Invoke(ctx, "/"+catalogServiceName+"/Similar", mustStruct(t, map[string]interface{}{"product_id": "missing"}), new(structpb.Struct))
	if status.Code(err) != codes.NotFound {
		t.Errorf("missing product code = %v, want NotFound", status.Code(err))
	}

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: catalogServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if hc.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health = %v", hc.GetStatus())
	}
}

func TestTopKFromStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      map[string]interface{}
		want    int
		wantErr bool
	}{
		{"absent", map[string]interface{}{}, 0, false},
		{"regular", map[string]interface{}{"top_k": 5.0}, 5, false},
		{"huge is capped", map[string]interface{}{"top_k": 1e18}, math.MaxInt32, false},
		{"beyond int64", map[string]interface{}{"top_k": 1e300}, math.MaxInt32, false},
		{"infinity", map[string]interface{}{"top_k": math.Inf(1)}, math.MaxInt32, false},
		{"negative", map[string]interface{}{"top_k": -1.0}, 0, true},
		{"zero", map[string]interface{}{"top_k": 0.0}, 0, true},
		{"NaN", map[string]interface{}{"top_k": math.NaN()}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := topKFromStruct(mustStruct(t, tt.in))
			if tt.wantErr {
				if !errors.Is(err, e.ErrInvalidTopK) {
					t.Fatalf("error = %v, want ErrInvalidTopK", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("topKFromStruct: %v", err)
			}
			if got != tt.want {
				t.Errorf("top_k = %d, want %d", got, tt.want)
			}
		})
	}
}
