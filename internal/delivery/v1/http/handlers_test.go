package http

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/catalog"
	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fakeSearchUC struct {
	searchRes *usecase.SearchRes
	recRes    *usecase.RecommendRes
	err       error

	gotImage   *domain.Image
	gotHistory []string
	gotSimilar *usecase.SimilarReq
}

func (f *fakeSearchUC) SearchByImage(_ context.Context, req *usecase.SearchByImageReq) (*usecase.SearchRes, error) {
	f.gotImage = req.Image
	if f.err != nil {
		return nil, f.err
	}
	return f.searchRes, nil
}

func (f *fakeSearchUC) Recommend(_ context.Context, req *usecase.RecommendReq) (*usecase.RecommendRes, error) {
	f.gotHistory = req.History
	if len(req.History) == 0 {
		return nil, e.ErrNoHistory
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.recRes, nil
}

func (f *fakeSearchUC) Similar(_ context.Context, req *usecase.SimilarReq) (*usecase.RecommendRes, error) {
	f.gotSimilar = req
	if f.err != nil {
		return nil, f.err
	}
	return f.recRes, nil
}

type fakeAnalyzeUC struct {
	res *domain.Analysis
	err error
}

func (f *fakeAnalyzeUC) Analyze(_ context.Context, _ *usecase.AnalyzeReq) (*domain.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func newTestRouter(searchUC usecase.SearchUC, analyzeUC usecase.AnalyzeUC, maxImageSize int64) http.Handler {
	mux := chi.NewRouter()
	router := NewRouter(mux, &cfg.HTTPConfig{
		MaxImageSize:       maxImageSize,
		CORSAllowedOrigins: []string{"*"},
		SwaggerURL:         "/swagger/doc.json",
	}, logger.NewNopLogger())
	router.Init(searchUC, analyzeUC)

	return mux
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	} else if err := mw.WriteField("note", "no file here"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	return body, mw.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestSearchHandler_Search(t *testing.T) {
	uploaded := domain.NewScoredItem("a", 0.9999, "http://shop/a", 0.5)
	uc := &fakeSearchUC{searchRes: usecase.NewSearchRes(&uploaded, []domain.ScoredItem{
		domain.NewScoredItem("b", 0.8, "http://shop/b", 0.1),
	})}
	h := newTestRouter(uc, &fakeAnalyzeUC{}, 1024)

	body, contentType := multipartBody(t, "image", "dress.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Uploaded == nil || resp.Uploaded.ProductID != "a" || resp.Uploaded.URL != "http://shop/a" {
		t.Errorf("uploaded = %+v", resp.Uploaded)
	}
	if len(resp.Results) != 1 || resp.Results[0].ProductID != "b" {
		t.Errorf("results = %+v", resp.Results)
	}
	if uc.gotImage == nil || uc.gotImage.MimeType != "image/png" || uc.gotImage.Name != "dress.png" {
		t.Errorf("image passed to usecase = %+v", uc.gotImage)
	}
}

func TestSearchHandler_SearchEmptyCatalog(t *testing.T) {
	uc := &fakeSearchUC{searchRes: usecase.NewSearchRes(nil, nil)}
	h := newTestRouter(uc, &fakeAnalyzeUC{}, 1024)

	body, contentType := multipartBody(t, "image", "x.png", pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := rec.Body.String()
	if !strings.Contains(got, `"uploaded":null`) || !strings.Contains(got, `"results":[]`) {
		t.Errorf("body = %s", got)
	}
}

func TestSearchHandler_SearchErrors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		field       string
		data        []byte
		ucErr       error
		wantStatus  int
	}{
		{"not multipart", "application/json", "", nil, nil, http.StatusBadRequest},
		{"no image field", "", "", nil, nil, http.StatusBadRequest},
		{"empty file", "", "image", []byte{}, nil, http.StatusBadRequest},
		{"text file", "", "image", []byte("just some text, not a picture"), nil, http.StatusUnsupportedMediaType},
		{"too large", "", "image", append(append([]byte{}, pngHeader...), make([]byte, 100)...), nil, http.StatusRequestEntityTooLarge},
		{"ml failure", "", "image", pngHeader, e.Wrap("vectorize", e.ErrEmbeddingFailed), http.StatusBadGateway},
		{"dimension mismatch", "", "image", pngHeader, e.ErrDimensionMismatch, http.StatusBadGateway},
		{"unexpected", "", "image", pngHeader, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeSearchUC{err: tt.ucErr, searchRes: usecase.NewSearchRes(nil, nil)}
			h := newTestRouter(uc, &fakeAnalyzeUC{}, 64)

			var req *http.Request
			if tt.contentType != "" {
				req = httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{}`))
				req.Header.Set("Content-Type", tt.contentType)
			} else {
				body, contentType := multipartBody(t, tt.field, "upload.bin", tt.data)
				req = httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
				req.Header.Set("Content-Type", contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantStatus || resp.Message == "" {
				t.Errorf("error body = %+v", resp)
			}
		})
	}
}

func TestSearchHandler_Recommend(t *testing.T) {
	uc := &fakeSearchUC{recRes: usecase.NewRecommendRes([]domain.ScoredItem{
		domain.NewScoredItem("c", 1.75, "http://shop/c", 0),
	})}
	h := newTestRouter(uc, &fakeAnalyzeUC{}, 1024)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"history":["a","b"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp RecommendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ProductID != "c" || resp.Results[0].Score != 1.75 {
		t.Errorf("results = %+v", resp.Results)
	}
	if len(uc.gotHistory) != 2 || uc.gotHistory[0] != "a" {
		t.Errorf("history = %v", uc.gotHistory)
	}
}

func TestSearchHandler_RecommendBadRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"invalid json", `{"history":`, e.ErrInvalidJSON.Error()},
		{"empty history", `{"history":[]}`, e.ErrNoHistory.Error()},
		{"missing history", `{}`, e.ErrNoHistory.Error()},
		{"empty body", ``, e.ErrNoHistory.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeSearchUC{}, &fakeAnalyzeUC{}, 1024)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMsg)
			}
		})
	}
}

func TestSearchHandler_Similar(t *testing.T) {
	uc := &fakeSearchUC{recRes: usecase.NewRecommendRes([]domain.ScoredItem{
		domain.NewScoredItem("b", 0.9, "", 0),
	})}
	h := newTestRouter(uc, &fakeAnalyzeUC{}, 1024)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/a/similar?top_k=3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if uc.gotSimilar == nil || uc.gotSimilar.ProductID != "a" || uc.gotSimilar.TopK != 3 {
		t.Errorf("similar req = %+v", uc.gotSimilar)
	}
}

func TestSearchHandler_SimilarErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		ucErr      error
		wantStatus int
	}{
		{"unknown product", "/api/v1/products/zzz/similar", e.Wrap("zzz", e.ErrProductNotFound), http.StatusNotFound},
		{"non numeric top_k", "/api/v1/products/a/similar?top_k=abc", nil, http.StatusBadRequest},
		{"zero top_k", "/api/v1/products/a/similar?top_k=0", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeSearchUC{err: tt.ucErr}, &fakeAnalyzeUC{}, 1024)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestAnalyzeHandler_Analyze(t *testing.T) {
	tests := []struct {
		name       string
		uc         *fakeAnalyzeUC
		wantStatus int
		wantMsg    string
	}{
		{"success", &fakeAnalyzeUC{res: domain.NewAnalysis("A red dress", []string{"Gold earrings"})}, http.StatusOK, ""},
		{"disabled", &fakeAnalyzeUC{err: e.ErrDescriberDisabled}, http.StatusServiceUnavailable, e.ErrDescriberDisabled.Error()},
		{"model failure", &fakeAnalyzeUC{err: e.Wrap("describe", e.ErrAnalyzeFailed)}, http.StatusInternalServerError, e.ErrAnalyzeFailed.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeSearchUC{}, tt.uc, 1024)

			body, contentType := multipartBody(t, "image", "dress.png", pngHeader)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if resp := decodeError(t, rec); resp.Message != tt.wantMsg {
					t.Errorf("message = %q, want %q", resp.Message, tt.wantMsg)
				}
				return
			}

			var resp AnalyzeResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Description != "A red dress" || len(resp.Suggestions) != 1 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestRouter_Healthz(t *testing.T) {
	h := newTestRouter(&fakeSearchUC{}, &fakeAnalyzeUC{}, 1024)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(&fakeSearchUC{}, &fakeAnalyzeUC{}, 1024)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/healthz"`) {
		t.Errorf("metrics do not contain /healthz request")
	}
}

func TestToHTTPResponse(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{e.ErrNoImage, http.StatusBadRequest},
		{e.ErrExpectedMultipart, http.StatusBadRequest},
		{e.ErrNoHistory, http.StatusBadRequest},
		{e.ErrProductNotFound, http.StatusNotFound},
		{e.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{e.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{e.ErrEmbeddingFailed, http.StatusBadGateway},
		{e.ErrDescriberDisabled, http.StatusServiceUnavailable},
		{e.ErrAnalyzeFailed, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got, _ := ToHTTPResponse(e.Wrap("op", tt.err)); got != tt.want {
			t.Errorf("ToHTTPResponse(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSearchHandler_SimilarHugeTopK(t *testing.T) {
	store, err := catalog.NewStore([]domain.CatalogItem{
		*domain.NewCatalogItem("a", []float32{1, 0}, "", "", 0, ""),
		*domain.NewCatalogItem("b", []float32{0.8, 0.6}, "", "", 0, ""),
		*domain.NewCatalogItem("c", []float32{0, 1}, "", "", 0, ""),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ranker := catalog.NewRanker(store)
	uc := usecase.NewSearchUC(store, ranker, catalog.NewAggregator(store, ranker, 1), catalog.NewTrendScorer(),
		nil, nil, &cfg.CatalogCfg{SearchTopK: 2, PerItemTopK: 2, RecommendLimit: 2}, logger.NewNopLogger())
	h := newTestRouter(uc, &fakeAnalyzeUC{}, 1024)

	tests := []struct {
		name       string
		topK       string
		wantStatus int
		wantLen    int
	}{
		{"2^40", "1099511627776", http.StatusOK, 2},
		{"max int64", "9223372036854775807", http.StatusOK, 2},
		{"overflows int", "99999999999999999999", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/a/similar?top_k="+tt.topK, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp RecommendResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp.Results) != tt.wantLen || resp.Results[0].ProductID != "b" {
				t.Errorf("results = %+v", resp.Results)
			}
		})
	}
}
