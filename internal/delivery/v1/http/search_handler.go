package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const maxJSONBodySize = 1 << 20

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	maxImageSize  int64
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, maxImageSize int64, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, maxImageSize: maxImageSize, logger: logger}
}

// search
//
//	@Summary		Поиск похожих товаров по изображению
//	@Description	Первый результат (uploaded) соответствует загруженному товару, results содержит похожие товары
//	@Tags			search
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file			true	"Изображение товара"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse	"Нет изображения"
//	@Failure		413		{object}	ErrorResponse	"Слишком большой файл"
//	@Failure		415		{object}	ErrorResponse	"Неподдерживаемый тип изображения"
//	@Failure		502		{object}	ErrorResponse	"Ошибка ML-сервиса"
//	@Router			/search [post]
func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(w, r, "image", h.maxImageSize)
	if err != nil {
		h.logger.Warnf("search: %v", err)
		WriteError(w, err)
		return
	}

	res, err := h.searchUsecase.SearchByImage(r.Context(), usecase.NewSearchByImageReq(image))
	if err != nil {
		h.logger.Errorf(err, "search by image %q", image.Name)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSearchResponse(res))
}

// recommend
//
//	@Summary		Рекомендации по истории просмотров
//	@Description	Суммирует близость соседей каждого товара истории, товары истории исключаются
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecommendRequest	true	"История просмотров"
//	@Success		200		{object}	RecommendResponse
//	@Failure		400		{object}	ErrorResponse	"Пустая история или некорректный JSON"
//	@Router			/recommendations [post]
func (h *SearchHandler) recommend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			h.logger.Warnf("recommend: decode body: %v", err)
			WriteError(w, e.Wrap("recommend", e.ErrInvalidJSON))
			return
		}
	}

	res, err := h.searchUsecase.Recommend(r.Context(), usecase.NewRecommendReq(req.History))
	if err != nil {
		h.logger.Warnf("recommend: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &RecommendResponse{Results: toItemsResponse(res.Results)})
}

// similar
//
//	@Summary		Похожие товары каталога
//	@Description	Ближайшие соседи товара без него самого
//	@Tags			search
//	@Produce		json
//	@Param			id		path		string	true	"Идентификатор товара"
//	@Param			top_k	query		int		false	"Количество результатов"
//	@Success		200		{object}	RecommendResponse
//	@Failure		400		{object}	ErrorResponse	"Некорректный top_k"
//	@Failure		404		{object}	ErrorResponse	"Товар не найден"
//	@Router			/products/{id}/similar [get]
func (h *SearchHandler) similar(w http.ResponseWriter, r *http.Request) {
	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, e.Wrap("top_k="+raw, e.ErrInvalidTopK))
			return
		}
		topK = n
	}

	res, err := h.searchUsecase.Similar(r.Context(), usecase.NewSimilarReq(chi.URLParam(r, "id"), topK))
	if err != nil {
		h.logger.Warnf("similar: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &RecommendResponse{Results: toItemsResponse(res.Results)})
}
