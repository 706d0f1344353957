package http

import (
	"net/http"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

type AnalyzeHandler struct {
	analyzeUsecase usecase.AnalyzeUC
	maxImageSize   int64
	logger         logger.Logger
}

func NewAnalyzeHandler(analyzeUsecase usecase.AnalyzeUC, maxImageSize int64, logger logger.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{analyzeUsecase: analyzeUsecase, maxImageSize: maxImageSize, logger: logger}
}

// analyze
//
//	@Summary		Описание товара и подсказки аксессуаров
//	@Tags			analyze
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file			true	"Изображение товара"
//	@Success		200		{object}	AnalyzeResponse
//	@Failure		400		{object}	ErrorResponse	"Нет изображения"
//	@Failure		429		{object}	ErrorResponse	"Превышен лимит запросов"
//	@Failure		500		{object}	ErrorResponse	"Не удалось проанализировать изображение"
//	@Failure		503		{object}	ErrorResponse	"Анализ отключён"
//	@Router			/analyze [post]
func (h *AnalyzeHandler) analyze(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(w, r, "image", h.maxImageSize)
	if err != nil {
		h.logger.Warnf("analyze: %v", err)
		WriteError(w, err)
		return
	}

	analysis, err := h.analyzeUsecase.Analyze(r.Context(), usecase.NewAnalyzeReq(image))
	if err != nil {
		h.logger.Errorf(err, "analyze image %q", image.Name)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toAnalyzeResponse(analysis))
}
