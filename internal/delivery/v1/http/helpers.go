package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
)

// multipartOverhead — запас на границы и заголовки multipart поверх размера изображения.
const multipartOverhead = 1 << 20

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет ошибку со статусом и сообщением для клиента.
// Причина ошибок внешних сервисов клиенту не раскрывается.
func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrNoImage):
		return http.StatusBadRequest, e.ErrNoImage.Error()
	case errors.Is(err, e.ErrExpectedMultipart):
		return http.StatusBadRequest, e.ErrExpectedMultipart.Error()
	case errors.Is(err, e.ErrNoHistory):
		return http.StatusBadRequest, e.ErrNoHistory.Error()
	case errors.Is(err, e.ErrInvalidJSON):
		return http.StatusBadRequest, e.ErrInvalidJSON.Error()
	case errors.Is(err, e.ErrInvalidTopK):
		return http.StatusBadRequest, e.ErrInvalidTopK.Error()
	case errors.Is(err, e.ErrEmptyProductID):
		return http.StatusBadRequest, e.ErrEmptyProductID.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrProductNotFound):
		return http.StatusNotFound, e.ErrProductNotFound.Error()
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error()
	case errors.Is(err, e.ErrEmbeddingFailed), errors.Is(err, e.ErrDimensionMismatch):
		return http.StatusBadGateway, e.ErrEmbeddingFailed.Error()
	case errors.Is(err, e.ErrDescriberDisabled):
		return http.StatusServiceUnavailable, e.ErrDescriberDisabled.Error()
	case errors.Is(err, e.ErrAnalyzeFailed):
		return http.StatusInternalServerError, e.ErrAnalyzeFailed.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}
		return e.Wrap(whereami.WhereAmI(), errors.Join(e.ErrExpectedMultipart, err))
	}

	return nil
}

// readImage читает файл изображения из multipart-формы и определяет его тип по содержимому.
func readImage(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (*domain.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := ensureMultipartForm(r, maxSize); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, e.Wrap(field, e.ErrNoImage)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if len(data) == 0 {
		return nil, e.Wrap(header.Filename, e.ErrNoImage)
	}
	if int64(len(data)) > maxSize {
		return nil, e.Wrap(header.Filename, e.ErrFileTooLarge)
	}

	mimeType, err := infrastructure.DetectImageMIME(data)
	if err != nil {
		return nil, e.Wrap(header.Filename, err)
	}

	return domain.NewImage(data, mimeType, header.Filename), nil
}
