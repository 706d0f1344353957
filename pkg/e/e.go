package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки каталога и векторов
	ErrEmptyProductID       = fmt.Errorf("product id is empty")
	ErrDuplicateProduct     = fmt.Errorf("duplicate product id")
	ErrVectorEmbeddingEmpty = fmt.Errorf("vector embedding is empty")
	ErrDimensionMismatch    = fmt.Errorf("embedding dimension mismatch")
	ErrInvalidTopK          = fmt.Errorf("top_k must be positive")
	ErrUnknownCatalogSource = fmt.Errorf("unknown catalog source")
	ErrInvalidSnapshot      = fmt.Errorf("invalid catalog snapshot")

	// Ошибки внешних сервисов
	ErrEmbeddingFailed    = fmt.Errorf("failed to embed image")
	ErrAnalyzeFailed      = fmt.Errorf("failed to analyze image")
	ErrDescriberDisabled  = fmt.Errorf("image analysis is disabled")
	ErrEmptyModelResponse = fmt.Errorf("empty model response")
	ErrCacheMiss          = fmt.Errorf("cache miss")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrNoImage              = fmt.Errorf("no image provided")
	ErrNoHistory            = fmt.Errorf("no history provided")
	ErrInvalidJSON          = fmt.Errorf("invalid json body")
	ErrProductNotFound      = fmt.Errorf("product not found")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrFileTooLarge         = fmt.Errorf("file too large")

	// 500
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
	ErrMissingEnvVariable   = fmt.Errorf("missing environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
