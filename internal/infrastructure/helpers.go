package infrastructure

import (
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/gabriel-vasile/mimetype"
)

// DetectImageMIME определяет тип изображения по содержимому, а не по заголовку клиента.
// Поддерживает jpeg, png, webp и gif. Для остальных типов возвращает e.ErrUnsupportedMediaType.
func DetectImageMIME(data []byte) (string, error) {
	mtype := mimetype.Detect(data)

	switch {
	case mtype.Is("image/jpeg"):
		return "image/jpeg", nil
	case mtype.Is("image/png"):
		return "image/png", nil
	case mtype.Is("image/webp"):
		return "image/webp", nil
	case mtype.Is("image/gif"):
		return "image/gif", nil
	default:
		return mtype.String(), e.Wrap(mtype.String(), e.ErrUnsupportedMediaType)
	}
}
