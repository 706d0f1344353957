package domain

// Image описывает изображение, загруженное пользователем в запросе.
type Image struct {
	Data     []byte // байты изображения
	MimeType string // определённый по содержимому MIME-тип
	Name     string // оригинальное имя файла (для логов)
}

func NewImage(data []byte, mimeType string, name string) *Image {
	return &Image{
		Data:     data,
		MimeType: mimeType,
		Name:     name,
	}
}
