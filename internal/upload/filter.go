package upload

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"storylens/internal/models"
)

// MaxFileSize - верхняя граница размера изображения.
const MaxFileSize = 10 << 20

// AcceptedFormatsHint показывается пользователю при отклонении файла.
const AcceptedFormatsHint = "JPEG, PNG, WebP (max 10MB)"

var allowedExtensions = map[string]struct{}{
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".webp": {},
}

var allowedMIME = []string{"image/jpeg", "image/png", "image/webp"}

// AcceptAttr - значение атрибута accept для <input type="file">.
const AcceptAttr = ".jpeg,.jpg,.png,.webp,image/jpeg,image/png,image/webp"

// Filter проверяет список выбранных файлов: ровно один, разрешенные расширение
// и содержимое, не больше MaxFileSize. Возвращает файл с определенным типом содержимого.
func Filter(files []models.ImageFile) (models.ImageFile, error) {
	if len(files) != 1 {
		return models.ImageFile{}, fmt.Errorf("%w: expected exactly one file, got %d", models.ErrValidationRejected, len(files))
	}
	f := files[0]

	ext := strings.ToLower(filepath.Ext(f.Name))
	if _, ok := allowedExtensions[ext]; !ok {
		return models.ImageFile{}, fmt.Errorf("%w: extension %q is not allowed", models.ErrValidationRejected, ext)
	}
	if f.Size() == 0 {
		return models.ImageFile{}, fmt.Errorf("%w: file is empty", models.ErrValidationRejected)
	}
	if f.Size() > MaxFileSize {
		return models.ImageFile{}, fmt.Errorf("%w: file is %d bytes, limit %d", models.ErrValidationRejected, f.Size(), MaxFileSize)
	}

	// Тип определяем по содержимому, заявленному браузером не доверяем
	detected := mimetype.Detect(f.Data)
	if !mimetype.EqualsAny(detected.String(), allowedMIME...) {
		return models.ImageFile{}, fmt.Errorf("%w: content type %q is not allowed", models.ErrValidationRejected, detected.String())
	}
	f.ContentType = detected.String()
	return f, nil
}

// PreviewDataURL кодирует изображение в data URL для предпросмотра.
func PreviewDataURL(f models.ImageFile) string {
	return "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}
