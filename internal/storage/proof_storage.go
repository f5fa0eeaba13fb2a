package storage

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

// Разрешённые типы файлов подтверждения оплаты (скриншоты и выписки).
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

// ProofFile - проверенный файл, готовый к отправке на сервер.
type ProofFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f *ProofFile) Size() int64 {
	return int64(len(f.Data))
}

// Reader отдаёт содержимое файла для multipart запроса.
func (f *ProofFile) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// ProofStorage проверяет файлы подтверждений до загрузки и строит ссылки
// на уже загруженные файлы в публичном хранилище сервера.
type ProofStorage struct {
	baseURL        string
	maxUploadBytes int64
}

// NewProofStorage создаёт хранилище. baseURL - адрес статики сервера.
func NewProofStorage(baseURL string, maxUploadMB int64) *ProofStorage {
	return &ProofStorage{
		baseURL:        strings.TrimRight(baseURL, "/"),
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}
}

// Inspect читает файл и проверяет размер, расширение и реальный тип по магическим байтам.
func (s *ProofStorage) Inspect(originalName string, r io.Reader) (*ProofFile, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return nil, apperror.New(apperror.ErrCodeValidation,
			"Неподдерживаемый формат файла. Разрешены изображения и PDF")
	}

	limited := io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	data, err := io.ReadAll(&limited)
	if err != nil {
		return nil, fmt.Errorf("storage: ошибка чтения файла: %w", err)
	}
	if len(data) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "Файл не может быть пустым")
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("Размер файла превышает %d МБ", s.maxUploadBytes/(1024*1024)))
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil, apperror.New(apperror.ErrCodeValidation, "Не удалось определить тип файла")
	}

	contentType := kind.MIME.Value
	if !allowedMimeTypes[contentType] {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("Неподдерживаемый тип файла (%s)", contentType))
	}

	// .jpg и .jpeg - это одно и то же
	expectedExt := "." + kind.Extension
	if ext != expectedExt && !(ext == ".jpg" && expectedExt == ".jpeg") && !(ext == ".jpeg" && expectedExt == ".jpg") {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("Расширение файла (%s) не соответствует реальному типу (%s)", ext, expectedExt))
	}

	return &ProofFile{
		Name:        sanitizeFilename(originalName),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// URL возвращает публичную ссылку на файл по относительному пути из ответа сервера.
func (s *ProofStorage) URL(relativePath string) string {
	if relativePath == "" {
		return ""
	}
	if strings.HasPrefix(relativePath, "http://") || strings.HasPrefix(relativePath, "https://") {
		return relativePath
	}
	return s.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(relativePath), "/")
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(filepath.ToSlash(name))
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." {
		name = "proof"
	}
	return name
}
