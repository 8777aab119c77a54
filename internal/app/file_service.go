package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"smartfile-qa/internal/cache"
	"smartfile-qa/internal/filestore"
	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/filetoken"
	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/repository"
	"smartfile-qa/internal/retrieval"
)

type UploadInput struct {
	Session  *model.Session
	Filename string
	MimeType string
	Data     []byte
}

// FileView is a catalog entry or cached upload together with fresh links.
type FileView struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
	DownloadURL  string    `json:"download_url"`
	PreviewURL   string    `json:"preview_url"`
	Persisted    bool      `json:"persisted"`
}

// FileContent is the material a question can be asked about.
type FileContent struct {
	Name     string
	MimeType string
	Data     []byte
}

type FileService struct {
	fileRepo *repository.FileRepository
	store    *filestore.Store
	uploads  *cache.UploadCache
	tokens   *filetoken.Service
	baseURL  string
	maxBytes int64
	now      func() time.Time
}

func NewFileService(
	fileRepo *repository.FileRepository,
	store *filestore.Store,
	uploads *cache.UploadCache,
	tokens *filetoken.Service,
	baseURL string,
	maxBytes int64,
) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		store:    store,
		uploads:  uploads,
		tokens:   tokens,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// Upload keeps the bytes in the session cache, writes them to disk and
// records them in the catalog. A catalog failure is logged and the upload
// is still served through the "current" id.
func (s *FileService) Upload(ctx context.Context, input UploadInput) (*FileView, error) {
	if input.Session == nil {
		return nil, ErrSessionNotFound
	}
	name := strings.TrimSpace(input.Filename)
	if name == "" {
		return nil, ErrFileRequired
	}
	if len(input.Data) == 0 {
		return nil, ErrFileEmpty
	}
	if s.maxBytes > 0 && int64(len(input.Data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	mimeType := DetectMimeType(input.MimeType, input.Data)
	sessionKey := input.Session.SessionKey
	uploadedAt := s.now()

	saved, err := s.store.Save(ctx, sessionKey, input.Data, name, mimeType)
	if err != nil {
		return nil, err
	}
	s.uploads.Set(sessionKey, cache.Upload{
		SessionID:  sessionKey,
		Data:       input.Data,
		Filename:   name,
		MimeType:   mimeType,
		Size:       saved.Size,
		UploadedAt: uploadedAt,
	})

	row := &model.File{
		SessionID:    input.Session.ID,
		StoredName:   saved.StoredName,
		OriginalName: name,
		MimeType:     mimeType,
		Size:         saved.Size,
		StoragePath:  saved.RelPath,
	}
	if err := s.fileRepo.Create(ctx, row); err != nil {
		logging.Warn("catalog upload failed, serving from session cache", "session", sessionKey, "file", saved.StoredName, "err", err)
		return s.view(sessionKey, retrieval.CurrentFileID, name, name, mimeType, saved.Size, uploadedAt, false)
	}

	logging.Info("file uploaded", "session", sessionKey, "id", row.ID, "name", name, "mimetype", mimeType, "size", row.Size)
	return s.view(sessionKey, row.Key(), row.StoredName, row.OriginalName, row.MimeType, row.Size, row.UploadedAt, true)
}

// List returns the session's catalog files, newest first, each with links
// minted for this call.
func (s *FileService) List(ctx context.Context, session *model.Session) ([]FileView, error) {
	if session == nil {
		return nil, ErrSessionNotFound
	}
	files, err := s.fileRepo.ListSessionFiles(ctx, session.SessionKey)
	if err != nil {
		return nil, err
	}

	views := make([]FileView, 0, len(files))
	for _, f := range files {
		v, err := s.view(session.SessionKey, f.Key(), f.StoredName, f.OriginalName, f.MimeType, f.Size, f.UploadedAt, true)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Delete soft-deletes the catalog row and removes the bytes. A disk failure
// is logged; the row stays deleted either way.
func (s *FileService) Delete(ctx context.Context, session *model.Session, id uint) error {
	if session == nil {
		return ErrSessionNotFound
	}
	if id == 0 {
		return ErrInvalidInput
	}
	file, err := s.fileRepo.GetByIDAndSessionID(ctx, id, session.ID)
	if err != nil {
		return err
	}
	if file == nil {
		return ErrFileNotFound
	}
	if err := s.fileRepo.SoftDelete(ctx, file.ID); err != nil {
		return err
	}

	if upload, ok := s.uploads.Get(session.SessionKey); ok && (upload.Filename == file.OriginalName || upload.Filename == file.StoredName) {
		s.uploads.Clear(session.SessionKey)
	}

	removed, err := s.store.Delete(ctx, file.StoragePath)
	if err != nil {
		logging.Warn("delete stored file failed", "session", session.SessionKey, "path", file.StoragePath, "err", err)
		return nil
	}
	logging.Info("file deleted", "session", session.SessionKey, "id", file.ID, "removed_from_disk", removed)
	return nil
}

// Content loads a file for question answering. An empty id or "current"
// means the session's latest upload.
func (s *FileService) Content(ctx context.Context, session *model.Session, fileID string) (*FileContent, error) {
	if session == nil {
		return nil, ErrSessionNotFound
	}
	fileID = strings.TrimSpace(fileID)
	if fileID == "" || fileID == retrieval.CurrentFileID {
		upload, ok := s.uploads.Get(session.SessionKey)
		if !ok {
			return nil, ErrFileNotFound
		}
		return &FileContent{Name: upload.Filename, MimeType: upload.MimeType, Data: upload.Data}, nil
	}

	id, err := parseFileID(fileID)
	if err != nil {
		return nil, err
	}
	file, err := s.fileRepo.GetByIDAndSessionID(ctx, id, session.ID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	data, err := s.store.Read(ctx, file.StoragePath)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return &FileContent{Name: file.OriginalName, MimeType: file.MimeType, Data: data}, nil
}

// Links mints download and preview links for one file.
func (s *FileService) Links(sessionKey, fileID, filename string) (string, string, error) {
	download, err := s.tokens.DownloadLink(s.baseURL, sessionKey, fileID, filename)
	if err != nil {
		return "", "", err
	}
	preview, err := s.tokens.PreviewLink(s.baseURL, sessionKey, fileID, filename)
	if err != nil {
		return "", "", err
	}
	return download, preview, nil
}

func (s *FileService) view(sessionKey, id, storedName, originalName, mimeType string, size int64, uploadedAt time.Time, persisted bool) (*FileView, error) {
	download, preview, err := s.Links(sessionKey, id, originalName)
	if err != nil {
		return nil, err
	}
	return &FileView{
		ID:           id,
		Filename:     storedName,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		UploadedAt:   uploadedAt,
		DownloadURL:  download,
		PreviewURL:   preview,
		Persisted:    persisted,
	}, nil
}

// DetectMimeType trusts a specific client-declared type and sniffs the
// content otherwise.
func DetectMimeType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}
