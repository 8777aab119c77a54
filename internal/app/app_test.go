package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smartfile-qa/internal/ai"
	"smartfile-qa/internal/cache"
	"smartfile-qa/internal/filestore"
	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/filetoken"
	"smartfile-qa/internal/repository"
	"smartfile-qa/internal/worker"
)

type fakeLLM struct {
	configured bool
	answer     string
	err        error
	got        [][]ai.ChatMessage
}

func (f *fakeLLM) Configured() bool { return f.configured }

func (f *fakeLLM) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.got = append(f.got, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []interface{}
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type memoryHistory struct {
	entries map[string][]model.Conversation
	dirty   map[string]bool
	gets    int
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{entries: map[string][]model.Conversation{}, dirty: map[string]bool{}}
}

func (m *memoryHistory) GetHistory(_ context.Context, key string) ([]model.Conversation, bool, error) {
	m.gets++
	c, ok := m.entries[key]
	return c, ok, nil
}

func (m *memoryHistory) SetHistory(_ context.Context, key string, c []model.Conversation) error {
	m.entries[key] = c
	return nil
}

func (m *memoryHistory) DeleteHistory(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memoryHistory) MarkDirty(_ context.Context, key string) error {
	m.dirty[key] = true
	return nil
}

func (m *memoryHistory) IsDirty(_ context.Context, key string) (bool, error) {
	return m.dirty[key], nil
}

type fixture struct {
	db        *gorm.DB
	store     *filestore.Store
	uploads   *cache.UploadCache
	sessions  *SessionService
	files     *FileService
	qa        *QAService
	reports   *ReportService
	stats     *StatsService
	llm       *fakeLLM
	publisher *fakePublisher
	history   *memoryHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Session{}, &model.File{}, &model.Conversation{}))

	tokens, err := filetoken.NewService("app-test-secret", time.Hour)
	require.NoError(t, err)
	uploads, err := cache.NewUploadCache(16)
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		store:     filestore.New(afero.NewMemMapFs(), "/uploads"),
		uploads:   uploads,
		llm:       &fakeLLM{configured: true, answer: "It says hello."},
		publisher: &fakePublisher{},
		history:   newMemoryHistory(),
	}

	sessionRepo := repository.NewSessionRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	f.sessions = NewSessionService(sessionRepo, repository.NewUserRepository(db), uploads)
	f.files = NewFileService(repository.NewFileRepository(db), f.store, uploads, tokens, "http://files.test/", 1<<20)
	f.qa = NewQAService(f.files, conversationRepo, f.llm, f.publisher, f.history, 100)
	f.reports = NewReportService(sessionRepo, conversationRepo, f.files, f.publisher, "Test Report")
	f.stats = NewStatsService(repository.NewStatsRepository(db), uploads)
	return f
}

func (f *fixture) session(t *testing.T) *model.Session {
	t.Helper()
	s, created, err := f.sessions.Ensure(context.Background(), "")
	require.NoError(t, err)
	require.True(t, created)
	return s
}

func TestSessionEnsure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.session(t)
	assert.True(t, ValidSessionKey(s.SessionKey))
	assert.Len(t, s.SessionKey, 32)

	again, created, err := f.sessions.Ensure(ctx, s.SessionKey)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.ID, again.ID)

	orphan := strings.Repeat("ab", 16)
	revived, created, err := f.sessions.Ensure(ctx, orphan)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, orphan, revived.SessionKey)

	fresh, created, err := f.sessions.Ensure(ctx, "../../etc")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "../../etc", fresh.SessionKey)
}

func TestSessionResetClearsUploadCache(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	f.uploads.Set(s.SessionKey, cache.Upload{Filename: "a.txt", Data: []byte("a")})

	next, err := f.sessions.Reset(context.Background(), s.SessionKey)
	require.NoError(t, err)
	assert.NotEqual(t, s.SessionKey, next.SessionKey)
	_, ok := f.uploads.Get(s.SessionKey)
	assert.False(t, ok)
}

func TestAttachEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)

	_, err := f.sessions.AttachEmail(ctx, s, "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = f.sessions.AttachEmail(ctx, s, "Bob <bob@example.com>")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	updated, err := f.sessions.AttachEmail(ctx, s, "  Someone@Example.com ")
	require.NoError(t, err)
	require.NotNil(t, updated.User)
	assert.Equal(t, "someone@example.com", updated.User.Email)
}

func TestUploadStoresEverywhereAndLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)

	view, err := f.files.Upload(ctx, UploadInput{Session: s, Filename: "notes.txt", MimeType: "text/plain", Data: []byte("hello world")})
	require.NoError(t, err)
	assert.True(t, view.Persisted)
	assert.NotEqual(t, "current", view.ID)
	assert.Contains(t, view.DownloadURL, "http://files.test/secure-download/"+s.SessionKey+"/"+view.ID+"/notes.txt?token=")
	assert.True(t, strings.HasSuffix(view.PreviewURL, "&preview=true"))

	cached, ok := f.uploads.Get(s.SessionKey)
	require.True(t, ok)
	assert.Equal(t, "notes.txt", cached.Filename)

	listed, err := f.files.List(ctx, s)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, view.ID, listed[0].ID)

	content, err := f.files.Content(ctx, s, view.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), content.Data)
}

func TestUploadSurvivesCatalogFailure(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	require.NoError(t, f.db.Migrator().DropTable(&model.File{}))

	view, err := f.files.Upload(context.Background(), UploadInput{Session: s, Filename: "a.txt", MimeType: "text/plain", Data: []byte("x")})
	require.NoError(t, err)
	assert.False(t, view.Persisted)
	assert.Equal(t, "current", view.ID)
}

func TestUploadLeavesCacheEmptyWhenStoreFails(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	tokens, err := filetoken.NewService("app-test-secret", time.Hour)
	require.NoError(t, err)
	readOnly := filestore.New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/uploads")
	files := NewFileService(repository.NewFileRepository(f.db), readOnly, f.uploads, tokens, "http://files.test/", 1<<20)

	_, err = files.Upload(context.Background(), UploadInput{Session: s, Filename: "a.txt", MimeType: "text/plain", Data: []byte("rejected")})
	require.Error(t, err)

	_, ok := f.uploads.Get(s.SessionKey)
	assert.False(t, ok)
	_, err = files.Content(context.Background(), s, "current")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)

	_, err := f.files.Upload(ctx, UploadInput{Session: s, Filename: "a.txt"})
	assert.ErrorIs(t, err, ErrFileEmpty)
	_, err = f.files.Upload(ctx, UploadInput{Session: s, Data: []byte("x")})
	assert.ErrorIs(t, err, ErrFileRequired)
	_, err = f.files.Upload(ctx, UploadInput{Session: s, Filename: "big.bin", Data: make([]byte, 2<<20)})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "image/png", DetectMimeType("image/png", []byte("whatever")))
	assert.Equal(t, "application/pdf", DetectMimeType("application/octet-stream", []byte("%PDF-1.4\n%...")))
	assert.True(t, strings.HasPrefix(DetectMimeType("", []byte("plain words")), "text/plain"))
}

func TestDeleteSoftDeletesAndRemovesBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)

	view, err := f.files.Upload(ctx, UploadInput{Session: s, Filename: "a.txt", MimeType: "text/plain", Data: []byte("x")})
	require.NoError(t, err)
	id, err := parseFileID(view.ID)
	require.NoError(t, err)

	require.NoError(t, f.files.Delete(ctx, s, id))
	listed, err := f.files.List(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, listed)
	_, ok := f.uploads.Get(s.SessionKey)
	assert.False(t, ok)

	assert.ErrorIs(t, f.files.Delete(ctx, s, id), ErrFileNotFound)

	other := f.session(t)
	assert.ErrorIs(t, f.files.Delete(ctx, other, id), ErrFileNotFound)
}

func TestAskUsesLatestUploadAndQueuesConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)

	_, err := f.files.Upload(ctx, UploadInput{Session: s, Filename: "notes.txt", MimeType: "text/plain", Data: []byte("hello world")})
	require.NoError(t, err)

	result, err := f.qa.Ask(ctx, AskInput{Session: s, Question: "  what does it say? "})
	require.NoError(t, err)
	assert.Equal(t, "It says hello.", result.Answer)
	assert.True(t, result.HasFile)
	assert.Equal(t, "notes.txt", result.FileName)

	require.Len(t, f.llm.got, 1)
	prompt := f.llm.got[0][1].Content
	assert.Contains(t, prompt, "hello world")
	assert.Contains(t, prompt, "Question: what does it say?")

	require.Len(t, f.publisher.payloads, 1)
	job, ok := f.publisher.payloads[0].(worker.ConversationJob)
	require.True(t, ok)
	assert.Equal(t, s.ID, job.SessionRowID)
	assert.Equal(t, "what does it say?", job.Prompt)
	assert.True(t, f.history.dirty[s.SessionKey])
}

func TestAskWithoutFileAndEmptyAnswer(t *testing.T) {
	f := newFixture(t)
	f.llm.answer = "   "
	s := f.session(t)

	result, err := f.qa.Ask(context.Background(), AskInput{Session: s, Question: "hi"})
	require.NoError(t, err)
	assert.False(t, result.HasFile)
	assert.Equal(t, emptyAnswer, result.Answer)
	assert.Equal(t, "hi", f.llm.got[0][1].Content)
}

func TestAskErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)

	_, err := f.qa.Ask(ctx, AskInput{Session: s, Question: " "})
	assert.ErrorIs(t, err, ErrQuestionEmpty)

	_, err = f.qa.Ask(ctx, AskInput{Session: s, Question: "q", FileID: "999"})
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = f.qa.Ask(ctx, AskInput{Session: s, Question: "q", FileID: "abc"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.llm.err = errors.New("upstream down")
	_, err = f.qa.Ask(ctx, AskInput{Session: s, Question: "q"})
	assert.Error(t, err)

	f.llm.configured = false
	_, err = f.qa.Ask(ctx, AskInput{Session: s, Question: "q"})
	assert.ErrorIs(t, err, ErrLLMNotConfigured)
}

func TestAskWritesDirectlyWhenQueueFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publisher.err = errors.New("broker gone")
	s := f.session(t)

	_, err := f.qa.Ask(ctx, AskInput{Session: s, Question: "first"})
	require.NoError(t, err)

	f.history.dirty = map[string]bool{}
	history, err := f.qa.History(ctx, s, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "first", history[0].Prompt)

	cached, ok := f.history.entries[s.SessionKey]
	require.True(t, ok)
	assert.Len(t, cached, 1)
}

func TestHistoryServesFromCacheUnlessDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)
	f.history.entries[s.SessionKey] = []model.Conversation{{Prompt: "a"}, {Prompt: "b"}, {Prompt: "c"}}

	got, err := f.qa.History(ctx, s, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Prompt)

	f.history.dirty[s.SessionKey] = true
	got, err = f.qa.History(ctx, s, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHistoryLimitedMissCachesFullWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)
	conversations := repository.NewConversationRepository(f.db)
	base := time.Now().Add(-time.Hour)
	for i, prompt := range []string{"a", "b", "c"} {
		require.NoError(t, conversations.Create(ctx, &model.Conversation{
			SessionID: s.ID,
			Prompt:    prompt,
			Answer:    "ok",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := f.qa.History(ctx, s, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Prompt)
	require.Len(t, f.history.entries[s.SessionKey], 3)

	gets := f.history.gets
	got, err = f.qa.History(ctx, s, 1)
	require.NoError(t, err)
	assert.Greater(t, f.history.gets, gets)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Prompt)

	got, err = f.qa.History(ctx, s, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Prompt, got[1].Prompt, got[2].Prompt})
}

func TestBuildPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publisher.err = errors.New("offline")
	s := f.session(t)

	_, err := f.files.Upload(ctx, UploadInput{Session: s, Filename: "notes.txt", MimeType: "text/plain", Data: []byte("hello")})
	require.NoError(t, err)
	_, err = f.qa.Ask(ctx, AskInput{Session: s, Question: "what?"})
	require.NoError(t, err)

	pdf, err := f.reports.BuildPDF(ctx, s.SessionKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))

	_, err = f.reports.BuildPDF(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEnqueueReportEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)

	to, err := f.reports.EnqueueEmail(ctx, s, "Reader@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", to)
	require.Len(t, f.publisher.payloads, 1)
	job, ok := f.publisher.payloads[0].(worker.ReportEmailJob)
	require.True(t, ok)
	assert.Equal(t, s.SessionKey, job.SessionKey)

	_, err = f.reports.EnqueueEmail(ctx, s, "nope")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	f.publisher.err = errors.New("down")
	_, err = f.reports.EnqueueEmail(ctx, s, "reader@example.com")
	assert.ErrorIs(t, err, ErrEnqueue)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)
	_, err := f.files.Upload(ctx, UploadInput{Session: s, Filename: "a.txt", MimeType: "text/plain", Data: make([]byte, 2000)})
	require.NoError(t, err)

	stats, err := f.stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Sessions)
	assert.Equal(t, int64(1), stats.Files)
	assert.Equal(t, int64(2000), stats.StorageBytes)
	assert.Equal(t, "2.0 kB", stats.Storage)
	assert.Equal(t, 1, stats.CachedSessions)
}

func TestDashboardIncludesRecentRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t)
	_, err := f.sessions.AttachEmail(ctx, s, "reader@example.com")
	require.NoError(t, err)
	_, err = f.files.Upload(ctx, UploadInput{Session: s, Filename: "a.txt", MimeType: "text/plain", Data: []byte("abc")})
	require.NoError(t, err)

	dashboard, err := f.stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dashboard.Stats.Files)
	require.Len(t, dashboard.Recent.Sessions, 1)
	assert.Equal(t, "reader@example.com", dashboard.Recent.Sessions[0].Email)
	require.Len(t, dashboard.Recent.Files, 1)
	assert.Equal(t, s.SessionKey, dashboard.Recent.Files[0].SessionKey)
	assert.Empty(t, dashboard.Recent.Conversations)
}
