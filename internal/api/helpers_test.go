package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"imobiliaria/server/internal/database"
	"imobiliaria/server/internal/events"
	"imobiliaria/server/internal/listing"
	"imobiliaria/server/internal/models"
	"imobiliaria/server/internal/storage"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01")
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// failingListings fails the configured write operations.
type failingListings struct {
	ListingStore
	createErr error
	updateErr error
}

func (f failingListings) Create(ctx context.Context, l *models.Listing) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.ListingStore.Create(ctx, l)
}

func (f failingListings) Update(ctx context.Context, id int64, l *models.Listing) (*models.Listing, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.ListingStore.Update(ctx, id, l)
}

// undeletableStorage stores normally but never deletes.
type undeletableStorage struct {
	storage.Storage
}

func (undeletableStorage) Delete(ctx context.Context, ref string) error {
	return errors.New("bucket is read-only")
}

type testEnv struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	local     *storage.LocalStorage
	orphans   *database.OrphanRepository
	publisher *recordingPublisher
}

type envOptions struct {
	listing   func(*listing.Options)
	listings  func(ListingStore) ListingStore
	storage   func(storage.Storage) storage.Storage
	uploadsMB int
}

func newTestEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	db, err := database.NewTestDB()
	require.NoError(t, err)
	require.NoError(t, database.MigrateSchema(db))

	local, err := storage.NewLocalStorage(storage.LocalConfig{Dir: t.TempDir(), PublicPath: "/uploads"}, "imobiliaria", logger)
	require.NoError(t, err)

	opts := listing.DefaultOptions()
	if o.listing != nil {
		o.listing(&opts)
	}
	normalizer, err := listing.NewNormalizer(opts)
	require.NoError(t, err)

	var listings ListingStore = database.NewListingRepository(db)
	if o.listings != nil {
		listings = o.listings(listings)
	}
	var store storage.Storage = local
	if o.storage != nil {
		store = o.storage(local)
	}
	limits := storage.DefaultUploadLimits()
	if o.uploadsMB > 0 {
		limits.MaxSizeMB = o.uploadsMB
	}

	orphans := database.NewOrphanRepository(db)
	publisher := &recordingPublisher{}
	handler := NewHandler(HandlerConfig{
		Listings:   listings,
		Orphans:    orphans,
		Storage:    store,
		Normalizer: normalizer,
		Files:      storage.NewFileValidator(limits),
		Events:     publisher,
		Logger:     logger,
	})
	router := NewRouter(handler, RouterConfig{
		AllowedOrigins: []string{"*"},
		StaticPath:     "/uploads",
		StaticDir:      local.Dir(),
	}, logger)

	return &testEnv{t: t, db: db, router: router, local: local, orphans: orphans, publisher: publisher}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) sendJSON(method, path string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(e.t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

type filePart struct {
	field    string
	filename string
	content  []byte
}

func (e *testEnv) sendMultipart(method, path string, fields map[string]string, files ...filePart) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(e.t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(e.t, err)
		_, err = part.Write(f.content)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(req)
}

// storedFiles lists every file under the upload directory.
func (e *testEnv) storedFiles() []string {
	var files []string
	err := filepath.WalkDir(e.local.Dir(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(e.t, err)
	return files
}

func (e *testEnv) fileExists(ref string) bool {
	path := filepath.Join(e.local.Dir(), filepath.FromSlash(strings.TrimPrefix(ref, "/uploads/")))
	_, err := os.Stat(path)
	return err == nil
}

func (e *testEnv) orphanRefs() []string {
	rows, err := e.orphans.NextBatch(context.Background(), 0, 100)
	require.NoError(e.t, err)
	refs := make([]string, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, r.Ref)
	}
	return refs
}

func decodeListing(t *testing.T, w *httptest.ResponseRecorder) models.Listing {
	t.Helper()
	var l models.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l), w.Body.String())
	return l
}

type issuesBody struct {
	Error  string               `json:"error"`
	Issues []listing.FieldError `json:"issues"`
}

func decodeIssues(t *testing.T, w *httptest.ResponseRecorder) issuesBody {
	t.Helper()
	var body issuesBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (b issuesBody) fields() []string {
	out := make([]string, 0, len(b.Issues))
	for _, i := range b.Issues {
		out = append(out, i.Field)
	}
	return out
}

// formFields is a complete listing in the Portuguese field names existing
// clients send.
func formFields() map[string]string {
	return map[string]string{
		"titulo":          "Casa com piscina",
		"descricao":       "Casa ampla perto do centro",
		"descricaoPrevia": "Casa ampla",
		"status":          "Disponível",
		"quartos":         "3",
		"banheiros":       "2",
		"garagem":         "1",
		"preco":           "450000.50",
		"localizacao":     "Centro",
		"tipo":            "Casa",
		"metragemCasa":    "120",
		"metragemTerreno": "300",
	}
}

func (e *testEnv) createListing(fields map[string]string, files ...filePart) models.Listing {
	e.t.Helper()
	w := e.sendMultipart(http.MethodPost, "/produtos", fields, files...)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeListing(e.t, w)
}
