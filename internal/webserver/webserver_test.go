package webserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/imgstore/internal/cache"
	"github.com/mdouchement/imgstore/internal/checksum"
	"github.com/mdouchement/imgstore/internal/database"
	"github.com/mdouchement/imgstore/internal/storage"
	"github.com/mdouchement/imgstore/internal/webserver"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadResult struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Error  string `json:"error"`
	Status string `json:"status"`
}

type testfile struct {
	name        string
	contentType string
	payload     []byte
}

// faulty fails the chunk writes whose payload holds the trigger bytes, as
// long as it stays armed.
type faulty struct {
	database.Client

	mu    sync.Mutex
	armed bool
}

func (f *faulty) WriteChunk(id string, index int, data []byte) error {
	if bytes.Contains(data, []byte("b00m")) {
		f.mu.Lock()
		armed := f.armed
		f.armed = false
		f.mu.Unlock()

		if armed {
			return errors.New("backend unavailable")
		}
	}
	return f.Client.WriteChunk(id, index, data)
}

func setup(t *testing.T, chunksize int, ttl time.Duration, wrap func(database.Client) database.Client) (*httptest.Server, *storage.Repository, *cache.Cache) {
	t.Helper()

	log := logrus.New()
	log.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	//

	f, err := os.CreateTemp(t.TempDir(), "imgstore.db.")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	db, err := database.StormOpen(f.Name())
	require.NoError(t, err)

	client := database.Client(db)
	if wrap != nil {
		client = wrap(client)
	}

	//

	ctrl := webserver.Controller{
		Version:    "test",
		Logger:     logger.WrapLogrus(log),
		Repository: storage.NewRepository(client, chunksize),
		Cache:      cache.New(ttl),
	}

	server := httptest.NewServer(webserver.EchoEngine(ctrl))
	t.Cleanup(func() {
		server.Close()
		db.Close()
	})

	return server, ctrl.Repository, ctrl.Cache
}

func upload(t *testing.T, server *httptest.Server, files ...testfile) (*http.Response, []uploadResult) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, file := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, file.name))
		h.Set("Content-Type", file.contentType)

		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.payload)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	res, err := http.Post(server.URL+"/upload", w.FormDataContentType(), &body)
	require.NoError(t, err)
	defer res.Body.Close()

	var results []uploadResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&results))
	return res, results
}

func download(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, payload
}

func TestUploadAndDownload(t *testing.T) {
	server, _, _ := setup(t, 50<<10, time.Minute, nil)

	payload := bytes.Repeat([]byte("0123456789abcdef"), (120<<10)/16)

	res, results := upload(t, server, testfile{"picture.png", "image/png", payload})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, results, 1)
	assert.Equal(t, "picture.png", results[0].Name)
	assert.Equal(t, "uploaded", results[0].Status)
	assert.True(t, strings.HasPrefix(results[0].URL, server.URL+"/image/"))
	assert.True(t, strings.HasSuffix(results[0].URL, ".png"))

	res, got := download(t, results[0].URL)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/png", res.Header.Get("Content-Type"))
	assert.Equal(t, payload, got)

	// The extension is decorative.
	res, got = download(t, strings.TrimSuffix(results[0].URL, ".png"))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, payload, got)
}

func TestUploadDeduplicates(t *testing.T) {
	server, _, _ := setup(t, 1<<10, time.Minute, nil)

	payload := []byte("same bytes")

	_, results := upload(t, server, testfile{"first.jpg", "image/jpeg", payload})
	require.Equal(t, "uploaded", results[0].Status)
	first := results[0].URL

	res, results := upload(t, server, testfile{"second.jpg", "image/jpeg", payload})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "cached", results[0].Status)
	assert.Equal(t, first, results[0].URL)
}

func TestUploadEmptyFile(t *testing.T) {
	server, _, _ := setup(t, 1<<10, time.Minute, nil)

	res, results := upload(t, server, testfile{"void.gif", "image/gif", nil})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "uploaded", results[0].Status)

	res, got := download(t, results[0].URL)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, got)
}

func TestUploadWithoutFile(t *testing.T) {
	server, _, _ := setup(t, 1<<10, time.Minute, nil)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("comment", "no file here"))
	require.NoError(t, w.Close())

	res, err := http.Post(server.URL+"/upload", w.FormDataContentType(), &body)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestUploadBatchIsolation(t *testing.T) {
	server, _, _ := setup(t, 1<<10, time.Minute, func(db database.Client) database.Client {
		return &faulty{Client: db, armed: true}
	})

	res, results := upload(t, server,
		testfile{"one.png", "image/png", []byte("first payload")},
		testfile{"two.png", "image/png", []byte("b00m")},
		testfile{"three.png", "image/png", []byte("third payload")},
	)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.Len(t, results, 3)

	assert.Equal(t, "uploaded", results[0].Status)
	assert.NotEmpty(t, results[0].URL)

	assert.Equal(t, "error", results[1].Status)
	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[1].URL)

	assert.Equal(t, "uploaded", results[2].Status)
	assert.NotEmpty(t, results[2].URL)

	// The healthy files are served despite the failed sibling.
	res, got := download(t, results[0].URL)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []byte("first payload"), got)
}

func TestUploadRetryAfterFailure(t *testing.T) {
	server, _, _ := setup(t, 1<<10, time.Minute, func(db database.Client) database.Client {
		return &faulty{Client: db, armed: true}
	})

	payload := []byte("b00m payload")

	res, results := upload(t, server, testfile{"cat.png", "image/png", payload})
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.Equal(t, "error", results[0].Status)

	// The object exists but is incomplete: a retry of the same content
	// overwrites it in place and completes it.
	res, results = upload(t, server, testfile{"cat.png", "image/png", payload})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "overwritten", results[0].Status)

	res, got := download(t, results[0].URL)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, payload, got)
}

func TestDownloadUnknown(t *testing.T) {
	server, _, _ := setup(t, 1<<10, time.Minute, nil)

	res, _ := download(t, server.URL+"/image/unknown.png")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDownloadIncomplete(t *testing.T) {
	server, repo, _ := setup(t, 1<<10, time.Minute, nil)

	id, _, err := repo.CreateOrReuse("d3adb33f", "cat.png", "image/png")
	require.NoError(t, err)

	res, _ := download(t, server.URL+"/image/"+id)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDownloadIntegrityFault(t *testing.T) {
	var db database.Client
	server, repo, _ := setup(t, 4, time.Minute, func(client database.Client) database.Client {
		db = client
		return client
	})

	payload := []byte("0123456789")
	digest := checksum.MD5(payload)
	id, _, err := repo.CreateOrReuse(digest, "cat.png", "image/png")
	require.NoError(t, err)
	require.NoError(t, repo.WritePayload(id, payload, "cat.png", "image/png", digest))
	require.NoError(t, db.DeleteChunk(id, 1))

	res, _ := download(t, server.URL+"/image/"+id)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestDownloadThroughCache(t *testing.T) {
	server, _, readcache := setup(t, 1<<10, 80*time.Millisecond, nil)

	payload := []byte("cached bytes")
	_, results := upload(t, server, testfile{"cat.png", "image/png", payload})
	require.Equal(t, "uploaded", results[0].Status)

	res, got := download(t, results[0].URL)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, payload, got)

	id := strings.TrimSuffix(strings.TrimPrefix(results[0].URL, server.URL+"/image/"), ".png")
	_, ok := readcache.Get(id)
	assert.True(t, ok)

	// Cache hits still carry the stored content type.
	res, got = download(t, results[0].URL)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/png", res.Header.Get("Content-Type"))
	assert.Equal(t, payload, got)

	// Once expired, the read falls through to the repository.
	time.Sleep(100 * time.Millisecond)
	_, ok = readcache.Get(id)
	assert.False(t, ok)

	res, got = download(t, results[0].URL)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, payload, got)
}

func TestLandingPage(t *testing.T) {
	server, _, _ := setup(t, 1<<10, time.Minute, nil)

	res, body := download(t, server.URL+"/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "multipart/form-data")

	res, _ = download(t, server.URL+"/index.html")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	server, _, _ := setup(t, 1<<10, time.Minute, nil)

	res, _ := download(t, server.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
