package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/internal/graph"
	"evalgo.org/mycelium/models"
)

func TestNew_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.BlobConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = New(ctx, config.BlobConfig{Driver: "fs", Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	s, err = New(ctx, config.BlobConfig{Driver: "s3", S3: config.S3Config{
		Bucket: "snapshots", Endpoint: "https://mock.s3.local", PathStyle: true,
		AccessKeyID: "AKIA", SecretAccessKey: "SECRET",
	}})
	require.NoError(t, err)
	assert.Equal(t, DriverS3, s.Driver())

	_, err = New(ctx, config.BlobConfig{Driver: "s3"})
	assert.Error(t, err, "bucket is required")

	_, err = New(ctx, config.BlobConfig{Driver: "gcs"})
	assert.Error(t, err)
}

func TestSanitizeKey(t *testing.T) {
	for _, key := range []string{"", "  ", "/abs", "a/../b", ".."} {
		_, err := sanitizeKey(key)
		assert.Error(t, err, key)
	}
	k, err := sanitizeKey("snapshots/g1/v.nq")
	require.NoError(t, err)
	assert.Equal(t, "snapshots/g1/v.nq", k)
}

func TestFilesystem_PutGetList(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	info, err := store.Put(ctx, "a/one.txt", strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	_, err = store.Put(ctx, "a/one.txt", strings.NewReader("hello again"), "text/plain")
	require.NoError(t, err, "put overwrites")
	_, err = store.Put(ctx, "b/two.txt", strings.NewReader("x"), "")
	require.NoError(t, err)

	info, rc, err := store.Get(ctx, "a/one.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "hello again", string(data))
	assert.Equal(t, int64(11), info.Size)

	_, _, err = store.Get(ctx, "a/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a/one.txt", all[0].Key)

	onlyA, err := store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Len(t, onlyA, 1)

	_, err = store.Put(ctx, "../escape", strings.NewReader("x"), "")
	assert.Error(t, err)
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "snapshots/g1/sha256:abc.nq", SnapshotKey("g1", "sha256:abc"))
	assert.Equal(t, "snapshots/http:%2F%2Fex.org%2Fg/v1.nq", SnapshotKey("http://ex.org/g", "v1"))
}

func testGraph(t *testing.T, id string, objects ...string) *graph.Memory {
	t.Helper()
	g := graph.NewMemory(id)
	for _, o := range objects {
		_, err := g.ApplyTriple(context.Background(), models.Add(models.NewTriple(
			models.IRI("http://example.org/s"), models.IRI("http://example.org/p"), models.Literal(o),
		)))
		require.NoError(t, err)
	}
	return g
}

func TestArchiver_Filesystem(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	a := NewArchiver(store, nil)
	require.True(t, a.Enabled())

	g := testGraph(t, "g1", "x")
	v1, err := g.CurrentVersion(ctx)
	require.NoError(t, err)
	key, err := a.Archive(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, SnapshotKey("g1", v1), key)

	_, err = g.ApplyTriple(ctx, models.Add(models.NewTriple(
		models.IRI("http://example.org/s"), models.IRI("http://example.org/p"), models.Literal("y"),
	)))
	require.NoError(t, err)
	v2, err := g.CurrentVersion(ctx)
	require.NoError(t, err)
	_, err = a.Archive(ctx, g)
	require.NoError(t, err)

	versions, err := a.Versions(ctx, "g1")
	require.NoError(t, err)
	expected := []string{v1, v2}
	sort.Strings(expected)
	assert.Equal(t, expected, versions)

	data, err := a.Load(ctx, "g1", v1)
	require.NoError(t, err)
	triples, err := graph.ParseNQuads(data)
	require.NoError(t, err)
	restored, err := graph.NewMemoryFrom("g1", triples)
	require.NoError(t, err)
	rv, err := restored.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1, rv, "archived snapshot restores the same version token")
}

func TestArchiver_Disabled(t *testing.T) {
	a := NewArchiver(nil, nil)
	assert.False(t, a.Enabled())
	key, err := a.Archive(context.Background(), testGraph(t, "g1"))
	assert.NoError(t, err)
	assert.Empty(t, key)
	versions, err := a.Versions(context.Background(), "g1")
	assert.NoError(t, err)
	assert.Nil(t, versions)
	_, err = a.Load(context.Background(), "g1", "v")
	assert.Error(t, err)
}

type failingStore struct{ Filesystem }

func (f *failingStore) Put(context.Context, string, io.Reader, string) (Info, error) {
	return Info{}, errors.New("disk full")
}

func TestArchiver_PutFailure(t *testing.T) {
	a := NewArchiver(&failingStore{}, nil)
	_, err := a.Archive(context.Background(), testGraph(t, "g1", "x"))
	assert.EqualError(t, err, "disk full")
}

// mockS3 serves a path-style subset of the S3 API from memory.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string]mockObject
}

type mockObject struct {
	body        []byte
	contentType string
}

func (m *mockS3) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range m.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(m.objects[k].body))
		}
		b.WriteString("</ListBucketResult>")
		return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		m.objects[key] = mockObject{body: body, contentType: req.Header.Get("Content-Type")}
		return response(http.StatusOK, nil, http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodGet:
		obj, ok := m.objects[key]
		if !ok {
			body := []byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return response(http.StatusNotFound, body, http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return response(http.StatusOK, obj.body, http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}), nil
	}
	return response(http.StatusNotImplemented, nil, http.Header{}), nil
}

func response(status int, body []byte, header http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header, ContentLength: int64(len(body))}
}

func newMockS3(t *testing.T) (*S3, *mockS3) {
	t.Helper()
	rt := &mockS3{objects: make(map[string]mockObject)}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &S3{client: client, bucket: "snapshots"}, rt
}

func TestS3_Mocked(t *testing.T) {
	ctx := context.Background()
	store, rt := newMockS3(t)

	info, err := store.Put(ctx, "snapshots/g1/v1.nq", strings.NewReader("<a> <b> <c> ."), snapshotContentType)
	require.NoError(t, err)
	assert.Equal(t, int64(13), info.Size)
	assert.Contains(t, rt.objects, "snapshots/g1/v1.nq")

	_, rc, err := store.Get(ctx, "snapshots/g1/v1.nq")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "<a> <b> <c> .", string(data))

	_, _, err = store.Get(ctx, "snapshots/g1/missing.nq")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Put(ctx, "snapshots/g2/v1.nq", strings.NewReader("x"), "")
	require.NoError(t, err)
	list, err := store.List(ctx, "snapshots/g1/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "snapshots/g1/v1.nq", list[0].Key)
}

func TestArchiver_S3(t *testing.T) {
	ctx := context.Background()
	store, _ := newMockS3(t)
	a := NewArchiver(store, nil)

	g := testGraph(t, "g1", "x")
	version, err := g.CurrentVersion(ctx)
	require.NoError(t, err)
	_, err = a.Archive(ctx, g)
	require.NoError(t, err)

	versions, err := a.Versions(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{version}, versions)

	data, err := a.Load(ctx, "g1", version)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"x"`)
}
