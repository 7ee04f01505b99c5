package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/storj-go/internal/entry"
	"github.com/tonimelisma/storj-go/internal/keys"
)

func mustEncBucket(t *testing.T, mnemonic, name string) string {
	t.Helper()

	enc, err := NewNameCipher(mnemonic).EncryptBucketName(name)
	require.NoError(t, err)

	return enc
}

func mustEncFile(t *testing.T, mnemonic, bucketID, name string) string {
	t.Helper()

	enc, err := NewNameCipher(mnemonic).EncryptFileName(bucketID, name)
	require.NoError(t, err)

	return enc
}

func TestListBuckets_DecryptsNames(t *testing.T) {
	photos := mustEncBucket(t, testMnemonic, "photos")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buckets", r.URL.Path)
		fmt.Fprintf(w, `[
			{"id":"b1","name":%q,"created":"2017-03-03T10:41:42.227Z"},
			{"id":"b2","name":"legacy-plain","created":""}
		]`, photos)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testKeys)
	buckets, err := client.ListBuckets(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, entry.KindBucket, buckets[0].Kind)
	assert.Equal(t, "b1", buckets[0].ID)
	assert.Equal(t, "photos", buckets[0].Name)
	assert.True(t, buckets[0].Decrypted)
	assert.Equal(t, time.Date(2017, 3, 3, 10, 41, 42, 227000000, time.UTC), buckets[0].Created)

	assert.Equal(t, "legacy-plain", buckets[1].Name)
	assert.False(t, buckets[1].Decrypted)
	assert.True(t, buckets[1].Created.IsZero())
}

func TestGetBucket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buckets/b1", r.URL.Path)
		fmt.Fprintf(w, `{"id":"b1","name":%q}`, mustEncBucket(t, testMnemonic, "docs"))
	}))
	defer srv.Close()

	b, err := newTestClient(t, srv.URL, testKeys).GetBucket(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "docs", b.Name)
}

func TestCreateBucket_SendsEncryptedName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		name, ok := NewNameCipher(testMnemonic).DecryptBucketName(req["name"])
		assert.True(t, ok)
		assert.Equal(t, "new-bucket", name)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"b9","name":%q}`, req["name"])
	}))
	defer srv.Close()

	b, err := newTestClient(t, srv.URL, testKeys).CreateBucket(context.Background(), "new-bucket")
	require.NoError(t, err)
	assert.Equal(t, "b9", b.ID)
	assert.Equal(t, "new-bucket", b.Name)
	assert.True(t, b.Decrypted)
}

func TestDeleteBucket(t *testing.T) {
	var gotMethod, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(t, srv.URL, testKeys).DeleteBucket(context.Background(), "b1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/buckets/b1", gotPath)
}

func TestGetBucketID(t *testing.T) {
	enc := mustEncBucket(t, testMnemonic, "photos")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bucket-ids/"+enc {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(`{"id":"b1"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testKeys)

	id, err := client.GetBucketID(context.Background(), "photos")
	require.NoError(t, err)
	assert.Equal(t, "b1", id)

	_, err = client.GetBucketID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeBridgeBucketNotFound, CodeOf(err))
}

func TestListFiles(t *testing.T) {
	encA := mustEncFile(t, testMnemonic, "b1", "a.txt")
	encB := mustEncFile(t, testMnemonic, "b1", "dir/b.bin")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buckets/b1/files", r.URL.Path)
		fmt.Fprintf(w, `[
			{"id":"f1","bucket":"b1","filename":%q,"mimetype":"application/octet-stream","size":5,
			 "erasure":{"type":"reedsolomon"},"index":"idx","hmac":{"value":"abcd"}},
			{"id":"f2","filename":%q,"size":7},
			{"id":"f3","filename":"garbage","size":1}
		]`, encA, encB)
	}))
	defer srv.Close()

	files, err := newTestClient(t, srv.URL, testKeys).ListFiles(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, files, 3)

	f := files[0]
	assert.Equal(t, entry.KindFile, f.Kind)
	assert.Equal(t, "a.txt", f.Name)
	assert.Equal(t, "b1", f.BucketID)
	require.NotNil(t, f.File)
	assert.Equal(t, int64(5), f.File.Size)
	assert.Equal(t, "reedsolomon", f.File.Erasure)
	assert.Equal(t, "idx", f.File.Index)
	assert.Equal(t, "abcd", f.File.HMAC)
	assert.Equal(t, "text/plain", f.MimeType())

	assert.Equal(t, "dir/b.bin", files[1].Name)
	assert.Equal(t, "b1", files[1].BucketID)

	assert.False(t, files[2].Decrypted)
	assert.Equal(t, "garbage", files[2].Name)
}

func TestListFiles_BucketNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, testKeys).ListFiles(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, CodeBridgeBucketNotFound, CodeOf(err))
}

func TestListFiles_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, testKeys).ListFiles(context.Background(), "b1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Equal(t, CodeBridgeJSON, CodeOf(err))
}

func TestGetFileAndDelete(t *testing.T) {
	enc := mustEncFile(t, testMnemonic, "b1", "x/y.txt")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/buckets/b1/files/f1/info":
			fmt.Fprintf(w, `{"id":"f1","filename":%q,"size":3}`, enc)
		case r.Method == http.MethodDelete && r.URL.Path == "/buckets/b1/files/f1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testKeys)

	f, err := client.GetFile(context.Background(), "b1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "x/y.txt", f.Name)

	require.NoError(t, client.DeleteFile(context.Background(), "b1", "f1"))

	err = client.DeleteFile(context.Background(), "b1", "f2")
	assert.Equal(t, CodeBridgeFileNotFound, CodeOf(err))
}

func TestGetFileID(t *testing.T) {
	enc := mustEncFile(t, testMnemonic, "b1", "a/b.txt")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/buckets/b1/file-ids/" + url.PathEscape(enc)
		if r.URL.EscapedPath() != want && r.URL.Path != "/buckets/b1/file-ids/"+enc {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(`{"id":"f7"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(t, srv.URL, testKeys).GetFileID(context.Background(), "b1", "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "f7", id)
}

func TestInfo_Unauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
		assert.Equal(t, "/", r.URL.Path)

		_, _ = w.Write([]byte(`{"info":{"title":"Storj Bridge","description":"desc","version":"5.0.0"},"host":"api.storj.io"}`))
	}))
	defer srv.Close()

	info, err := newTestClient(t, srv.URL, keys.Keys{}).Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Storj Bridge", info.Title)
	assert.Equal(t, "desc", info.Description)
	assert.Equal(t, "5.0.0", info.Version)
	assert.Equal(t, "api.storj.io", info.Host)
}

func TestRegister_HashesPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.NotContains(t, string(body), "plaintext-pass")
		assert.True(t, strings.Contains(string(body), hashPassword("plaintext-pass")))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"email":"new@example.com"}`))
	}))
	defer srv.Close()

	email, err := newTestClient(t, srv.URL, keys.Keys{}).Register(context.Background(), "new@example.com", "plaintext-pass")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", email)
}
