package media_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/c360/heritagestreams/media"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/protocol"
	tu "github.com/c360/heritagestreams/testutil"
)

// pngHeader is enough of a PNG for MIME sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fileServer struct {
	*httptest.Server
	heads    atomic.Int32
	gets     atomic.Int32
	missing  atomic.Int32
	flakyHit atomic.Int32
}

func newFileServer(t *testing.T) *fileServer {
	t.Helper()
	fs := &fileServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/photo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			fs.heads.Add(1)
		} else {
			fs.gets.Add(1)
		}
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Header().Set("Content-Length", "16")
		if r.Method == http.MethodGet {
			_, _ = w.Write(pngHeader)
		}
	})
	mux.HandleFunc("/raw", func(w http.ResponseWriter, r *http.Request) {
		fs.gets.Add(1)
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/broken.mp3", func(w http.ResponseWriter, r *http.Request) {
		fs.heads.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		fs.missing.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if fs.flakyHit.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newResolver(t *testing.T, opts ...media.Option) *media.Resolver {
	t.Helper()
	opts = append([]media.Option{
		media.WithRateLimit(rate.Inf, 1),
		media.WithMetrics(metric.NewMetricsRegistry()),
	}, opts...)
	r, err := media.NewResolver(opts...)
	require.NoError(t, err)
	return r
}

func sha(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestResolveEvent_FromTags(t *testing.T) {
	signer := tu.NewSigner(t)
	r := newResolver(t)

	checksum := sha([]byte("y.jpg contents"))
	ev := signer.Event(protocol.KindFileMetadata, 1, "",
		tu.Tag("url", "https://x/y.jpg"),
		tu.Tag("m", "image/jpeg"),
		tu.Tag("x", checksum),
		tu.Tag("dim", "640x480"),
		tu.Tag("size", "2048"),
	)

	result := r.ResolveEvent(context.Background(), ev)
	assert.Equal(t, "https://x/y.jpg", result.URL)
	assert.Equal(t, "image/jpeg", result.Metadata.MimeType)
	assert.Equal(t, checksum, result.Metadata.Checksum)
	assert.Equal(t, 640, result.Metadata.Width)
	assert.Equal(t, 480, result.Metadata.Height)
	assert.Equal(t, int64(2048), result.Metadata.Size)
	assert.Nil(t, result.Metadata.ChecksumVerified)
	assert.Equal(t, media.CategoryImage, result.Category)
	assert.Equal(t, "https://x/y.jpg", result.Thumbnail)
	assert.Equal(t, media.SourceTags, result.Source)
	assert.False(t, result.Placeholder)
}

func TestResolveEvent_ContentFallback(t *testing.T) {
	signer := tu.NewSigner(t)
	r := newResolver(t)

	ev := signer.Event(protocol.KindFileMetadata, 1,
		`{"url":"https://cdn.example.org/song.mp3","duration":182.5,"thumb":"https://cdn.example.org/cover.jpg"}`,
		tu.Tag("alt", "A waiata"))

	result := r.ResolveEvent(context.Background(), ev)
	assert.Equal(t, "https://cdn.example.org/song.mp3", result.URL)
	assert.Equal(t, "audio/mpeg", result.Metadata.MimeType)
	assert.Equal(t, 182.5, result.Metadata.Duration)
	assert.Equal(t, "A waiata", result.Metadata.Alt)
	assert.Equal(t, "https://cdn.example.org/cover.jpg", result.Thumbnail)
	assert.Equal(t, media.CategoryAudio, result.Category)
	assert.Equal(t, media.SourceContent, result.Source)
}

func TestResolveEvent_NoURLGivesPlaceholder(t *testing.T) {
	signer := tu.NewSigner(t)
	r := newResolver(t)

	ev := signer.Event(protocol.KindFileMetadata, 1, "no json", tu.Tag("m", "video/mp4"))
	result := r.ResolveEvent(context.Background(), ev)
	assert.True(t, result.Placeholder)
	assert.Equal(t, media.CategoryVideo, result.Category)
	assert.Equal(t, media.Placeholder(media.CategoryVideo), result)

	assert.True(t, r.ResolveEvent(context.Background(), nil).Placeholder)
}

func TestResolveEvent_ChecksumVerification(t *testing.T) {
	fs := newFileServer(t)
	signer := tu.NewSigner(t)
	registry := metric.NewMetricsRegistry()
	r := newResolver(t, media.WithChecksumVerification(true), media.WithMetrics(registry))
	mismatches := registry.CoreMetrics().ErrorsTotal.WithLabelValues("media_resolver", "invalid")

	good := signer.Event(protocol.KindFileMetadata, 1, "", tu.Tag("url", fs.URL+"/raw"), tu.Tag("x", sha(pngHeader)))
	result := r.ResolveEvent(context.Background(), good)
	require.NotNil(t, result.Metadata.ChecksumVerified)
	assert.True(t, *result.Metadata.ChecksumVerified)
	assert.Equal(t, "image/png", result.Metadata.MimeType)
	assert.Equal(t, int64(len(pngHeader)), result.Metadata.Size)

	bad := signer.Event(protocol.KindFileMetadata, 2, "", tu.Tag("url", fs.URL+"/raw"), tu.Tag("x", sha([]byte("other"))))
	result = r.ResolveEvent(context.Background(), bad)
	require.NotNil(t, result.Metadata.ChecksumVerified)
	assert.False(t, *result.Metadata.ChecksumVerified)
	assert.Equal(t, fs.URL+"/raw", result.URL)
	assert.False(t, result.Placeholder)
	assert.Equal(t, 1.0, promtest.ToFloat64(mismatches))

	unreachable := signer.Event(protocol.KindFileMetadata, 3, "", tu.Tag("url", fs.URL+"/broken"), tu.Tag("x", sha(pngHeader)))
	result = r.ResolveEvent(context.Background(), unreachable)
	assert.Nil(t, result.Metadata.ChecksumVerified)
	assert.False(t, result.Placeholder)
}

func TestResolveEvent_CachedByEventAndURL(t *testing.T) {
	fs := newFileServer(t)
	signer := tu.NewSigner(t)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := newResolver(t, media.WithChecksumVerification(true), media.WithClock(clock.Now))

	ev := signer.Event(protocol.KindFileMetadata, 1, "", tu.Tag("url", fs.URL+"/raw"), tu.Tag("x", sha(pngHeader)))
	first := r.ResolveEvent(context.Background(), ev)
	second := r.ResolveEvent(context.Background(), ev)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fs.gets.Load())

	clock.now = clock.now.Add(media.DefaultCacheTTL)
	r.ResolveEvent(context.Background(), ev)
	assert.Equal(t, int32(2), fs.gets.Load())
}

func TestResolveURL_Probe(t *testing.T) {
	fs := newFileServer(t)
	r := newResolver(t)

	result := r.ResolveURL(context.Background(), fs.URL+"/photo")
	assert.Equal(t, "image/png", result.Metadata.MimeType)
	assert.Equal(t, int64(16), result.Metadata.Size)
	assert.Equal(t, media.SourceProbe, result.Source)
	assert.Equal(t, media.CategoryImage, result.Category)

	r.ResolveURL(context.Background(), fs.URL+"/photo")
	assert.Equal(t, int32(1), fs.heads.Load())
	assert.Equal(t, int64(1), r.CacheStats().Hits())
}

func TestResolveURL_ExtensionFallback(t *testing.T) {
	fs := newFileServer(t)
	r := newResolver(t)

	result := r.ResolveURL(context.Background(), fs.URL+"/broken.mp3")
	assert.Equal(t, "audio/mpeg", result.Metadata.MimeType)
	assert.Equal(t, media.SourceExtension, result.Source)
	assert.Equal(t, media.CategoryAudio, result.Category)
	assert.False(t, result.Placeholder)
	assert.Equal(t, media.Placeholder(media.CategoryAudio).Thumbnail, result.Thumbnail)
	assert.Equal(t, int32(1), fs.heads.Load(), "a failed probe is not repeated")
}

func TestResolveURL_SingleAttempt(t *testing.T) {
	fs := newFileServer(t)
	r := newResolver(t)

	result := r.ResolveURL(context.Background(), fs.URL+"/flaky")
	assert.True(t, result.Placeholder)
	assert.Equal(t, media.CategoryDocument, result.Category)
	assert.Equal(t, int32(1), fs.flakyHit.Load())

	r.ResolveURL(context.Background(), fs.URL+"/broken")
	r.ResolveURL(context.Background(), fs.URL+"/broken")
	assert.Equal(t, int32(2), fs.missing.Load(), "failed probes are not cached")
}

func TestResolveURL_Placeholders(t *testing.T) {
	fs := newFileServer(t)
	r := newResolver(t)

	tests := []struct {
		name string
		url  string
		want media.Category
	}{
		{name: "empty", url: "", want: media.CategoryDocument},
		{name: "not http", url: "ftp://host/model.glb", want: media.CategoryModel},
		{name: "relative", url: "/uploads/clip.mp4", want: media.CategoryVideo},
		{name: "probe failure without extension", url: fs.URL + "/broken", want: media.CategoryDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.ResolveURL(context.Background(), tt.url)
			assert.True(t, result.Placeholder)
			assert.Equal(t, tt.want, result.Category)
		})
	}
}

func TestPlaceholders(t *testing.T) {
	for _, c := range []media.Category{
		media.CategoryImage, media.CategoryAudio, media.CategoryVideo, media.CategoryDocument, media.CategoryModel,
	} {
		p := media.Placeholder(c)
		assert.True(t, p.Placeholder)
		assert.Equal(t, c, p.Category)
		assert.Equal(t, c, media.CategoryOf(p.Metadata.MimeType))
		assert.NotEmpty(t, p.URL)
	}
	assert.Equal(t, media.CategoryDocument, media.Placeholder("hologram").Category)
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, media.CategoryImage, media.CategoryOf("IMAGE/JPEG"))
	assert.Equal(t, media.CategoryAudio, media.CategoryOf("audio/ogg"))
	assert.Equal(t, media.CategoryVideo, media.CategoryOf("video/webm"))
	assert.Equal(t, media.CategoryModel, media.CategoryOf("model/gltf-binary"))
	assert.Equal(t, media.CategoryDocument, media.CategoryOf("application/pdf"))
	assert.Equal(t, media.CategoryDocument, media.CategoryOf(""))
}

func TestResolveURL_CircuitBreakerSkipsFailingHost(t *testing.T) {
	fs := newFileServer(t)
	r := newResolver(t, media.WithCircuitBreaker(2, time.Minute))

	for i := 0; i < 4; i++ {
		result := r.ResolveURL(context.Background(), fmt.Sprintf("%s/broken.mp3?v=%d", fs.URL, i))
		assert.Equal(t, media.SourceExtension, result.Source)
		assert.Equal(t, media.CategoryAudio, result.Category)
	}
	assert.Equal(t, int32(2), fs.heads.Load(), "open circuit stops probes")
}

func TestResolveURL_CircuitBreakerIgnoresClientErrors(t *testing.T) {
	fs := newFileServer(t)
	r := newResolver(t, media.WithCircuitBreaker(1, time.Minute))

	r.ResolveURL(context.Background(), fs.URL+"/broken")
	result := r.ResolveURL(context.Background(), fs.URL+"/photo")
	assert.Equal(t, media.SourceProbe, result.Source)
	assert.Equal(t, int32(1), fs.heads.Load())
}

func TestResolveURL_CircuitBreakerDisabled(t *testing.T) {
	fs := newFileServer(t)
	r := newResolver(t, media.WithCircuitBreaker(0, 0))

	for i := 0; i < 6; i++ {
		r.ResolveURL(context.Background(), fmt.Sprintf("%s/broken.mp3?v=%d", fs.URL, i))
	}
	assert.Equal(t, int32(6), fs.heads.Load())
}
