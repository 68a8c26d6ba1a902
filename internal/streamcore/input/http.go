package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/k3a/html2text"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/logging"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

// rejectedBodySnippetBytes caps how much of a strict-content-type-check
// rejection's body (commonly an HTML error page) gets converted to text
// and attached to the returned error.
const rejectedBodySnippetBytes = 4096

// HttpConfig is the subset of conf.Config the Http input needs; kept
// narrow so this package doesn't import the whole conf tree.
type HttpConfig struct {
	UserAgent                 string
	DefaultContentType        string
	StrictContentTypeChecking bool
	Timeout                   time.Duration
}

// HttpInputStream issues a GET with ICY-aware headers, follows redirects,
// honors the system proxy (resty's default transport already does), and
// demultiplexes an ICY byte stream internally before handing the
// pipeline pure audio bytes.
type HttpInputStream struct {
	url      string
	cfg      HttpConfig
	delegate streamcore.InputStreamDelegate
	client   *resty.Client

	mu            sync.Mutex
	contentType   string
	contentLength uint64
	pos           streamcore.StreamPosition
	scheduled     atomic.Bool
	cancel        context.CancelFunc

	demux *streamcore.IcyDemux
}

// NewHttpInputStream builds an Http input for url using a shared resty
// client (callers typically construct one client per pipeline and reuse
// it across opens/seeks).
func NewHttpInputStream(client *resty.Client, url string, cfg HttpConfig, delegate streamcore.InputStreamDelegate) *HttpInputStream {
	h := &HttpInputStream{client: client, url: url, cfg: cfg, delegate: delegate}
	h.scheduled.Store(true)
	return h
}

func (h *HttpInputStream) Open(ctx context.Context, pos *streamcore.StreamPosition) error {
	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	if pos != nil {
		h.pos = *pos
	}
	rangeHeader := ""
	if pos != nil && pos.Start > 0 && pos.End > pos.Start {
		rangeHeader = fmt.Sprintf("bytes=%d-%d", pos.Start, pos.End)
	} else if pos != nil && pos.Start > 0 {
		rangeHeader = fmt.Sprintf("bytes=%d-", pos.Start)
	}
	h.mu.Unlock()

	req := h.client.R().
		SetContext(runCtx).
		SetHeader("User-Agent", h.cfg.UserAgent).
		SetHeader("Icy-MetaData", "1").
		SetDoNotParseResponse(true)
	if rangeHeader != "" {
		req.SetHeader("Range", rangeHeader)
	}

	resp, err := req.Get(h.url)
	if err != nil {
		cancel()
		return streamerrors.New(fmt.Errorf("http get %s: %w", anonymizeURL(h.url), err)).
			Component("input").
			Category(streamerrors.CategoryNetwork).
			Build()
	}
	if resp.StatusCode() >= 400 {
		body := resp.RawBody()
		if body != nil {
			_ = body.Close()
		}
		cancel()
		return streamerrors.New(fmt.Errorf("http status %d", resp.StatusCode())).
			Component("input").
			Category(streamerrors.CategoryNetwork).
			Build()
	}

	ct := resp.Header().Get("Content-Type")
	if ct == "" {
		ct = h.cfg.DefaultContentType
	}
	if h.cfg.StrictContentTypeChecking && !isAudioOrVideo(ct) {
		body := resp.RawBody()
		var rejected string
		if body != nil {
			snippet, _ := io.ReadAll(io.LimitReader(body, rejectedBodySnippetBytes))
			rejected = html2text.HTML2Text(string(snippet))
			_ = body.Close()
		}
		cancel()
		return streamerrors.New(fmt.Errorf("strict content-type check rejected %q", ct)).
			Component("input").
			Category(streamerrors.CategoryUnsupportedFormat).
			Context("body", rejected).
			Build()
	}

	contentLength := uint64(0)
	if cl := resp.Header().Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseUint(cl, 10, 64); err == nil {
			contentLength = n
		}
	}

	h.mu.Lock()
	h.contentType = ct
	h.contentLength = contentLength
	metaInt, hasIcy := streamcore.ParseMetaInt(resp.Header().Get("Icy-Metaint"))
	if hasIcy {
		h.demux = streamcore.NewIcyDemux(metaInt, h.onAudio, h.onMetaData)
	}
	h.mu.Unlock()

	if h.delegate != nil {
		h.delegate.OnContentType(ct)
		h.delegate.OnReadyToRead()
	}

	go h.readLoop(runCtx, resp.RawBody())
	return nil
}

func (h *HttpInputStream) onAudio(data []byte) {
	if h.delegate != nil {
		h.delegate.OnBytesAvailable(data)
	}
}

func (h *HttpInputStream) onMetaData(meta map[string]string) {
	if h.delegate != nil {
		h.delegate.OnMetaData(meta)
	}
}

func (h *HttpInputStream) readLoop(ctx context.Context, body io.ReadCloser) {
	defer body.Close()
	reader := bufio.NewReaderSize(body, fileReadChunk)
	buf := make([]byte, fileReadChunk)

	for {
		if !h.scheduled.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(schedulePollInterval):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.mu.Lock()
			demux := h.demux
			h.mu.Unlock()
			if demux != nil {
				demux.Feed(chunk)
			} else if h.delegate != nil {
				h.delegate.OnBytesAvailable(chunk)
			}
		}
		if err == io.EOF {
			if h.delegate != nil {
				h.delegate.OnEnd()
			}
			return
		}
		if err != nil {
			if h.delegate != nil {
				h.delegate.OnError(streamerrors.StreamError(err, streamerrors.CategoryNetwork, h.url, h.contentType))
			}
			if log := logging.ForService("input"); log != nil {
				log.Warn("http read failed", "url", anonymizeURL(h.url), "error", err)
			}
			return
		}
	}
}

func (h *HttpInputStream) Close() error {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (h *HttpInputStream) SetScheduled(scheduled bool) { h.scheduled.Store(scheduled) }

func (h *HttpInputStream) ContentType() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.contentType
}

func (h *HttpInputStream) ContentLength() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.contentLength
}

func (h *HttpInputStream) Position() streamcore.StreamPosition {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos
}

func isAudioOrVideo(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/")
}

// anonymizeURL strips query parameters and userinfo before a URL enters
// logs or error context; mirrors the scrubbing errors.categorizeURL does
// for the EnhancedError path.
func anonymizeURL(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		rawURL = rawURL[:i]
	}
	if u, err := url.Parse(rawURL); err == nil && u.User != nil {
		u.User = nil
		rawURL = u.String()
	}
	return rawURL
}

// NewResty builds the shared resty client used by every HttpInputStream
// in a pipeline; separated out so tests can substitute a client pointed
// at httptest servers.
func NewResty(timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetTransport(http.DefaultTransport)
	return client
}
