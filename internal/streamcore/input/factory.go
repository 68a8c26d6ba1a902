package input

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

// Config bundles the per-scheme configuration a Factory needs to build
// any of the InputStream variants on demand.
type Config struct {
	Http       HttpConfig
	Caching    *CachingConfig // nil disables the on-disk cache for http(s) URLs
	Ftp        FtpConfig
	Sftp       SftpConfig
	RestClient *resty.Client
}

// NewFactory returns an streamcore.InputFactory that dispatches on a
// URL's scheme: http/https (optionally wrapped in a disk cache), file,
// ftp, and sftp. delegate is attached to every InputStream it builds;
// callers typically pass the owning AudioPipeline, which implements
// streamcore.InputStreamDelegate.
func NewFactory(cfg Config, delegate streamcore.InputStreamDelegate) streamcore.InputFactory {
	return func(rawURL string) (streamcore.InputStream, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, streamerrors.New(fmt.Errorf("parse url %q: %w", rawURL, err)).
				Component("input").
				Category(streamerrors.CategoryNetwork).
				Build()
		}

		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			http := NewHttpInputStream(cfg.RestClient, rawURL, cfg.Http, delegate)
			if cfg.Caching == nil {
				return http, nil
			}
			return NewCachingInputStream(http, rawURL, *cfg.Caching, delegate), nil
		case "file", "":
			path := u.Path
			if path == "" {
				path = rawURL
			}
			return NewFileInputStream(path, delegate), nil
		case "ftp":
			return NewFtpInputStream(rawURL, cfg.Ftp, delegate), nil
		case "sftp":
			return NewSftpInputStream(rawURL, cfg.Sftp, delegate), nil
		default:
			return nil, streamerrors.New(fmt.Errorf("unsupported url scheme %q", u.Scheme)).
				Component("input").
				Category(streamerrors.CategoryUnsupportedFormat).
				Build()
		}
	}
}
