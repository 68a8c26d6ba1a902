package input

import (
	"testing"

	"github.com/go-resty/resty/v2"
)

func TestFactoryDispatchesHttpSchemeWithoutCaching(t *testing.T) {
	t.Parallel()
	factory := NewFactory(Config{RestClient: resty.New()}, nil)
	stream, err := factory("http://example.com/stream.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stream.(*HttpInputStream); !ok {
		t.Fatalf("expected *HttpInputStream, got %T", stream)
	}
}

func TestFactoryDispatchesHttpSchemeWithCaching(t *testing.T) {
	t.Parallel()
	factory := NewFactory(Config{RestClient: resty.New(), Caching: &CachingConfig{Directory: t.TempDir()}}, nil)
	stream, err := factory("https://example.com/stream.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stream.(*CachingInputStream); !ok {
		t.Fatalf("expected *CachingInputStream, got %T", stream)
	}
}

func TestFactoryDispatchesFileScheme(t *testing.T) {
	t.Parallel()
	factory := NewFactory(Config{}, nil)
	stream, err := factory("file:///tmp/show.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stream.(*FileInputStream); !ok {
		t.Fatalf("expected *FileInputStream, got %T", stream)
	}
}

func TestFactoryDispatchesBarePathAsFileScheme(t *testing.T) {
	t.Parallel()
	factory := NewFactory(Config{}, nil)
	stream, err := factory("/tmp/show.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stream.(*FileInputStream); !ok {
		t.Fatalf("expected *FileInputStream, got %T", stream)
	}
}

func TestFactoryDispatchesFtpScheme(t *testing.T) {
	t.Parallel()
	factory := NewFactory(Config{}, nil)
	stream, err := factory("ftp://example.com/show.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stream.(*FtpInputStream); !ok {
		t.Fatalf("expected *FtpInputStream, got %T", stream)
	}
}

func TestFactoryDispatchesSftpScheme(t *testing.T) {
	t.Parallel()
	factory := NewFactory(Config{}, nil)
	stream, err := factory("sftp://example.com/show.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stream.(*SftpInputStream); !ok {
		t.Fatalf("expected *SftpInputStream, got %T", stream)
	}
}

func TestFactoryRejectsUnsupportedScheme(t *testing.T) {
	t.Parallel()
	factory := NewFactory(Config{}, nil)
	if _, err := factory("magnet:?xt=urn:btih:abc"); err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
}
