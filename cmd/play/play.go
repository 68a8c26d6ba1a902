// Package play implements the "play" subcommand: open a single URL and
// stream it to the local audio output until interrupted or the stream ends.
package play

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/audiorelay/streamcore/internal/conf"
	"github.com/audiorelay/streamcore/internal/engine"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

// Command returns the "play <url>" subcommand.
func Command(cfg *conf.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <url>",
		Short: "Play a remote or local audio stream",
		Long:  "Open a file, http(s), ftp or sftp audio URL and stream it to the configured output backend.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, args[0])
		},
	}

	if err := setupFlags(cmd, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, cfg *conf.Config) error {
	cmd.Flags().StringVar((*string)(&cfg.OutputBackend), "backend", string(cfg.OutputBackend), "Output backend: malgo or portaudio")
	cmd.Flags().BoolVar(&cfg.CacheEnabled, "cache", cfg.CacheEnabled, "Cache stream bytes to disk as they're received")

	return viper.BindPFlags(cmd.Flags())
}

func run(ctx context.Context, cfg *conf.Config, url string) error {
	progress := &receivedBytesTracker{}

	eng, err := engine.NewEngine(cfg, progress)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer eng.Close()

	if err := eng.StartMetrics(ctx); err != nil {
		return fmt.Errorf("starting metrics server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Open(ctx, url); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}

	<-ctx.Done()
	eng.Remember(url, progress.Load())
	return nil
}

// receivedBytesTracker is the host-side streamcore.Delegate passed to
// engine.NewEngine purely to observe how many bytes have been received, so
// the CLI can remember a resume position on shutdown; every other event is
// ignored since the engine's own delegate already handles metrics/MQTT/notify.
type receivedBytesTracker struct {
	bytes atomic.Uint64
}

func (t *receivedBytesTracker) Load() uint64 { return t.bytes.Load() }

func (t *receivedBytesTracker) OnStateChanged(streamcore.State)               {}
func (t *receivedBytesTracker) OnError(streamcore.ErrorKind, string)          {}
func (t *receivedBytesTracker) OnMetaDataAvailable(map[string]string)         {}
func (t *receivedBytesTracker) OnSamplesAvailable([]byte, streamcore.PacketDesc) {}
func (t *receivedBytesTracker) OnBitRateAvailable()                           {}
func (t *receivedBytesTracker) OnReceivedSize(bytes uint64)                   { t.bytes.Store(bytes) }
func (t *receivedBytesTracker) OnBufferEmpty()                                {}

var _ streamcore.Delegate = (*receivedBytesTracker)(nil)
