package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// fileTimeout bounds one model-file download. It is deliberately much longer
// than the metadata timeout: multi-GB weights over slow links are normal.
const fileTimeout = 60 * time.Minute

// copyBufSize is the transfer chunk size; cancellation is checked between
// chunks.
const copyBufSize = 256 * 1024

var (
	downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "download",
			Name:      "files_total",
			Help:      "File download attempts by outcome (ok, resumed, error, canceled)",
		},
		[]string{"outcome"},
	)
	downloadedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Total bytes written to artifact files",
		},
	)
)

func init() {
	prometheus.MustRegister(downloadsTotal, downloadedBytes)
}

// Downloader fetches artifact files with byte-range resume. Partial content
// is written to a ".part" sibling and renamed into place only after the
// writer is closed, so readers never observe a complete-looking file with an
// open writer handle. Canceled downloads keep their ".part" for later resume.
type Downloader struct {
	httpc *http.Client
	token string
	log   zerolog.Logger
}

// New returns a downloader. token may be empty for public repositories.
func New(token string, log zerolog.Logger) *Downloader {
	return &Downloader{
		httpc: &http.Client{Timeout: fileTimeout},
		token: token,
		log:   log,
	}
}

// NewWithClient overrides the HTTP client (tests).
func NewWithClient(httpc *http.Client, token string, log zerolog.Logger) *Downloader {
	return &Downloader{httpc: httpc, token: token, log: log}
}

// Fetch downloads url into dest. An existing "dest.part" is used as the
// resume offset. Unlike listing calls, a failure here always surfaces: the
// caller must know the file did not arrive.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	part := dest + ".part"

	var offset int64
	if info, err := os.Stat(part); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := d.httpc.Do(req)
	if err != nil {
		downloadsTotal.WithLabelValues(errOutcome(ctx)).Inc()
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Server ignored the range (or none was sent): start over.
		offset = 0
	case http.StatusPartialContent:
		d.log.Debug().Str("dest", dest).Int64("offset", offset).Msg("resuming download")
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file already holds the full content.
		downloadsTotal.WithLabelValues("resumed").Inc()
		return finalize(part, dest)
	default:
		downloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return err
	}

	written, err := copyChunks(ctx, f, resp.Body)
	downloadedBytes.Add(float64(written))
	if err != nil {
		f.Close()
		// Keep the .part file: a later call resumes from here.
		downloadsTotal.WithLabelValues(errOutcome(ctx)).Inc()
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if offset > 0 {
		downloadsTotal.WithLabelValues("resumed").Inc()
	} else {
		downloadsTotal.WithLabelValues("ok").Inc()
	}
	return finalize(part, dest)
}

// finalize renames the fully written part file into place.
func finalize(part, dest string) error {
	if err := os.Rename(part, dest); err != nil {
		return fmt.Errorf("finalize %s: %w", dest, err)
	}
	return nil
}

// copyChunks copies src to dst in fixed-size chunks, honoring ctx between
// chunks.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func errOutcome(ctx context.Context) string {
	if ctx.Err() != nil {
		return "canceled"
	}
	return "error"
}
