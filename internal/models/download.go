package models

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const drivePrefix = "gdrive:"

// maxPageBytes bounds how much of an HTML answer is read when looking for a
// download confirmation.
const maxPageBytes = 1 << 20

// ErrNotModel is returned when the server answers with a web page instead of
// the model file.
var ErrNotModel = errors.New("server returned a web page, not a model file")

// SourceURL expands a "gdrive:<file id>" reference to a direct download URL.
// Other values are returned unchanged.
func SourceURL(src string) string {
	if id, ok := strings.CutPrefix(src, drivePrefix); ok {
		return "https://drive.google.com/uc?export=download&id=" + id
	}
	return src
}

// EnsureModel makes sure dest exists, downloading it from src when it does
// not. An existing file is never replaced. With an empty src a missing file
// is an error.
func EnsureModel(ctx context.Context, client *http.Client, src, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", dest, err)
	}
	if src == "" {
		return fmt.Errorf("model file not found: %s (no download url configured)", dest)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	url := SourceURL(src)
	slog.Info("downloading model", "url", url, "dest", dest)
	start := time.Now()

	n, err := download(ctx, client, url, dest)
	if err != nil {
		return err
	}
	slog.Info("model downloaded", "dest", dest, "bytes", n, "duration", time.Since(start))
	return nil
}

func download(ctx context.Context, client *http.Client, url, dest string) (int64, error) {
	resp, body, err := open(ctx, client, url)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if isPage(resp.Header.Get("Content-Type"), body) {
		page, err := io.ReadAll(io.LimitReader(body, maxPageBytes))
		if err != nil {
			return 0, fmt.Errorf("download %s: %w", url, err)
		}
		next, ok := confirmURL(url, page)
		if !ok {
			return 0, fmt.Errorf("download %s: %w", url, ErrNotModel)
		}
		slog.Info("following download confirmation", "url", next)

		confirmed, confirmedBody, err := open(ctx, client, next)
		if err != nil {
			return 0, err
		}
		defer func() { _ = confirmed.Body.Close() }()
		if isPage(confirmed.Header.Get("Content-Type"), confirmedBody) {
			return 0, fmt.Errorf("download %s: %w", next, ErrNotModel)
		}
		body = confirmedBody
	}
	return install(body, url, dest)
}

// open issues the GET and fails on any status but 200.
func open(ctx context.Context, client *http.Client, url string) (*http.Response, *bufio.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("download %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}
	return resp, bufio.NewReader(resp.Body), nil
}

// isPage reports whether a response is HTML, going by the Content-Type and
// then by its first bytes. ONNX files are protobuf and never start with '<'.
func isPage(contentType string, body *bufio.Reader) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "text/html" || mt == "application/xhtml+xml" {
			return true
		}
	}
	head, _ := body.Peek(512)
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	head = bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(head, []byte("<"))
}

// install writes body to a temp file beside dest and renames it into place.
func install(body io.Reader, url, dest string) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create models dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("download %s: empty body", url)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, fmt.Errorf("install %s: %w", dest, err)
	}
	return n, nil
}
