package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
)

// download fetches a remote clip into a temp file. cleanup removes it.
func (p *Player) download(ctx context.Context, rawURL string) (string, func(), error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("parse audio url: %w", err)
	}
	if parsed.Scheme == "file" {
		return parsed.Path, func() {}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build audio request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}

	ext := path.Ext(parsed.Path)
	if ext == "" {
		ext = ".mp3"
	}
	file, err := os.CreateTemp("", "parley-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp audio file: %w", err)
	}
	cleanup := func() { _ = os.Remove(file.Name()) }

	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = file.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp audio file: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp audio file: %w", err)
	}
	return file.Name(), cleanup, nil
}
