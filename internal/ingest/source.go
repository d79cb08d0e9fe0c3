package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/lox/stockcast/internal/httputil"
)

// ErrNoData means a source does not exist. Callers treat it as an empty
// dataset rather than a failure.
var ErrNoData = errors.New("no data")

const ftpTimeout = 30 * time.Second

// Open returns a reader for a source URI. Plain paths and file:// URIs are read
// from disk; http(s) goes through the shared client; ftp:// logs in anonymously
// unless the URI carries credentials.
func Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare path, or a windows drive letter parsed as a scheme
		return openFile(uri)
	}

	switch u.Scheme {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		return openHTTP(ctx, u)
	case "ftp":
		return openFTP(ctx, u)
	default:
		return nil, fmt.Errorf("open %s: unsupported scheme %q", uri, u.Scheme)
	}
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", path, ErrNoData)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func openHTTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := httputil.NewClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), ErrNoData)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d: %s", u.Redacted(), resp.StatusCode, string(b))
	}
	return resp.Body, nil
}

func openFTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	host := u.Host
	if u.Port() == "" {
		host += ":21"
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
			return nil, fmt.Errorf("ftp retr %s: %w", u.Path, ErrNoData)
		}
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	return &ftpBody{Response: resp, conn: conn}, nil
}

// ftpBody closes the control connection along with the data connection.
type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	err := b.Response.Close()
	if qerr := b.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}
