package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const ftpDefaultPort = "21"

// FTPOptions configures FTP transfers.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher pulls archives from FTP mirrors such as INEGI's. The login is
// anonymous unless the URL carries userinfo.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher returns an FTPFetcher; a zero Timeout means 30s.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// ftpLocation is a parsed ftp:// URL.
type ftpLocation struct {
	addr string // host:port
	file string
	user string
	pass string
}

func parseFTPURL(raw string) (ftpLocation, error) {
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return ftpLocation{}, eris.Wrapf(err, "fetcher: bad ftp url %q", raw)
	case u.Scheme != "ftp":
		return ftpLocation{}, eris.Errorf("fetcher: %q is not an ftp url", raw)
	case strings.Trim(u.Path, "/") == "":
		return ftpLocation{}, eris.Errorf("fetcher: ftp url %q names no file", raw)
	}

	loc := ftpLocation{addr: u.Host, file: u.Path, user: "anonymous", pass: "anonymous@"}
	if u.Port() == "" {
		loc.addr = net.JoinHostPort(u.Hostname(), ftpDefaultPort)
	}
	if u.User != nil {
		loc.user = u.User.Username()
		loc.pass, _ = u.User.Password()
	}
	return loc, nil
}

// ftpStream is a RETR body that logs out of the server when closed.
type ftpStream struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (s ftpStream) Close() error {
	err := s.Response.Close()
	if qerr := s.conn.Quit(); err == nil && qerr != nil {
		return eris.Wrap(qerr, "fetcher: ftp quit")
	}
	return eris.Wrap(err, "fetcher: ftp close")
}

// Download opens the file behind rawURL. The returned stream holds the
// control connection until closed.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	loc, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := f.login(ctx, loc)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(loc.file)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "fetcher: ftp retr %s", loc.file)
	}
	return ftpStream{Response: resp, conn: conn}, nil
}

func (f *FTPFetcher) login(ctx context.Context, loc ftpLocation) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(loc.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(f.opts.Timeout))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: ftp dial %s", loc.addr)
	}
	if err := conn.Login(loc.user, loc.pass); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "fetcher: ftp login as %s", loc.user)
	}
	zap.L().Debug("fetch: ftp session open", zap.String("addr", loc.addr), zap.String("user", loc.user))
	return conn, nil
}

// DownloadToFile stores the file behind rawURL at path and returns its size.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	rc, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck
	return writeFile(path, rc)
}
