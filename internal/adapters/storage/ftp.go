package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

// FTPConfig описывает подключение к FTP и публичный адрес файлов.
type FTPConfig struct {
	Addr          string
	User          string
	Password      string
	BaseDir       string
	PublicBaseURL string
	Timeout       time.Duration
}

// conn содержит операции FTP, которые нужны хранилищу.
type conn interface {
	Stor(path string, r io.Reader) error
	Retrieve(path string) (io.ReadCloser, error)
	MakeDir(path string) error
	Quit() error
}

type dialFunc func(ctx context.Context) (conn, error)

// FTP хранит медиа на FTP-сервере. На каждую операцию открывается своё
// соединение: ftp.ServerConn нельзя использовать из нескольких горутин.
type FTP struct {
	cfg  FTPConfig
	dial dialFunc
	http *http.Client
}

var _ domain.MediaStorage = (*FTP)(nil)

// NewFTP создаёт хранилище.
func NewFTP(cfg FTPConfig) *FTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.BaseDir = strings.Trim(cfg.BaseDir, "/")
	s := &FTP{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout * 2}}
	s.dial = s.dialServer
	return s
}

func (s *FTP) dialServer(ctx context.Context) (conn, error) {
	c, err := ftp.Dial(s.cfg.Addr, ftp.DialWithTimeout(s.cfg.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	if err := c.Login(s.cfg.User, s.cfg.Password); err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}
	return serverConn{c}, nil
}

// Upload сохраняет файл и возвращает публичную ссылку.
func (s *FTP) Upload(ctx context.Context, remotePath string, body io.Reader) (string, error) {
	full := s.fullPath(remotePath)
	start := time.Now()
	c, err := s.dial(ctx)
	if err != nil {
		metrics.ObserveNetworkRequest("ftp", "stor", "media", start, err)
		return "", err
	}
	defer c.Quit()

	dir := path.Dir(full)
	for _, d := range parents(dir) {
		_ = c.MakeDir(d)
	}
	err = c.Stor(full, body)
	metrics.ObserveNetworkRequest("ftp", "stor", "media", start, err)
	if err != nil {
		return "", fmt.Errorf("ftp stor %s: %w", full, err)
	}
	return s.PublicURL(remotePath), nil
}

// Download открывает файл по публичной ссылке. Ссылки своего хранилища читаются
// по FTP, остальные скачиваются по HTTP.
func (s *FTP) Download(ctx context.Context, publicURL string) (io.ReadCloser, error) {
	remote, ok := s.remotePath(publicURL)
	if !ok {
		return s.httpGet(ctx, publicURL)
	}
	start := time.Now()
	c, err := s.dial(ctx)
	if err != nil {
		metrics.ObserveNetworkRequest("ftp", "retr", "media", start, err)
		return nil, err
	}
	rc, err := c.Retrieve(s.fullPath(remote))
	metrics.ObserveNetworkRequest("ftp", "retr", "media", start, err)
	if err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("ftp retr %s: %w", remote, err)
	}
	return &connReader{ReadCloser: rc, conn: c}, nil
}

// PublicURL строит публичную ссылку на файл.
func (s *FTP) PublicURL(remotePath string) string {
	return s.cfg.PublicBaseURL + "/" + strings.TrimLeft(remotePath, "/")
}

func (s *FTP) remotePath(publicURL string) (string, bool) {
	if s.cfg.PublicBaseURL == "" || !strings.HasPrefix(publicURL, s.cfg.PublicBaseURL+"/") {
		return "", false
	}
	rest := strings.TrimPrefix(publicURL, s.cfg.PublicBaseURL+"/")
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest, rest != ""
}

func (s *FTP) fullPath(remotePath string) string {
	remotePath = strings.TrimLeft(remotePath, "/")
	if s.cfg.BaseDir == "" {
		return remotePath
	}
	return s.cfg.BaseDir + "/" + remotePath
}

func (s *FTP) httpGet(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := s.http.Do(req)
	metrics.ObserveNetworkRequest("http", "media_get", req.URL.Host, start, err)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// parents возвращает все каталоги пути от корня: a, a/b, a/b/c.
func parents(dir string) []string {
	dir = strings.Trim(dir, "/")
	if dir == "" || dir == "." {
		return nil
	}
	parts := strings.Split(dir, "/")
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "/"))
	}
	return out
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retrieve(path string) (io.ReadCloser, error) {
	return c.Retr(path)
}

// connReader закрывает соединение вместе с потоком файла.
type connReader struct {
	io.ReadCloser
	conn conn
}

func (r *connReader) Close() error {
	err := r.ReadCloser.Close()
	if qerr := r.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}
