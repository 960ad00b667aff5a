package http

import (
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"

	"github.com/frozenpine/stack4go/cache"
	"github.com/frozenpine/stack4go/errors"
)

const (
	// DefaultMaxConns accepted connections waiting to be served
	DefaultMaxConns    = 40
	DefaultReadTimeout = 5 * time.Second
	MaxLineSize        = 1024

	serverName = "ChiServer/0.1"
	chunkSize  = 1024
)

const notFoundPage = `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 3.2 Final//EN">
<title>404 Not Found</title>
<h1>Not Found</h1>
<p>The requested URL was not found on the server.  If you entered the URL manually please check your spelling and try again.</p>`

var (
	ErrQueueFull   = errors.New("http: connection queue full")
	ErrReadTimeout = errors.New("http: request line timeout")
	ErrLineTooLong = errors.New("http: request line too long")
)

// Conn byte stream of one established tcp connection. Read and Write
// never block, they return 0 when nothing could be transferred yet.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Poller drives the network stack while server waits on a connection.
type Poller interface {
	Poll() error
}

// Server static file server handling one connection at a time.
type Server struct {
	root   fs.FS
	poller Poller
	log    logrus.FieldLogger

	maxConns    int
	readTimeout time.Duration
	now         func() time.Time

	conns cache.Queue[Conn]
}

type Option func(*Server)

func WithLogger(log logrus.FieldLogger) Option {
	return func(srv *Server) {
		if log != nil {
			srv.log = log
		}
	}
}

func WithMaxConns(n int) Option {
	return func(srv *Server) {
		if n > 0 {
			srv.maxConns = n
		}
	}
}

// WithReadTimeout bounds the wait for a request line, 0 waits forever.
func WithReadTimeout(timeout time.Duration) Option {
	return func(srv *Server) {
		srv.readTimeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(srv *Server) {
		if now != nil {
			srv.now = now
		}
	}
}

func NewServer(root fs.FS, poller Poller, opts ...Option) *Server {
	srv := Server{
		root:        root,
		poller:      poller,
		log:         logrus.StandardLogger(),
		maxConns:    DefaultMaxConns,
		readTimeout: DefaultReadTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(&srv)
	}

	return &srv
}

// Accept queues an established connection, conn stays owned by the
// caller if queue is full.
func (srv *Server) Accept(conn Conn) error {
	if srv.conns.Len() >= srv.maxConns {
		return errors.Wrapf(ErrQueueFull, "%d pending", srv.conns.Len())
	}

	srv.conns.Push(conn)
	srv.log.WithField("pending", srv.conns.Len()).Info("http connected")

	return nil
}

// Pending connections waiting in queue
func (srv *Server) Pending() int {
	return srv.conns.Len()
}

// Run serves every queued connection in accept order and closes it.
// Only stack failures are returned.
func (srv *Server) Run() error {
	for {
		conn, ok := srv.conns.Pop()
		if !ok {
			return nil
		}

		err := srv.serve(conn)

		if closeErr := conn.Close(); closeErr != nil {
			srv.log.WithError(closeErr).Warn("http close failed")
		} else {
			srv.log.Debug("http closed")
		}

		switch {
		case err == nil:
		case errors.Is(err, errors.ErrLink):
			return err
		default:
			srv.log.WithError(err).Info("http request aborted")
		}
	}
}

func (srv *Server) poll() error {
	if srv.poller == nil {
		return nil
	}

	return srv.poller.Poll()
}

// readLine waits for the request line, polling the stack while
// connection has no data.
func (srv *Server) readLine(conn Conn) (string, error) {
	var (
		sticky   cache.StickyCache
		chunk    [MaxLineSize]byte
		deadline time.Time
	)
	defer sticky.Release()

	if srv.readTimeout > 0 {
		deadline = srv.now().Add(srv.readTimeout)
	}

	for {
		n, err := conn.Read(chunk[:])
		if n > 0 {
			sticky.Write(chunk[:n])

			if line, ok := sticky.ReadLine(); ok {
				return string(line), nil
			}

			if sticky.Len() > MaxLineSize {
				return "", errors.WithStack(ErrLineTooLong)
			}
		}

		switch {
		case err == io.EOF:
			return "", nil
		case err != nil:
			return "", errors.Wrap(err, "http read")
		}

		if n > 0 {
			continue
		}

		if !deadline.IsZero() && !srv.now().Before(deadline) {
			return "", errors.WithStack(ErrReadTimeout)
		}

		if err := srv.poll(); err != nil {
			return "", err
		}
	}
}

// send writes all of data, polling the stack between partial writes.
func (srv *Server) send(conn Conn, data []byte) error {
	for sent := 0; sent < len(data); {
		n, err := conn.Write(data[sent:])
		if err != nil {
			return errors.Wrap(err, "http write")
		}
		sent += n

		if err := srv.poll(); err != nil {
			return err
		}
	}

	return nil
}

func (srv *Server) serve(conn Conn) error {
	line, err := srv.readLine(conn)
	if err != nil {
		return err
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "GET" {
		srv.log.WithField("request", line).Debug("unsupported request")
		return nil
	}

	return srv.sendFile(conn, fields[1])
}

// ContentType by file extension
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	default:
		return "text/html"
	}
}

func (srv *Server) header(status, contentType string, size int64) []byte {
	buff := bytebufferpool.Get()
	defer bytebufferpool.Put(buff)

	buff.WriteString("HTTP/1.1 ")
	buff.WriteString(status)
	buff.WriteString("\r\nContent-Length: ")
	buff.WriteString(strconv.FormatInt(size, 10))
	buff.WriteString("\r\nContent-Type: ")
	buff.WriteString(contentType)
	buff.WriteString("\r\nServer: ")
	buff.WriteString(serverName)
	buff.WriteString("\r\n\r\n")

	return append([]byte(nil), buff.B...)
}

func (srv *Server) notFound(conn Conn, target string) error {
	srv.log.WithField("url", target).Info("http not found")

	if err := srv.send(conn, srv.header("404 NOT FOUND", "text/html", int64(len(notFoundPage)))); err != nil {
		return err
	}

	return srv.send(conn, []byte(notFoundPage))
}

func (srv *Server) sendFile(conn Conn, target string) error {
	if idx := strings.IndexAny(target, "?#"); idx >= 0 {
		target = target[:idx]
	}

	name := strings.TrimPrefix(path.Clean("/"+target), "/")
	if name == "" {
		name = "index.html"
	}

	if srv.root == nil || !fs.ValidPath(name) {
		return srv.notFound(conn, target)
	}

	f, err := srv.root.Open(name)
	if err != nil {
		return srv.notFound(conn, target)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return srv.notFound(conn, target)
	}

	contentType := ContentType(name)

	srv.log.WithFields(logrus.Fields{
		"file": name,
		"type": contentType,
		"size": info.Size(),
	}).Info("http static file")

	if err := srv.send(conn, srv.header("200 OK", contentType, info.Size())); err != nil {
		return err
	}

	var chunk [chunkSize]byte

	for {
		n, err := f.Read(chunk[:])
		if n > 0 {
			if sendErr := srv.send(conn, chunk[:n]); sendErr != nil {
				return sendErr
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", name)
		}
	}
}
