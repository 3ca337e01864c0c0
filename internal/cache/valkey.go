package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-digest/internal/config"
)

// ValkeyProvider implements Provider against a Valkey or Redis compatible
// server. Each call dials a fresh connection; the digest issues a handful of
// commands per run.
type ValkeyProvider struct {
	cfg config.CacheConfig
}

// ValkeyError is an error reply sent by the server.
type ValkeyError struct {
	Message string
}

func (e *ValkeyError) Error() string { return "valkey: " + e.Message }

// NewValkeyProvider pings the configured server so bad credentials or
// addresses fail at startup.
func NewValkeyProvider(cfg config.CacheConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("cache.addr is required when the cache is enabled")
	}
	withDefaults(&cfg)
	provider := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	reply, err := provider.exec(ctx, "PING")
	if err != nil {
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	if !reply.is(replySimpleString, "PONG") {
		return nil, fmt.Errorf("unexpected PING response: %s", reply.data)
	}
	return provider, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := p.exec(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	switch reply.typ {
	case replyNil:
		return nil, ErrCacheMiss
	case replyBulkString:
		return reply.data, nil
	default:
		return nil, fmt.Errorf("unexpected GET reply type %q", reply.typ)
	}
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	reply, err := p.exec(ctx, "SET", setArgs(key, value, ttl)...)
	if err != nil {
		return err
	}
	if !reply.is(replySimpleString, "OK") {
		return fmt.Errorf("unexpected SET response: %s", reply.data)
	}
	return nil
}

// SetNX stores the value only if the key does not exist and reports whether it did.
func (p *ValkeyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	reply, err := p.exec(ctx, "SET", append(setArgs(key, value, ttl), "NX")...)
	if err != nil {
		return false, err
	}
	switch reply.typ {
	case replySimpleString:
		return true, nil
	case replyNil:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected SET NX reply type %q", reply.typ)
	}
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.exec(ctx, "DEL", key)
	return err
}

// Close is a no-op; connections are not pooled.
func (p *ValkeyProvider) Close() error { return nil }

func setArgs(key string, value []byte, ttl time.Duration) []any {
	args := []any{key, value}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	return args
}

// exec runs one command on a fresh, authenticated connection, retrying
// transient network failures up to MaxRetries attempts.
func (p *ValkeyProvider) exec(ctx context.Context, command string, args ...any) (respReply, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return respReply{}, err
		}
		if attempt > 0 {
			time.Sleep(backoff(attempt - 1))
		}
		reply, err := p.execOnce(ctx, command, args...)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return respReply{}, lastErr
}

func (p *ValkeyProvider) execOnce(ctx context.Context, command string, args ...any) (respReply, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return respReply{}, err
	}
	defer conn.close()

	if err := p.handshake(conn); err != nil {
		return respReply{}, err
	}
	if err := conn.send(command, args...); err != nil {
		return respReply{}, err
	}
	return conn.receive()
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	netDialer := &net.Dialer{Timeout: dialTimeout(ctx, p.cfg.DialTimeout)}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		dialer := &tls.Dialer{
			NetDialer: netDialer,
			Config:    &tls.Config{MinVersion: tls.VersionTLS12, ServerName: hostOnly(p.cfg.Addr)},
		}
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &respConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

func (p *ValkeyProvider) handshake(conn *respConn) error {
	if p.cfg.Password != "" {
		args := []any{p.cfg.Password}
		if p.cfg.Username != "" {
			args = []any{p.cfg.Username, p.cfg.Password}
		}
		if err := conn.expectOK("AUTH", args...); err != nil {
			return fmt.Errorf("auth failed: %w", err)
		}
	}
	if p.cfg.DB > 0 {
		if err := conn.expectOK("SELECT", strconv.Itoa(p.cfg.DB)); err != nil {
			return fmt.Errorf("select failed: %w", err)
		}
	}
	return nil
}

type replyType byte

const (
	replySimpleString replyType = '+'
	replyInteger      replyType = ':'
	replyBulkString   replyType = '$'
	replyNil          replyType = '_'
)

type respReply struct {
	typ  replyType
	data []byte
}

func (r respReply) is(typ replyType, text string) bool {
	return r.typ == typ && strings.EqualFold(string(r.data), text)
}

// respConn speaks the subset of RESP2 the provider needs.
type respConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *respConn) close() { _ = c.conn.Close() }

func (c *respConn) expectOK(command string, args ...any) error {
	if err := c.send(command, args...); err != nil {
		return err
	}
	reply, err := c.receive()
	if err != nil {
		return err
	}
	if !reply.is(replySimpleString, "OK") {
		return fmt.Errorf("unexpected %s response: %s", command, reply.data)
	}
	return nil
}

// send writes command and args as a RESP array of bulk strings. Args must be
// strings or byte slices.
func (c *respConn) send(command string, args ...any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	fmt.Fprintf(c.writer, "*%d\r\n", len(args)+1)
	writeBulk(c.writer, []byte(command))
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			writeBulk(c.writer, []byte(v))
		case []byte:
			writeBulk(c.writer, v)
		default:
			return fmt.Errorf("unsupported argument type %T", arg)
		}
	}
	return c.writer.Flush()
}

func writeBulk(w *bufio.Writer, data []byte) {
	fmt.Fprintf(w, "$%d\r\n", len(data))
	_, _ = w.Write(data)
	_, _ = w.WriteString("\r\n")
}

func (c *respConn) receive() (respReply, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := c.reader.ReadByte()
	if err != nil {
		return respReply{}, err
	}
	line, err := c.readLine()
	if err != nil {
		return respReply{}, err
	}
	switch prefix {
	case '+':
		return respReply{typ: replySimpleString, data: line}, nil
	case ':':
		return respReply{typ: replyInteger, data: line}, nil
	case '-':
		return respReply{}, &ValkeyError{Message: string(line)}
	case '_':
		return respReply{typ: replyNil}, nil
	case '$':
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, fmt.Errorf("bulk length %q: %w", line, err)
		}
		if size < 0 {
			return respReply{typ: replyNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return respReply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return respReply{}, errors.New("invalid bulk string termination")
		}
		return respReply{typ: replyBulkString, data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (c *respConn) readLine() ([]byte, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func withDefaults(cfg *config.CacheConfig) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
}

func dialTimeout(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			return max(remaining, time.Millisecond)
		}
	}
	return d
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 25 * time.Millisecond
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
