package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/kulezi/cqldriver/frame"
	"github.com/kulezi/cqldriver/frame/request"
	"github.com/kulezi/cqldriver/frame/response"
	"go.uber.org/atomic"
)

// ioError marks a send/recv failure on the socket itself, as opposed to a
// server-reported protocol error; the default retry policy treats it as
// safe to retry on the next node (spec §7's Io(kind)).
type ioError struct{ err error }

func (e ioError) Error() string { return fmt.Sprintf("io: %v", e.err) }
func (e ioError) Unwrap() error { return e.err }

type connRequest struct {
	frame.Request
	StreamID        frame.StreamID
	Compress        bool
	Tracing         bool
	ResponseHandler ResponseHandler
}

type connWriter struct {
	conn      io.Writer
	buf       frame.Buffer
	version   frame.ProtocolVersion
	compress  frame.Compressor
	requestCh chan connRequest
	mu        sync.Mutex
}

func (c *connWriter) submit(r connRequest) {
	c.requestCh <- r
}

func (c *connWriter) loop() {
	runtime.LockOSThread()

	for r := range c.requestCh {
		if err := c.send(r); err != nil {
			r.ResponseHandler <- Reply{Err: ioError{err}}
		}
	}
}

func (c *connWriter) send(r connRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()

	var body frame.Buffer
	r.WriteTo(&body)
	if err := body.Error(); err != nil {
		return err
	}
	payload := body.Bytes()

	flags := frame.HeaderFlags(0)
	if c.compress != nil && r.OpCode() != frame.OpStartup && r.OpCode() != frame.OpOptions {
		compressed, err := c.compress.Compress(nil, payload)
		if err != nil {
			return fmt.Errorf("compress body: %w", err)
		}
		payload = compressed
		flags |= frame.FlagCompression
	}

	h := frame.Header{
		Version:  c.version,
		Flags:    flags,
		StreamID: r.StreamID,
		OpCode:   r.OpCode(),
		Length:   frame.Int(len(payload)),
	}
	h.WriteTo(&c.buf)
	c.buf.Write(payload)

	_, err := frame.CopyBuffer(&c.buf, c.conn)
	return err
}

type connReader struct {
	conn     *bufio.Reader
	buf      frame.Buffer
	bufw     io.Writer
	version  frame.ProtocolVersion
	compress frame.Compressor

	h map[frame.StreamID]ResponseHandler
	s streamIDAllocator
	mu sync.Mutex

	events chan *response.Event

	lastActivity atomic.Int64
}

func (c *connReader) setHandler(h ResponseHandler) (frame.StreamID, error) {
	c.mu.Lock()
	streamID, err := c.s.Alloc()
	if err != nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("stream ID alloc: %w", err)
	}

	c.h[streamID] = h
	c.mu.Unlock()
	return streamID, err
}

func (c *connReader) freeHandler(streamID frame.StreamID) {
	c.mu.Lock()
	c.s.Free(streamID)
	delete(c.h, streamID)
	c.mu.Unlock()
}

func (c *connReader) handler(streamID frame.StreamID) ResponseHandler {
	c.mu.Lock()
	h := c.h[streamID]
	c.mu.Unlock()
	return h
}

// abortAll cancels every pending stream with ConnectionClosed, used on
// socket failure and on Close.
func (c *connReader) abortAll(err error) {
	c.mu.Lock()
	handlers := make([]ResponseHandler, 0, len(c.h))
	for _, h := range c.h {
		handlers = append(handlers, h)
	}
	c.h = make(map[frame.StreamID]ResponseHandler)
	c.mu.Unlock()

	for _, h := range handlers {
		select {
		case h <- Reply{Err: err}:
		default:
		}
	}
}

func (c *connReader) loop() {
	runtime.LockOSThread()

	c.bufw = frame.BufferWriter(&c.buf)
	for {
		r, err := c.recv()
		if err != nil {
			c.abortAll(ioError{err})
			return
		}
		c.lastActivity.Store(timeNowUnixNano())

		if r.Header.OpCode == frame.OpEvent {
			if ev, ok := r.Response.(*response.Event); ok && c.events != nil {
				select {
				case c.events <- ev:
				default:
				}
			}
			continue
		}

		if h := c.handler(r.Header.StreamID); h != nil {
			select {
			case h <- r:
			default:
			}
		}
		// A response for a stream with no registered handler is a late
		// (orphaned) reply to a request whose caller already gave up; drop it.
	}
}

func timeNowUnixNano() int64 {
	return time.Now().UnixNano()
}

func (c *connReader) recv() (Reply, error) {
	c.buf.Reset()

	hdrSize := int64(frame.HeaderSize)
	if c.version != 0 && c.version < frame.CQLv3 {
		hdrSize = 8
	}
	if _, err := io.CopyN(c.bufw, c.conn, hdrSize); err != nil {
		return Reply{}, fmt.Errorf("read header: %w", err)
	}
	h := frame.ParseHeader(&c.buf)
	if err := c.buf.Error(); err != nil {
		return Reply{}, fmt.Errorf("parse header: %w", err)
	}

	c.buf.Reset()
	if _, err := io.CopyN(c.bufw, c.conn, int64(h.Length)); err != nil {
		return Reply{}, fmt.Errorf("read body: %w", err)
	}

	body := c.buf.Bytes()
	if h.Flags&frame.FlagCompression != 0 && c.compress != nil {
		decompressed, err := c.compress.Decompress(body)
		if err != nil {
			return Reply{}, fmt.Errorf("decompress body: %w", err)
		}
		c.buf.Reset()
		c.buf.Write(decompressed)
	}

	resp, err := c.parse(h.OpCode)
	if err != nil {
		return Reply{}, fmt.Errorf("parse body: %w", err)
	}
	if err := c.buf.Error(); err != nil {
		return Reply{}, fmt.Errorf("parse body: %w", err)
	}
	if c.buf.Remaining() != 0 {
		return Reply{}, &frame.FrameFormatError{Msg: "trailing bytes after body"}
	}

	return Reply{Header: h, Response: resp}, nil
}

func (c *connReader) parse(op frame.OpCode) (frame.Response, error) {
	switch op {
	case frame.OpError:
		return response.ParseError(&c.buf), nil
	case frame.OpReady:
		return response.ParseReady(&c.buf), nil
	case frame.OpAuthenticate:
		return response.ParseAuthenticate(&c.buf), nil
	case frame.OpSupported:
		return response.ParseSupported(&c.buf), nil
	case frame.OpResult:
		return response.ParseResult(&c.buf, c.version), nil
	case frame.OpEvent:
		return response.ParseEvent(&c.buf), nil
	case frame.OpAuthChallenge:
		return response.ParseAuthChallenge(&c.buf), nil
	case frame.OpAuthSuccess:
		return response.ParseAuthSuccess(&c.buf), nil
	default:
		return nil, fmt.Errorf("unsupported opcode %#x", op)
	}
}

// streamIDAllocator hands out stream ids 0..maxStreams-1; Alloc/Free are
// guarded by connReader.mu, matching spec §4.3's Free→InFlight→Done state
// machine (Done is represented simply by the id returning to the free set).
type streamIDAllocator struct {
	free  []frame.StreamID
	limit int
	next  int
	inUse map[frame.StreamID]bool
}

func (s *streamIDAllocator) init(limit int) {
	s.limit = limit
	s.inUse = make(map[frame.StreamID]bool)
}

func (s *streamIDAllocator) Alloc() (frame.StreamID, error) {
	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]
		s.inUse[id] = true
		return id, nil
	}
	if s.next >= s.limit {
		return 0, fmt.Errorf("no free stream ids")
	}
	id := frame.StreamID(s.next)
	s.next++
	s.inUse[id] = true
	return id, nil
}

func (s *streamIDAllocator) Free(id frame.StreamID) {
	if s.inUse[id] {
		delete(s.inUse, id)
		s.free = append(s.free, id)
	}
}

func (s *streamIDAllocator) InFlight() int {
	return len(s.inUse)
}

// Conn is one multiplexed TCP (optionally TLS) connection to a host,
// wrapping frame.Request/Response exchange over stream ids (spec §4.3).
type Conn struct {
	conn    net.Conn
	w       connWriter
	r       connReader
	version frame.ProtocolVersion
	shard   ShardInfo

	closed atomic.Bool
	doneCh chan struct{}

	heartbeatCancel context.CancelFunc
}

// ConnConfig is the per-connection configuration shared by every pool.
type ConnConfig struct {
	TCPNoDelay         bool
	Timeout            time.Duration
	DefaultConsistency frame.Consistency
	Version            frame.ProtocolVersion
	Compression        frame.Compressor
	Authenticator      Authenticator
	TLS                *tls.Config
	Keyspace           string
	HeartbeatInterval  time.Duration

	// MaxRequestsPerConnection bounds a single connection's in-flight
	// request count; a borrow that would exceed it fails with PoolBusy
	// instead of queueing (spec §4.4 step 3).
	MaxRequestsPerConnection int

	// CoreConnectionsPerHost, MaxConnectionsPerHost and
	// MaxInflightThresholdToConsiderResizing are keyed by a node's
	// HostDistance from the local datacenter (spec §4.4's per-distance
	// configuration); they only apply to a non-sharded pool, since a
	// Scylla shard-aware pool's connection count is fixed at one per
	// shard by the protocol itself.
	CoreConnectionsPerHost                 map[HostDistance]int
	MaxConnectionsPerHost                  map[HostDistance]int
	MaxInflightThresholdToConsiderResizing map[HostDistance]int

	// PoolResizeCooldown bounds how often a non-sharded pool may grow
	// past its core connection count (spec §4.4's background-growth
	// cooldown).
	PoolResizeCooldown time.Duration
}

func DefaultConnConfig(keyspace string) ConnConfig {
	return ConnConfig{
		TCPNoDelay:               true,
		Timeout:                  5 * time.Second,
		DefaultConsistency:       frame.QUORUM,
		Version:                  frame.CQLv4,
		Keyspace:                 keyspace,
		HeartbeatInterval:        30 * time.Second,
		MaxRequestsPerConnection: 1024,
		CoreConnectionsPerHost:   map[HostDistance]int{Local: 1, Remote: 1},
		MaxConnectionsPerHost:    map[HostDistance]int{Local: 8, Remote: 2},
		MaxInflightThresholdToConsiderResizing: map[HostDistance]int{
			Local:  128,
			Remote: 128,
		},
		PoolResizeCooldown: 10 * time.Second,
	}
}

const (
	requestChanSize = 1024
	ioBufferSize    = 8192
)

func maxStreamsFor(v frame.ProtocolVersion) int {
	if v < frame.CQLv3 {
		return 128
	}
	return 32768
}

// ShardInfo is the Scylla sharding hint learned from SUPPORTED (spec §3).
type ShardInfo struct {
	NrShards          int
	ShardAwarePort    uint16
	ShardAwarePortSSL uint16
}

const (
	minPort = 49152
	maxPort = 65535
)

// ShardPortIterator yields candidate local ports satisfying
// p mod si.NrShards == shard, cycling through the ephemeral range.
func ShardPortIterator(si ShardInfo, shard int) func() uint16 {
	span := maxPort - minPort + 1
	i := 0
	return func() uint16 {
		for {
			p := minPort + i%span
			i++
			if si.NrShards <= 0 || p%si.NrShards == shard {
				return uint16(p)
			}
		}
	}
}

// OpenShardConn opens a connection mapped to a specific shard on a Scylla
// node: it retries local ports whose value mod NrShards lands on shard.
func OpenShardConn(ctx context.Context, addr string, shard int, si ShardInfo, cfg ConnConfig) (*Conn, error) {
	if si.NrShards <= 0 {
		return OpenConn(ctx, addr, nil, cfg)
	}

	it := ShardPortIterator(si, shard)
	maxTries := (maxPort-minPort+1)/si.NrShards + 1
	var lastErr error
	for i := 0; i < maxTries; i++ {
		conn, err := OpenLocalPortConn(ctx, addr, it(), cfg)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to open connection on shard port: all local ports busy: %w", lastErr)
}

func OpenLocalPortConn(ctx context.Context, addr string, localPort uint16, cfg ConnConfig) (*Conn, error) {
	localAddr, err := net.ResolveTCPAddr("tcp", ":"+strconv.Itoa(int(localPort)))
	if err != nil {
		return nil, fmt.Errorf("resolving local TCP address: %w", err)
	}
	return OpenConn(ctx, addr, localAddr, cfg)
}

// OpenConn opens a connection, optionally from a specific local address,
// and runs the STARTUP/AUTHENTICATE handshake to completion.
func OpenConn(ctx context.Context, addr string, localAddr *net.TCPAddr, cfg ConnConfig) (*Conn, error) {
	d := net.Dialer{Timeout: cfg.Timeout, LocalAddr: localAddr}

	var conn net.Conn
	var err error
	if cfg.TLS != nil {
		conn, err = tls.DialWithDialer(&d, "tcp", addr, cfg.TLS)
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dialing TCP address %s: %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(cfg.TCPNoDelay); err != nil {
			return nil, fmt.Errorf("setting TCP no delay option: %w", err)
		}
	}

	c := wrapConn(conn, cfg)
	if err := c.handshake(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func wrapConn(conn net.Conn, cfg ConnConfig) *Conn {
	version := cfg.Version
	if version == 0 {
		version = frame.CQLv4
	}
	c := &Conn{
		conn:    conn,
		version: version,
		doneCh:  make(chan struct{}),
		w: connWriter{
			conn:      conn,
			version:   version,
			compress:  cfg.Compression,
			requestCh: make(chan connRequest, requestChanSize),
		},
		r: connReader{
			conn:    bufio.NewReaderSize(conn, ioBufferSize),
			version: version,
			compress: cfg.Compression,
			h:       make(map[frame.StreamID]ResponseHandler),
			events:  make(chan *response.Event, 64),
		},
	}
	c.r.s.init(maxStreamsFor(version))
	go c.w.loop()
	go c.r.loop()
	return c
}

func (c *Conn) handshake(ctx context.Context, cfg ConnConfig) error {
	supported, err := c.options(ctx)
	if err != nil {
		return fmt.Errorf("OPTIONS: %w", err)
	}
	if nr, port, portSSL, ok := supported.ShardingInfo(); ok {
		c.shard.NrShards = nr
		if p, err := strconv.Atoi(port); err == nil {
			c.shard.ShardAwarePort = uint16(p)
		}
		if p, err := strconv.Atoi(portSSL); err == nil {
			c.shard.ShardAwarePortSSL = uint16(p)
		}
	}

	opts := frame.StartupOptions{frame.StartupCQLVersion: frame.DefaultCQLVersion}
	if cfg.Compression != nil {
		opts[frame.StartupCompression] = cfg.Compression.Name()
	}

	resp, err := c.Startup(ctx, opts)
	if err != nil {
		return fmt.Errorf("STARTUP: %w", err)
	}

	switch r := resp.(type) {
	case *response.Ready:
		// fall through
	case *response.Authenticate:
		if cfg.Authenticator == nil {
			return fmt.Errorf("server requires authentication (%s) but no Authenticator was configured", r.AuthenticatorClass)
		}
		if err := c.authenticate(ctx, cfg.Authenticator, r.AuthenticatorClass); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	default:
		return fmt.Errorf("unexpected STARTUP response %T", resp)
	}

	if cfg.Keyspace != "" {
		if _, err := c.Query(ctx, Statement{Content: "USE " + cfg.Keyspace, Consistency: frame.ONE}, nil); err != nil {
			return fmt.Errorf("USE %s: %w", cfg.Keyspace, err)
		}
	}

	if cfg.HeartbeatInterval > 0 {
		c.heartbeatCancel = c.startHeartbeat(cfg.HeartbeatInterval)
	}
	return nil
}

func (c *Conn) authenticate(ctx context.Context, a Authenticator, class string) error {
	token, err := a.InitialResponse(class)
	if err != nil {
		return err
	}
	for {
		resp, err := c.sendRequest(ctx, &request.AuthResponse{Token: token}, false, false)
		if err != nil {
			return err
		}
		switch r := resp.(type) {
		case *response.AuthSuccess:
			return a.Success(r.Token)
		case *response.AuthChallenge:
			token, err = a.Challenge(r.Token)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected response during auth: %T", resp)
		}
	}
}

func (c *Conn) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.heartbeatCancel != nil {
		c.heartbeatCancel()
	}
	close(c.doneCh)
	_ = c.conn.Close()
	close(c.w.requestCh)
	c.r.abortAll(fmt.Errorf("connection closed"))
}

func (c *Conn) Closed() bool { return c.closed.Load() }

func (c *Conn) InFlight() int {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	return c.r.s.InFlight()
}

func (c *Conn) Shard() ShardInfo { return c.shard }

func (c *Conn) Events() <-chan *response.Event { return c.r.events }

func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.r.lastActivity.Load())
}

func (c *Conn) Startup(ctx context.Context, options frame.StartupOptions) (frame.Response, error) {
	return c.sendRequest(ctx, &request.Startup{Options: options}, false, false)
}

func (c *Conn) options(ctx context.Context) (*response.Supported, error) {
	resp, err := c.sendRequest(ctx, &request.Options{}, false, false)
	if err != nil {
		return nil, err
	}
	sup, ok := resp.(*response.Supported)
	if !ok {
		return nil, fmt.Errorf("unexpected OPTIONS response %T", resp)
	}
	return sup, nil
}

func (c *Conn) Register(ctx context.Context, events frame.StringList) error {
	_, err := c.sendRequest(ctx, &request.Register{Events: events}, false, false)
	return err
}

func stmtToQueryParams(stmt Statement, pagingState []byte) request.QueryParams {
	p := request.QueryParams{
		Consistency:          stmt.Consistency,
		Values:               stmt.Values,
		SkipMetadata:         !stmt.NoSkipMetadata && stmt.Metadata != nil,
		HasSerialConsistency: stmt.SerialConsistency != 0,
		SerialConsistency:    stmt.SerialConsistency,
	}
	if stmt.PageSize > 0 {
		p.HasPageSize = true
		p.PageSize = frame.Int(stmt.PageSize)
	}
	if len(pagingState) > 0 {
		p.HasPagingState = true
		p.PagingState = pagingState
	}
	return p
}

func (c *Conn) Query(ctx context.Context, stmt Statement, pagingState []byte) (QueryResult, error) {
	req := &request.Query{
		Version: c.version,
		Content: stmt.Content,
		Params:  stmtToQueryParams(stmt, pagingState),
	}
	resp, err := c.sendRequest(ctx, req, stmt.Compression, false)
	if err != nil {
		return QueryResult{}, err
	}
	return MakeQueryResult(resp, stmt.Metadata)
}

func (c *Conn) AsyncQuery(ctx context.Context, stmt Statement, pagingState []byte, h ResponseHandler) {
	req := &request.Query{
		Version: c.version,
		Content: stmt.Content,
		Params:  stmtToQueryParams(stmt, pagingState),
	}
	c.asyncSendRequest(ctx, req, stmt.Compression, false, h)
}

func (c *Conn) Execute(ctx context.Context, stmt Statement, pagingState []byte) (QueryResult, error) {
	req := &request.Execute{
		Version:          c.version,
		ID:               stmt.ID,
		ResultMetadataID: stmt.ResultMetadataID,
		Params:           stmtToQueryParams(stmt, pagingState),
	}
	resp, err := c.sendRequest(ctx, req, stmt.Compression, false)
	if err != nil {
		return QueryResult{}, err
	}
	return MakeQueryResult(resp, stmt.Metadata)
}

func (c *Conn) AsyncExecute(ctx context.Context, stmt Statement, pagingState []byte, h ResponseHandler) {
	req := &request.Execute{
		Version:          c.version,
		ID:               stmt.ID,
		ResultMetadataID: stmt.ResultMetadataID,
		Params:           stmtToQueryParams(stmt, pagingState),
	}
	c.asyncSendRequest(ctx, req, stmt.Compression, false, h)
}

// Prepare sends a PREPARE for stmt.Content and returns a Bound Statement
// carrying the server's queryId and variable/result metadata.
func (c *Conn) Prepare(ctx context.Context, stmt Statement, keyspace string) (Statement, error) {
	req := &request.Prepare{Version: c.version, Content: stmt.Content, Keyspace: keyspace}
	resp, err := c.sendRequest(ctx, req, false, false)
	if err != nil {
		return Statement{}, err
	}
	p, ok := resp.(*response.Prepared)
	if !ok {
		return Statement{}, fmt.Errorf("unexpected PREPARE response %T", resp)
	}

	meta := p.ResultMeta
	return Statement{
		Content:           stmt.Content,
		ID:                p.ID,
		ResultMetadataID:  p.ResultMetadataID,
		Values:            make([]frame.Value, len(p.VariablesMeta.Columns)),
		PkIndexes:         p.PKIndexes,
		Metadata:          &meta,
		Consistency:       stmt.Consistency,
		SerialConsistency: stmt.SerialConsistency,
		PageSize:          stmt.PageSize,
		Idempotent:        stmt.Idempotent,
	}, nil
}

func (c *Conn) Batch(ctx context.Context, kind request.BatchKind, statements []request.BatchStatement, consistency frame.Consistency, params request.QueryParams) (QueryResult, error) {
	req := &request.Batch{
		Version:     c.version,
		Kind:        kind,
		Statements:  statements,
		Consistency: consistency,
		Params:      params,
	}
	resp, err := c.sendRequest(ctx, req, false, false)
	if err != nil {
		return QueryResult{}, err
	}
	return MakeQueryResult(resp, nil)
}

func (c *Conn) sendRequest(ctx context.Context, req frame.Request, compress, tracing bool) (frame.Response, error) {
	h := MakeResponseHandler()
	c.asyncSendRequest(ctx, req, compress, tracing, h)

	select {
	case resp := <-h:
		if resp.Err != nil {
			return nil, resp.Err
		}
		if codedErr, ok := resp.Response.(frame.CodedError); ok {
			return nil, codedErr
		}
		return resp.Response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) asyncSendRequest(ctx context.Context, req frame.Request, compress, tracing bool, h ResponseHandler) {
	if c.closed.Load() {
		h <- Reply{Err: fmt.Errorf("connection closed")}
		return
	}

	streamID, err := c.r.setHandler(h)
	if err != nil {
		h <- Reply{Err: fmt.Errorf("set handler: %w", err)}
		return
	}

	r := connRequest{
		Request:         req,
		StreamID:        streamID,
		Compress:        compress,
		Tracing:         tracing,
		ResponseHandler: h,
	}

	select {
	case c.w.requestCh <- r:
	case <-ctx.Done():
		c.r.freeHandler(streamID)
		h <- Reply{Err: ctx.Err()}
		return
	}

	go func() {
		select {
		case resp := <-h:
			c.r.freeHandler(streamID)
			h <- resp
		case <-c.doneCh:
		}
	}()
}
