package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"dex-trader-sol/internal/cache"
	"dex-trader-sol/internal/config"
	"dex-trader-sol/internal/metrics"
	"dex-trader-sol/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// BlockhashStream 订阅 BlocksMeta，持续把最新 blockhash 写入缓存
type BlockhashStream struct {
	mu                sync.Mutex
	conn              *grpc.ClientConn
	client            pb.GeyserClient
	stream            pb.Geyser_SubscribeClient
	stopped           bool
	reconnectAttempts int
	reconnectInterval time.Duration
	xToken            string
	pingInterval      time.Duration
	blockRecvTimeout  time.Duration
	sendTimeout       time.Duration
	connCtx           context.Context
	connCancel        context.CancelFunc

	cache *cache.BlockhashCache
}

func NewBlockhashStream(conf config.GrpcConfig, bc *cache.BlockhashCache) (*BlockhashStream, error) {
	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(conf.ConnectTimeoutSec)*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		conf.Endpoint,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{InsecureSkipVerify: true})),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(conf.MaxCallRecvMsgSize)),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(conf.KeepalivePingIntervalSec) * time.Second,
			Timeout:             time.Duration(conf.KeepalivePingTimeoutSec) * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return newBlockhashStream(conn, pb.NewGeyserClient(conn), conf, bc), nil
}

func newBlockhashStream(conn *grpc.ClientConn, client pb.GeyserClient, conf config.GrpcConfig, bc *cache.BlockhashCache) *BlockhashStream {
	return &BlockhashStream{
		conn:              conn,
		client:            client,
		reconnectInterval: secondsOr(conf.ReconnectIntervalSec, 1),
		xToken:            conf.XToken,
		pingInterval:      secondsOr(conf.StreamPingIntervalSec, 10),
		blockRecvTimeout:  secondsOr(conf.BlockRecvTimeoutSec, 15),
		sendTimeout:       secondsOr(conf.SendTimeoutSec, 5),
		cache:             bc,
	}
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

func (m *BlockhashStream) Start() {
	m.mustConnect()
}

func (m *BlockhashStream) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
	}
	logger.Infof("[BlockhashStream] stopped")
}

// mustConnect 循环直到连接成功或已停止
func (m *BlockhashStream) mustConnect() {
	for {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		attempts := m.reconnectAttempts
		m.mu.Unlock()

		if attempts > 0 {
			if attempts > 3 {
				time.Sleep(m.reconnectInterval * 2)
			} else {
				time.Sleep(m.reconnectInterval)
			}
		}
		logger.Infof("[BlockhashStream] connecting... attempt %d", attempts+1)
		err := m.connect()
		if err == nil {
			return
		}
		logger.Warnf("[BlockhashStream] connect failed: %v, will retry...", err)
	}
}

func buildSubscribeRequest() *pb.SubscribeRequest {
	commitment := pb.CommitmentLevel_CONFIRMED
	return &pb.SubscribeRequest{
		BlocksMeta: map[string]*pb.SubscribeRequestFilterBlocksMeta{
			"blockhash": {},
		},
		Commitment: &commitment,
	}
}

// connect 只尝试一次
func (m *BlockhashStream) connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return errors.New("stream is stopped")
	}
	m.reconnectAttempts++

	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.connCtx, m.connCancel = context.WithCancel(context.Background())

	metaCtx := metadata.NewOutgoingContext(
		m.connCtx,
		metadata.New(map[string]string{"x-token": m.xToken}),
	)
	stream, err := m.client.Subscribe(metaCtx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if err := sendWithTimeout(m.connCtx, stream.Send, buildSubscribeRequest(), m.sendTimeout); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}

	m.stream = stream
	m.reconnectAttempts = 0
	logger.Infof("[BlockhashStream] connection established")

	go m.pingLoop(m.connCtx, stream)
	go m.recvLoop(m.connCtx, stream)
	return nil
}

func (m *BlockhashStream) recvLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	last := time.Now()
	for {
		if ctx.Err() != nil {
			return
		}
		update, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Warnf("[BlockhashStream] stream closed by server (EOF), will reconnect")
				m.reconnect()
				return
			}
			logger.Warnf("[BlockhashStream] stream error: %v", err)
			if m.reconnectIfStale(last) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if m.handleUpdate(update) {
			last = time.Now()
		}
		if m.reconnectIfStale(last) {
			return
		}
	}
}

// handleUpdate 返回是否收到区块元数据
func (m *BlockhashStream) handleUpdate(update *pb.SubscribeUpdate) bool {
	u, ok := update.GetUpdateOneof().(*pb.SubscribeUpdate_BlockMeta)
	if !ok || u.BlockMeta == nil {
		return false
	}
	meta := u.BlockMeta
	if m.cache.Update(meta.Blockhash, meta.Slot) {
		metrics.IncBlockhashStreamUpdates()
		logger.Debugf("[BlockhashStream] slot=%d blockhash=%s", meta.Slot, meta.Blockhash)
	}
	return true
}

func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}

// pingLoop 应用层心跳，失败只记录日志
func (m *BlockhashStream) pingLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req := &pb.SubscribeRequest{Ping: &pb.SubscribeRequestPing{Id: 1}}
			if err := sendWithTimeout(ctx, stream.Send, req, m.sendTimeout); err != nil {
				logger.Warnf("[BlockhashStream] ping failed: %v", err)
			}
		}
	}
}

func (m *BlockhashStream) reconnectIfStale(last time.Time) bool {
	if time.Since(last) > m.blockRecvTimeout {
		logger.Warnf("[BlockhashStream] %v 未收到区块，触发重连", m.blockRecvTimeout)
		m.reconnect()
		return true
	}
	return false
}

func (m *BlockhashStream) reconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.mu.Unlock()

	go m.mustConnect()
}
