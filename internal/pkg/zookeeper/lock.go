// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog/log"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
)

var ErrLockTimeout = errors.New("timeout waiting for lock")

// NodeStore 是锁实现用到的 ZooKeeper 操作子集，*zk.Conn 满足该接口。
type NodeStore interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// Connect 建立 ZooKeeper 会话
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper %v: %w", servers, err)
	}
	log.Info().Strs("servers", servers).Msg("✅ Connected to ZooKeeper.")
	return conn, nil
}

// DistributedLock 定义了一个分布式锁对象
type DistributedLock struct {
	conn     NodeStore
	path     string // 锁的路径，例如 /distributed_locks/product-123
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例，并确保锁路径存在
func NewDistributedLock(conn NodeStore, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	for _, p := range []string{lockRoot, lockPath} {
		if err := ensureNode(conn, p); err != nil {
			return nil, err
		}
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

func ensureNode(conn NodeStore, path string) error {
	exists, _, err := conn.Exists(path)
	if err == nil && exists {
		return nil
	}
	_, err = conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create lock node %s: %w", path, err)
	}
	return nil
}

// Lock 尝试获取锁，获取不到时阻塞等待前一个节点删除，直到 ctx 结束或超时
func (l *DistributedLock) Lock(ctx context.Context, timeout time.Duration) error {
	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath
	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		// 2. 获取锁路径下的所有子节点，按序号排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		sortBySequence(children)

		// 3. 判断自己是否是最小的节点
		idx := indexOf(children, myNodeName)
		if idx == 0 {
			return nil
		}
		if idx < 0 {
			l.abandon()
			return errors.New("own lock node disappeared, session may have expired")
		}

		// 4. 不是最小节点，只监听前一个节点，避免羊群效应
		prevNodePath := l.path + "/" + children[idx-1]
		exists, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
			// 前一个节点有变化，重新进入循环去竞争锁
		case <-ctx.Done():
			l.abandon()
			return ctx.Err()
		case <-deadline.C:
			l.abandon()
			return fmt.Errorf("%w: %s", ErrLockTimeout, l.path)
		}
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}

// 放弃排队，删除自己的节点，后面的等待者才能继续
func (l *DistributedLock) abandon() {
	if err := l.Unlock(); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("failed to remove abandoned lock node")
	}
}

// protected 节点名形如 _c_<guid>-lock-0000000003，只能按末尾的序号比较
func sortBySequence(children []string) {
	sort.SliceStable(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})
}

func sequenceOf(node string) string {
	if i := strings.LastIndex(node, "-"); i >= 0 {
		return node[i+1:]
	}
	return node
}

func indexOf(children []string, name string) int {
	for i, c := range children {
		if c == name {
			return i
		}
	}
	return -1
}
