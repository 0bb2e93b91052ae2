package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
)

// memStore 是内存版的节点树，只实现锁需要的语义
type memStore struct {
	mu      sync.Mutex
	nodes   map[string]bool
	seq     int
	watches map[string][]chan zk.Event
}

func newMemStore() *memStore {
	return &memStore{nodes: map[string]bool{}, watches: map[string][]chan zk.Event{}}
}

func (s *memStore) Exists(path string) (bool, *zk.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[path], &zk.Stat{}, nil
}

func (s *memStore) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan zk.Event, 1)
	s.watches[path] = append(s.watches[path], ch)
	return s.nodes[path], &zk.Stat{}, ch, nil
}

func (s *memStore) Create(path string, _ []byte, _ int32, _ []zk.ACL) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodes[path] {
		return "", zk.ErrNodeExists
	}
	s.nodes[path] = true
	return path, nil
}

func (s *memStore) CreateProtectedEphemeralSequential(path string, _ []byte, _ []zk.ACL) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	dir := path[:strings.LastIndex(path, "/")]
	base := path[strings.LastIndex(path, "/")+1:]
	// guid 递减，按名字排序会得到错误顺序
	node := fmt.Sprintf("%s/_c_%08d-%s%010d", dir, 1000-s.seq, base, s.seq)
	s.nodes[node] = true
	return node, nil
}

func (s *memStore) Children(path string) ([]string, *zk.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for n := range s.nodes {
		if rest, ok := strings.CutPrefix(n, path+"/"); ok && !strings.Contains(rest, "/") {
			out = append(out, rest)
		}
	}
	return out, &zk.Stat{}, nil
}

func (s *memStore) Delete(path string, _ int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.nodes[path] {
		return zk.ErrNoNode
	}
	delete(s.nodes, path)
	for _, ch := range s.watches[path] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
	}
	delete(s.watches, path)
	return nil
}

func (s *memStore) count(prefix string) int {
	children, _, _ := s.Children(prefix)
	return len(children)
}

func TestLockWaitsForPredecessor(t *testing.T) {
	store := newMemStore()
	first, err := NewDistributedLock(store, "product-1")
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if err := first.Lock(context.Background(), time.Second); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	second, _ := NewDistributedLock(store, "product-1")
	acquired := make(chan error, 1)
	go func() { acquired <- second.Lock(context.Background(), 2*time.Second) }()

	select {
	case err := <-acquired:
		t.Fatalf("second lock acquired while first held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("second lock: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("second lock not acquired after release")
	}
	_ = second.Unlock()
}

func TestLockTimeoutRemovesOwnNode(t *testing.T) {
	store := newMemStore()
	holder, _ := NewDistributedLock(store, "product-2")
	if err := holder.Lock(context.Background(), time.Second); err != nil {
		t.Fatalf("holder lock: %v", err)
	}

	waiter, _ := NewDistributedLock(store, "product-2")
	err := waiter.Lock(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if n := store.count(lockRoot + "/product-2"); n != 1 {
		t.Fatalf("expected only the holder node to remain, got %d", n)
	}
}

func TestMultiLockReleasesAll(t *testing.T) {
	store := newMemStore()
	m := NewMultiLock(store, "product-", time.Second)

	release, err := m.LockAll(context.Background(), []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("lock all: %v", err)
	}
	for _, id := range []string{"1", "2", "3"} {
		if n := store.count(lockRoot + "/product-" + id); n != 1 {
			t.Fatalf("product-%s: expected 1 lock node, got %d", id, n)
		}
	}
	release()
	for _, id := range []string{"1", "2", "3"} {
		if n := store.count(lockRoot + "/product-" + id); n != 0 {
			t.Fatalf("product-%s: expected lock released, got %d nodes", id, n)
		}
	}
}

func TestSortBySequence(t *testing.T) {
	children := []string{"_c_b-lock-0000000003", "_c_c-lock-0000000001", "_c_a-lock-0000000002"}
	sortBySequence(children)
	if children[0] != "_c_c-lock-0000000001" || children[2] != "_c_b-lock-0000000003" {
		t.Fatalf("unexpected order: %v", children)
	}
}
