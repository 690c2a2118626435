// Package modcache provides a bounded, LRU-evicting cache of resolved
// module records, adapted from the teacher's generic core/cache: an
// ActorSystem hosting many dynamically registered modules keeps only
// the ones most recently touched by import() in memory.
package modcache

import (
	"container/list"
	"time"

	"github.com/torqlang/torqlang/core/klvm"
)

// PutOptions configures one Put call.
type PutOptions struct {
	TTL time.Duration
}

// PutOption mutates PutOptions.
type PutOption func(*PutOptions)

// WithTTL expires an entry TTL after it was last put, checked lazily
// on the next Get.
func WithTTL(ttl time.Duration) PutOption {
	return func(o *PutOptions) { o.TTL = ttl }
}

type entry struct {
	key      string
	val      *klvm.CompleteRec
	expireAt time.Time // zero means no expiry
}

type getReq struct {
	key  string
	resp chan getResp
}

type getResp struct {
	val *klvm.CompleteRec
	ok  bool
}

type putReq struct {
	key  string
	val  *klvm.CompleteRec
	opts []PutOption
}

type delReq struct {
	key string
}

// Cache is a bounded, LRU-evicting, concurrency-safe cache of module
// records keyed by import qualifier. It runs a single goroutine owning
// the underlying list+map, so callers need no external locking.
type Cache struct {
	getCh   chan getReq
	putCh   chan putReq
	delCh   chan delReq
	closeCh chan struct{}
}

// Opts configures a new Cache.
type Opts struct {
	// Size bounds the number of entries kept; the least recently used
	// entry is evicted once a Put would exceed it. Defaults to 128.
	Size int
}

// New creates a Cache and starts its background goroutine.
func New(opts Opts) *Cache {
	if opts.Size <= 0 {
		opts.Size = 128
	}
	c := &Cache{
		getCh:   make(chan getReq),
		putCh:   make(chan putReq),
		delCh:   make(chan delReq),
		closeCh: make(chan struct{}),
	}
	go c.run(opts.Size)
	return c
}

func (c *Cache) run(size int) {
	ll := list.New()
	byKey := make(map[string]*list.Element)

	for {
		select {
		case req := <-c.getCh:
			ele, ok := byKey[req.key]
			if !ok {
				req.resp <- getResp{ok: false}
				continue
			}
			e := ele.Value.(*entry)
			if !e.expireAt.IsZero() && time.Now().After(e.expireAt) {
				ll.Remove(ele)
				delete(byKey, req.key)
				req.resp <- getResp{ok: false}
				continue
			}
			ll.MoveToFront(ele)
			req.resp <- getResp{val: e.val, ok: true}
		case req := <-c.putCh:
			var popts PutOptions
			for _, opt := range req.opts {
				opt(&popts)
			}
			var expireAt time.Time
			if popts.TTL > 0 {
				expireAt = time.Now().Add(popts.TTL)
			}
			if ele, ok := byKey[req.key]; ok {
				ll.MoveToFront(ele)
				e := ele.Value.(*entry)
				e.val, e.expireAt = req.val, expireAt
			} else {
				ele := ll.PushFront(&entry{key: req.key, val: req.val, expireAt: expireAt})
				byKey[req.key] = ele
				if ll.Len() > size {
					if last := ll.Back(); last != nil {
						ll.Remove(last)
						delete(byKey, last.Value.(*entry).key)
					}
				}
			}
		case req := <-c.delCh:
			if ele, ok := byKey[req.key]; ok {
				ll.Remove(ele)
				delete(byKey, req.key)
			}
		case <-c.closeCh:
			return
		}
	}
}

// Get returns the record registered for key, or false if absent or
// expired.
func (c *Cache) Get(key string) (*klvm.CompleteRec, bool) {
	resp := make(chan getResp)
	c.getCh <- getReq{key: key, resp: resp}
	r := <-resp
	return r.val, r.ok
}

// Put registers val under key, evicting the least recently used entry
// if the cache is at capacity.
func (c *Cache) Put(key string, val *klvm.CompleteRec, opts ...PutOption) {
	c.putCh <- putReq{key: key, val: val, opts: opts}
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.delCh <- delReq{key: key}
}

// Close stops the cache's background goroutine.
func (c *Cache) Close() {
	close(c.closeCh)
}
