package offline

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Record layout in leveldb:
//
//	s:<set>              registry of named cache sets (value: creation unix nanos)
//	e:<set>\x00<key>     cache entries
//	q:<seq>              offline request queue (see queue.go)
const (
	setPrefix   = "s:"
	entryPrefix = "e:"
)

var errStorageClosed = errors.New("offline storage closed")

type storageOp struct {
	set  string
	key  string
	ent  *CacheEntry
	drop string
	ack  chan error
}

// Storage holds named cache sets on leveldb behind a bounded RAM LRU.
// Disk is unbounded; sets are removed only by Delete.
type Storage struct {
	db    *leveldb.DB
	codec *codec
	ram   *ramCache

	mu    sync.RWMutex
	sets  map[string]int64
	index map[string]int64 // entry record key -> stored bytes
	disk  int64

	// closeMu guards closed and sends on ops; the writer never takes it.
	closeMu sync.RWMutex
	closed  bool
	ops     chan storageOp
	done    chan struct{}
	dropLog *rateLimitedLogger
	errLog  *rateLimitedLogger
}

// OpenStorage opens (creating if needed) the leveldb database at dir.
func OpenStorage(dir string, ramMax int64) (*Storage, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", dir, err)
	}
	s, err := newStorage(db, ramMax)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemStorage keeps everything in memory. Used by tests and dry runs.
func OpenMemStorage(ramMax int64) (*Storage, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newStorage(db, ramMax)
}

func newStorage(db *leveldb.DB, ramMax int64) (*Storage, error) {
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	s := &Storage{
		db:      db,
		codec:   c,
		ram:     newRAMCache(ramMax),
		sets:    map[string]int64{},
		index:   map[string]int64{},
		ops:     make(chan storageOp, 1024),
		done:    make(chan struct{}),
		dropLog: newRateLimitedLogger(time.Minute),
		errLog:  newRateLimitedLogger(time.Minute),
	}
	if err := s.loadIndex(); err != nil {
		c.close()
		return nil, err
	}
	go s.writerLoop()
	return s, nil
}

func (s *Storage) loadIndex() error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(setPrefix)), nil)
	for it.Next() {
		name := string(bytes.TrimPrefix(it.Key(), []byte(setPrefix)))
		created, _ := strconv.ParseInt(string(it.Value()), 10, 64)
		s.sets[name] = created
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}

	it = s.db.NewIterator(util.BytesPrefix([]byte(entryPrefix)), nil)
	defer it.Release()
	for it.Next() {
		n := int64(len(it.Value()))
		s.index[string(it.Key())] = n
		s.disk += n
	}
	return it.Error()
}

func entryKey(set, key string) string { return entryPrefix + set + "\x00" + key }

func setEntries(set string) []byte { return []byte(entryPrefix + set + "\x00") }

// Close flushes pending writes and closes the database.
func (s *Storage) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ops)
	s.closeMu.Unlock()

	<-s.done
	s.codec.close()
	return s.db.Close()
}

func (s *Storage) send(op storageOp, block bool) bool {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return false
	}
	if block {
		s.ops <- op
		return true
	}
	select {
	case s.ops <- op:
		return true
	default:
		return false
	}
}

func (s *Storage) isClosed() bool {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	return s.closed
}

// DB exposes the underlying database to the request queue.
func (s *Storage) DB() *leveldb.DB { return s.db }

// Open registers the named set if it does not exist.
func (s *Storage) Open(name string) error {
	if s.isClosed() {
		return errStorageClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[name]; ok {
		return nil
	}
	created := time.Now().UnixNano()
	if err := s.db.Put([]byte(setPrefix+name), []byte(strconv.FormatInt(created, 10)), nil); err != nil {
		return err
	}
	s.sets[name] = created
	return nil
}

func (s *Storage) register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[name]; !ok {
		s.sets[name] = time.Now().UnixNano()
	}
}

// Has reports whether the named set exists.
func (s *Storage) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[name]
	return ok
}

// Keys lists set names in creation order.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sets))
	for k := range s.sets {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := s.sets[out[i]], s.sets[out[j]]
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// Delete removes a set and every entry in it. It reports whether the set existed.
func (s *Storage) Delete(name string) (bool, error) {
	s.mu.Lock()
	_, ok := s.sets[name]
	delete(s.sets, name)
	s.mu.Unlock()
	s.ram.DeletePrefix(name + "\x00")

	ack := make(chan error, 1)
	if !s.send(storageOp{drop: name, ack: ack}, true) {
		return ok, errStorageClosed
	}
	return ok, <-ack
}

// Match searches the preferred sets in order, then every other set oldest first.
func (s *Storage) Match(key string, preferred ...string) (CacheEntry, string, bool) {
	for _, name := range preferred {
		if ent, ok := s.MatchIn(name, key); ok {
			return ent, name, true
		}
	}
	for _, name := range s.Keys() {
		if slices.Contains(preferred, name) {
			continue
		}
		if ent, ok := s.MatchIn(name, key); ok {
			return ent, name, true
		}
	}
	return CacheEntry{}, "", false
}

// MatchIn looks key up in one set.
func (s *Storage) MatchIn(name, key string) (CacheEntry, bool) {
	if !s.Has(name) {
		return CacheEntry{}, false
	}
	rk := name + "\x00" + key
	if ent, ok := s.ram.Get(rk); ok {
		return ent, true
	}
	b, err := s.db.Get([]byte(entryKey(name, key)), nil)
	if err != nil {
		return CacheEntry{}, false
	}
	ent, err := s.codec.decode(b)
	if err != nil {
		s.errLog.Printf("offline: drop unreadable cache record set=%s key=%s: %v", name, key, err)
		return CacheEntry{}, false
	}
	s.ram.Put(rk, ent, s.dropLog)
	return ent, true
}

// Put stores ent without waiting for disk. A full write queue drops the write.
func (s *Storage) Put(name, key string, ent CacheEntry) {
	s.register(name)
	clone := ent
	if !s.send(storageOp{set: name, key: key, ent: &clone}, false) {
		s.dropLog.Printf("offline: dropping cache write set=%s key=%s", name, key)
		return
	}
	s.ram.Put(name+"\x00"+key, ent, s.dropLog)
}

// PutSync stores ent and waits for it to reach disk.
func (s *Storage) PutSync(name, key string, ent CacheEntry) error {
	s.register(name)
	clone := ent
	ack := make(chan error, 1)
	if !s.send(storageOp{set: name, key: key, ent: &clone, ack: ack}, true) {
		return errStorageClosed
	}
	if err := <-ack; err != nil {
		return err
	}
	s.ram.Put(name+"\x00"+key, ent, s.dropLog)
	return nil
}

// Flush waits until every write queued before it has been applied.
func (s *Storage) Flush() {
	ack := make(chan error, 1)
	if s.send(storageOp{ack: ack}, true) {
		<-ack
	}
}

// StorageStats is a point-in-time size report.
type StorageStats struct {
	Sets      int
	Entries   int
	DiskBytes int64
	RAMBytes  int64
}

func (s *Storage) Stats() StorageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StorageStats{
		Sets:      len(s.sets),
		Entries:   len(s.index),
		DiskBytes: s.disk,
		RAMBytes:  s.ram.TotalSize(),
	}
}

func (s *Storage) writerLoop() {
	defer close(s.done)
	for op := range s.ops {
		var err error
		switch {
		case op.drop != "":
			err = s.applyDrop(op.drop)
		case op.ent != nil:
			err = s.applyPut(op.set, op.key, *op.ent)
			if err != nil && op.ack == nil {
				s.errLog.Printf("offline: cache write failed set=%s key=%s: %v", op.set, op.key, err)
			}
		}
		if op.ack != nil {
			op.ack <- err
		}
	}
}

func (s *Storage) applyPut(set, key string, ent CacheEntry) error {
	b, err := s.codec.encode(ent)
	if err != nil {
		return err
	}
	s.mu.RLock()
	created, ok := s.sets[set]
	s.mu.RUnlock()
	if !ok {
		// Deleted while the write was queued.
		return nil
	}
	ek := entryKey(set, key)
	batch := new(leveldb.Batch)
	batch.Put([]byte(setPrefix+set), []byte(strconv.FormatInt(created, 10)))
	batch.Put([]byte(ek), b)
	if err := s.db.Write(batch, nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.disk -= s.index[ek]
	s.index[ek] = int64(len(b))
	s.disk += int64(len(b))
	s.mu.Unlock()
	return nil
}

func (s *Storage) applyDrop(set string) error {
	prefix := setEntries(set)
	batch := new(leveldb.Batch)
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	var keys []string
	for it.Next() {
		k := string(it.Key())
		keys = append(keys, k)
		batch.Delete([]byte(k))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}
	batch.Delete([]byte(setPrefix + set))
	if err := s.db.Write(batch, nil); err != nil {
		return err
	}

	s.mu.Lock()
	for _, k := range keys {
		s.disk -= s.index[k]
		delete(s.index, k)
	}
	s.mu.Unlock()
	return nil
}

// ---- ram cache ----

type ramItem struct {
	key  string
	ent  CacheEntry
	size int64
	prev *ramItem
	next *ramItem
}

type ramCache struct {
	maxBytes int64

	mu    sync.Mutex
	items map[string]*ramItem
	head  *ramItem
	tail  *ramItem
	total int64
}

func newRAMCache(maxBytes int64) *ramCache {
	return &ramCache{maxBytes: maxBytes, items: map[string]*ramItem{}}
}

func (c *ramCache) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *ramCache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return CacheEntry{}, false
	}
	c.moveToFront(it)
	return it.ent, true
}

func (c *ramCache) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, it := range c.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			c.remove(it)
			delete(c.items, k)
			c.total -= it.size
		}
	}
}

// Put keeps ent in memory, evicting least recently used items. Entries
// larger than the whole budget stay on disk only.
func (c *ramCache) Put(key string, ent CacheEntry, overflowLog *rateLimitedLogger) {
	sz := ent.size()
	if c.maxBytes > 0 && sz > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[key]; ok {
		c.total -= it.size
		it.ent = ent
		it.size = sz
		c.total += sz
		c.moveToFront(it)
	} else {
		it := &ramItem{key: key, ent: ent, size: sz}
		c.items[key] = it
		c.addToFront(it)
		c.total += sz
	}

	evicted := 0
	for c.maxBytes > 0 && c.total > c.maxBytes && c.tail != nil && c.tail != c.head {
		it := c.tail
		c.remove(it)
		delete(c.items, it.key)
		c.total -= it.size
		evicted++
	}
	if evicted > 0 && overflowLog != nil {
		overflowLog.Printf("offline: RAM cache full, evicted %d entries", evicted)
	}
}

func (c *ramCache) addToFront(it *ramItem) {
	it.prev = nil
	it.next = c.head
	if c.head != nil {
		c.head.prev = it
	}
	c.head = it
	if c.tail == nil {
		c.tail = it
	}
}

func (c *ramCache) remove(it *ramItem) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		c.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else {
		c.tail = it.prev
	}
	it.prev, it.next = nil, nil
}

func (c *ramCache) moveToFront(it *ramItem) {
	if c.head == it {
		return
	}
	c.remove(it)
	c.addToFront(it)
}
