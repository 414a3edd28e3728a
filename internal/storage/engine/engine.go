package engine

import (
	"fmt"
	"log"
	"sync"
)

// Engine is the top-level handle: one shared buffer pool serving up to
// MaxTables open tables, each addressed by the TableID OpenTable
// returns.
type Engine struct {
	mu     sync.Mutex
	fm     *fileManager
	pool   *BufferPool
	trees  map[TableID]*BTree
	logger *log.Logger
}

// InitDB builds an engine with the given hashtable and buffer-pool
// sizing. Logging goes to log.Default().
func InitDB(numHTEntries, numBuf int) (*Engine, error) {
	return InitDBWithLogger(numHTEntries, numBuf, nil)
}

// InitDBWithLogger is InitDB with an explicit logger, for callers that
// want the engine's file-growth messages routed elsewhere.
func InitDBWithLogger(numHTEntries, numBuf int, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	fm := newFileManager()
	pool, err := InitBufferPool(fm, numHTEntries, numBuf, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		fm:     fm,
		pool:   pool,
		trees:  make(map[TableID]*BTree),
		logger: logger,
	}, nil
}

// OpenTable opens or creates the table file at path and returns its id.
func (e *Engine) OpenTable(path string) (TableID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.fm.OpenTableFile(path)
	if err != nil {
		return 0, err
	}
	if _, ok := e.trees[id]; !ok {
		e.trees[id] = &BTree{pool: e.pool, tableID: id}
	}
	return id, nil
}

func (e *Engine) tree(id TableID) (*BTree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.trees[id]
	if !ok {
		return nil, newErr("Engine", KindInvalidArgument, fmt.Errorf("table %d is not open", id))
	}
	return t, nil
}

// Insert adds key/value to an open table.
func (e *Engine) Insert(id TableID, key int64, value []byte) error {
	t, err := e.tree(id)
	if err != nil {
		return err
	}
	return t.Insert(key, value)
}

// Find returns a copy of key's value.
func (e *Engine) Find(id TableID, key int64) ([]byte, error) {
	t, err := e.tree(id)
	if err != nil {
		return nil, err
	}
	return t.Find(key)
}

// Delete removes key from an open table.
func (e *Engine) Delete(id TableID, key int64) error {
	t, err := e.tree(id)
	if err != nil {
		return err
	}
	return t.Delete(key)
}

// Scan visits every record with begin <= key <= end in ascending order,
// until fn returns false.
func (e *Engine) Scan(id TableID, begin, end int64, fn func(key int64, value []byte) bool) error {
	t, err := e.tree(id)
	if err != nil {
		return err
	}
	return t.Scan(begin, end, fn)
}

// CheckConsistency runs the structural invariant walk over an open
// table's tree.
func (e *Engine) CheckConsistency(id TableID) ([]string, error) {
	t, err := e.tree(id)
	if err != nil {
		return nil, err
	}
	return t.CheckConsistency()
}

// Stats returns a snapshot of the shared buffer pool's counters.
func (e *Engine) Stats() Stats {
	return e.pool.Stats()
}

// Shutdown flushes every dirty frame and closes every open table file.
func (e *Engine) Shutdown() error {
	return e.pool.Close()
}
