package engine

import "fmt"

// CheckConsistency walks a table's free list and tree structure and
// reports every structural invariant violation it finds, rather than
// panicking on the first one, going through the buffer pool's pin
// discipline instead of mapping the file directly.
func (t *BTree) CheckConsistency() ([]string, error) {
	var issues []string

	headerFrame, err := t.pool.GetBuffer(t.tableID, 0)
	if err != nil {
		return nil, err
	}
	hdr := headerFrame.Page()
	if hdr.Magic() != MagicNumber {
		issues = append(issues, "header: bad magic number")
	}
	pageCount := hdr.PageCount()
	root := hdr.Root()
	freeHead := hdr.FreeHead()
	t.pool.Unpin(headerFrame)

	free := make(map[PageNum]bool)
	for cur := freeHead; cur != NonePage; {
		if free[cur] {
			issues = append(issues, fmt.Sprintf("free list: cycle detected at page %d", cur))
			break
		}
		free[cur] = true
		f, err := t.pool.GetBuffer(t.tableID, cur)
		if err != nil {
			return issues, err
		}
		next := f.Page().NextFree()
		t.pool.Unpin(f)
		cur = next
	}

	reachable := make(map[PageNum]bool)
	if root != NonePage {
		if err := t.walkConsistency(root, NonePage, reachable, free, &issues); err != nil {
			return issues, err
		}
	}

	total := uint64(len(reachable)) + uint64(len(free)) + 1
	if total != pageCount {
		issues = append(issues, fmt.Sprintf(
			"page accounting mismatch: reachable=%d free=%d header=1 total=%d page_count=%d",
			len(reachable), len(free), total, pageCount))
	}

	return issues, nil
}

func (t *BTree) walkConsistency(pn, parent PageNum, reachable, free map[PageNum]bool, issues *[]string) error {
	if reachable[pn] {
		*issues = append(*issues, fmt.Sprintf("page %d reachable from more than one path", pn))
		return nil
	}
	reachable[pn] = true
	if free[pn] {
		*issues = append(*issues, fmt.Sprintf("page %d is both reachable and on the free list", pn))
	}

	f, err := t.pool.GetBuffer(t.tableID, pn)
	if err != nil {
		return err
	}
	p := f.Page()
	if p.Parent() != parent {
		*issues = append(*issues, fmt.Sprintf("page %d: parent pointer is %d, expected %d", pn, p.Parent(), parent))
	}

	if p.IsLeaf() {
		n := p.NumKeys()
		var prevKey int64
		fs := DataSize
		for i := 0; i < n; i++ {
			k := p.SlotKey(i)
			if i > 0 && k <= prevKey {
				*issues = append(*issues, fmt.Sprintf("leaf %d: keys not strictly ascending at slot %d", pn, i))
			}
			prevKey = k
			fs -= SlotSize + p.SlotValSize(i)
		}
		if fs != p.FreeSpace() {
			*issues = append(*issues, fmt.Sprintf("leaf %d: free_space is %d, computed %d", pn, p.FreeSpace(), fs))
		}
		t.pool.Unpin(f)
		return nil
	}

	n := p.NumKeys()
	leftmost := p.LeftmostChild()
	children := make([]PageNum, n)
	var prevKey int64
	for i := 0; i < n; i++ {
		k := p.PairKey(i)
		if i > 0 && k <= prevKey {
			*issues = append(*issues, fmt.Sprintf("internal %d: keys not strictly ascending at pair %d", pn, i))
		}
		prevKey = k
		children[i] = p.PairChild(i)
	}
	t.pool.Unpin(f)

	if err := t.walkConsistency(leftmost, pn, reachable, free, issues); err != nil {
		return err
	}
	for _, c := range children {
		if err := t.walkConsistency(c, pn, reachable, free, issues); err != nil {
			return err
		}
	}
	return nil
}
