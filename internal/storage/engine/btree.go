package engine

import "fmt"

// internalMinKeys is cut(InternalOrder)-1: the minimum key count an
// internal node (other than the root) must hold before it needs
// coalescing or redistribution.
const internalMinKeys = 124

// internalSplitAt is cut(InternalOrder)-1, the index at which a full
// internal node's 249-entry scratch array is split: [0,split) stays in
// the old node, temp[split] is promoted to the parent, [split+1,249)
// moves to the new node.
const internalSplitAt = 124

// BTree operates the B+Tree algorithms for one table, navigating and
// mutating pages exclusively through pinned buffer frames.
type BTree struct {
	pool    *BufferPool
	tableID TableID
}

type kp struct {
	key   int64
	child PageNum
}

type leafEntry struct {
	key int64
	val []byte
}

func readInternalPairs(p page) []kp {
	n := p.NumKeys()
	out := make([]kp, n)
	for i := 0; i < n; i++ {
		out[i] = kp{p.PairKey(i), p.PairChild(i)}
	}
	return out
}

func writeInternalPairs(p page, leftmost PageNum, pairs []kp) {
	p.SetLeftmostChild(leftmost)
	for i, e := range pairs {
		p.SetPairKey(i, e.key)
		p.SetPairChild(i, e.child)
	}
	p.SetNumKeys(len(pairs))
}

func readLeafEntries(p page) []leafEntry {
	n := p.NumKeys()
	out := make([]leafEntry, n)
	for i := 0; i < n; i++ {
		rec := p.Record(i)
		cp := make([]byte, len(rec))
		copy(cp, rec)
		out[i] = leafEntry{p.SlotKey(i), cp}
	}
	return out
}

// writeLeafEntries lays out entries into slots [0,len) growing from
// HeaderSize and records packed sequentially down from the page end.
// Records are not physically interleaved with their slots here; nothing
// requires that ordering, only that each slot's offset point at its
// record.
func writeLeafEntries(p page, entries []leafEntry) {
	offset := PageSize
	fs := DataSize
	for i, e := range entries {
		offset -= len(e.val)
		p.SetSlotKey(i, e.key)
		p.SetSlotValSize(i, len(e.val))
		p.SetSlotOffset(i, offset)
		copy(p.buf[offset:offset+len(e.val)], e.val)
		fs -= SlotSize + len(e.val)
	}
	p.SetNumKeys(len(entries))
	p.SetFreeSpace(fs)
}

// leafFindSlot returns the first slot index whose key is >= target, and
// whether that slot's key equals target exactly.
func leafFindSlot(p page, target int64) (idx int, found bool) {
	n := p.NumKeys()
	for i := 0; i < n; i++ {
		k := p.SlotKey(i)
		if k == target {
			return i, true
		}
		if k > target {
			return i, false
		}
	}
	return n, false
}

// findLeaf descends from the root to the leaf that would contain key,
// unpinning each internal page before pinning its child. It returns
// nil, nil if the tree is empty.
func (t *BTree) findLeaf(key int64) (*bufFrame, error) {
	header, err := t.pool.GetBuffer(t.tableID, 0)
	if err != nil {
		return nil, err
	}
	root := header.Page().Root()
	t.pool.Unpin(header)
	if root == NonePage {
		return nil, nil
	}

	cur, err := t.pool.GetBuffer(t.tableID, root)
	if err != nil {
		return nil, err
	}
	for !cur.Page().IsLeaf() {
		p := cur.Page()
		n := p.NumKeys()
		idx := -1
		for idx < n-1 && p.PairKey(idx+1) <= key {
			idx++
		}
		var child PageNum
		if idx >= 0 {
			child = p.PairChild(idx)
		} else {
			child = p.LeftmostChild()
		}
		next, err := t.pool.GetBuffer(t.tableID, child)
		t.pool.Unpin(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Find looks up key, returning a copy of its value.
func (t *BTree) Find(key int64) ([]byte, error) {
	leafFrame, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	if leafFrame == nil {
		return nil, newErr("Find", KindNotFound, fmt.Errorf("table is empty"))
	}
	defer t.pool.Unpin(leafFrame)

	leaf := leafFrame.Page()
	idx, found := leafFindSlot(leaf, key)
	if !found {
		return nil, newErr("Find", KindNotFound, nil)
	}
	rec := leaf.Record(idx)
	out := make([]byte, len(rec))
	copy(out, rec)
	return out, nil
}

// Insert adds key/value to the tree.
func (t *BTree) Insert(key int64, value []byte) error {
	if len(value) < MinValueSize || len(value) > MaxValueSize {
		return newErr("Insert", KindInvalidArgument,
			fmt.Errorf("value size %d out of range [%d,%d]", len(value), MinValueSize, MaxValueSize))
	}

	leafFrame, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	if leafFrame == nil {
		return t.startNewTree(key, value)
	}

	leaf := leafFrame.Page()
	if _, found := leafFindSlot(leaf, key); found {
		t.pool.Unpin(leafFrame)
		return newErr("Insert", KindDuplicateKey, nil)
	}

	need := SlotSize + len(value)
	if leaf.FreeSpace() >= need {
		t.insertIntoLeaf(leafFrame, key, value)
		t.pool.MarkDirty(leafFrame)
		t.pool.Unpin(leafFrame)
		return nil
	}
	return t.splitLeafAndInsert(leafFrame, key, value)
}

func (t *BTree) startNewTree(key int64, value []byte) error {
	rootFrame, err := t.pool.GetBufferOfNewPage(t.tableID)
	if err != nil {
		return err
	}
	root := rootFrame.Page()
	root.InitLeaf(NonePage)
	writeLeafEntries(root, []leafEntry{{key, append([]byte(nil), value...)}})
	t.pool.MarkDirty(rootFrame)

	headerFrame, err := t.pool.GetBuffer(t.tableID, 0)
	if err != nil {
		t.pool.Unpin(rootFrame)
		return err
	}
	headerFrame.Page().SetRoot(rootFrame.pageNum)
	t.pool.MarkDirty(headerFrame)
	t.pool.Unpin(headerFrame)
	t.pool.Unpin(rootFrame)
	return nil
}

// insertIntoLeaf inserts in place: later records shift toward lower
// offsets by len(value), slots shift up by one.
func (t *BTree) insertIntoLeaf(leafFrame *bufFrame, key int64, value []byte) {
	p := leafFrame.Page()
	n := p.NumKeys()
	valSize := len(value)

	i := 0
	for i < n && p.SlotKey(i) < key {
		i++
	}

	for j := n; j > i; j-- {
		srcOff := p.SlotOffset(j - 1)
		srcSize := p.SlotValSize(j - 1)
		srcKey := p.SlotKey(j - 1)
		newOff := srcOff - valSize
		p.SetSlotKey(j, srcKey)
		p.SetSlotValSize(j, srcSize)
		p.SetSlotOffset(j, newOff)
		copy(p.buf[newOff:newOff+srcSize], p.buf[srcOff:srcOff+srcSize])
	}

	var newOff int
	if i > 0 {
		newOff = p.SlotOffset(i-1) - valSize
	} else {
		newOff = PageSize - valSize
	}
	p.SetSlotKey(i, key)
	p.SetSlotValSize(i, valSize)
	p.SetSlotOffset(i, newOff)
	copy(p.buf[newOff:newOff+valSize], value)

	p.SetNumKeys(n + 1)
	p.SetFreeSpace(p.FreeSpace() - (SlotSize + valSize))
}

// splitLeafAndInsert splits a full leaf, inserting key/value in its
// sorted position among the combined record set first, then finding the
// smallest prefix whose cumulative (slot+record) size exceeds
// DataSize/2.
func (t *BTree) splitLeafAndInsert(leafFrame *bufFrame, key int64, value []byte) error {
	leaf := leafFrame.Page()
	origParent := leaf.Parent()
	origRightSibling := leaf.RightSibling()

	entries := readLeafEntries(leaf)
	insertPos := len(entries)
	for i, e := range entries {
		if e.key > key {
			insertPos = i
			break
		}
	}
	entries = append(entries, leafEntry{})
	copy(entries[insertPos+1:], entries[insertPos:len(entries)-1])
	entries[insertPos] = leafEntry{key, append([]byte(nil), value...)}

	split := 1
	cum := 0
	for i, e := range entries {
		cum += SlotSize + len(e.val)
		if cum > DataSize/2 {
			split = i + 1
			break
		}
		split = i + 1
	}
	if split >= len(entries) {
		split = len(entries) - 1
	}
	if split < 1 {
		split = 1
	}

	left := entries[:split]
	right := entries[split:]

	newLeafFrame, err := t.pool.GetBufferOfNewPage(t.tableID)
	if err != nil {
		t.pool.Unpin(leafFrame)
		return err
	}
	newLeaf := newLeafFrame.Page()
	newLeaf.InitLeaf(origParent)
	writeLeafEntries(newLeaf, right)
	newLeaf.SetRightSibling(origRightSibling)

	leaf.InitLeaf(origParent)
	writeLeafEntries(leaf, left)
	leaf.SetRightSibling(newLeafFrame.pageNum)

	t.pool.MarkDirty(leafFrame)
	t.pool.MarkDirty(newLeafFrame)

	return t.insertIntoParent(leafFrame, right[0].key, newLeafFrame)
}

// insertIntoParent propagates a split's separator key upward.
func (t *BTree) insertIntoParent(leftFrame *bufFrame, key int64, rightFrame *bufFrame) error {
	parentNum := leftFrame.Page().Parent()
	if parentNum == NonePage {
		return t.createNewRoot(leftFrame, key, rightFrame)
	}

	rightNum := rightFrame.pageNum
	t.pool.Unpin(leftFrame)
	t.pool.Unpin(rightFrame)

	parentFrame, err := t.pool.GetBuffer(t.tableID, parentNum)
	if err != nil {
		return err
	}
	parent := parentFrame.Page()

	rightIndex := 0
	for rightIndex < parent.NumKeys() && parent.PairKey(rightIndex) < key {
		rightIndex++
	}

	if parent.NumKeys() < MaxInternal {
		t.insertIntoInternal(parentFrame, rightIndex, key, rightNum)
		return nil
	}
	return t.splitInternalAndInsert(parentFrame, rightIndex, key, rightNum)
}

func (t *BTree) insertIntoInternal(frame *bufFrame, idx int, key int64, child PageNum) {
	p := frame.Page()
	n := p.NumKeys()
	for i := n; i > idx; i-- {
		p.SetPairKey(i, p.PairKey(i-1))
		p.SetPairChild(i, p.PairChild(i-1))
	}
	p.SetPairKey(idx, key)
	p.SetPairChild(idx, child)
	p.SetNumKeys(n + 1)
	t.pool.MarkDirty(frame)
	t.pool.Unpin(frame)
}

func (t *BTree) setChildParent(child PageNum, parent PageNum) error {
	f, err := t.pool.GetBuffer(t.tableID, child)
	if err != nil {
		return err
	}
	f.Page().SetParent(parent)
	t.pool.MarkDirty(f)
	t.pool.Unpin(f)
	return nil
}

func (t *BTree) splitInternalAndInsert(frame *bufFrame, idx int, key int64, child PageNum) error {
	p := frame.Page()
	origParent := p.Parent()
	origLeftmost := p.LeftmostChild()

	pairs := readInternalPairs(p)
	combined := make([]kp, 0, len(pairs)+1)
	combined = append(combined, pairs[:idx]...)
	combined = append(combined, kp{key, child})
	combined = append(combined, pairs[idx:]...)

	left := combined[:internalSplitAt]
	kPrime := combined[internalSplitAt].key
	newLeftmost := combined[internalSplitAt].child
	right := combined[internalSplitAt+1:]

	writeInternalPairs(p, origLeftmost, left)

	newFrame, err := t.pool.GetBufferOfNewPage(t.tableID)
	if err != nil {
		t.pool.Unpin(frame)
		return err
	}
	newPage := newFrame.Page()
	newPage.InitInternal(origParent)
	writeInternalPairs(newPage, newLeftmost, right)

	if err := t.setChildParent(newLeftmost, newFrame.pageNum); err != nil {
		t.pool.Unpin(frame)
		t.pool.Unpin(newFrame)
		return err
	}
	for _, e := range right {
		if err := t.setChildParent(e.child, newFrame.pageNum); err != nil {
			t.pool.Unpin(frame)
			t.pool.Unpin(newFrame)
			return err
		}
	}

	t.pool.MarkDirty(frame)
	t.pool.MarkDirty(newFrame)

	return t.insertIntoParent(frame, kPrime, newFrame)
}

func (t *BTree) createNewRoot(leftFrame *bufFrame, key int64, rightFrame *bufFrame) error {
	rootFrame, err := t.pool.GetBufferOfNewPage(t.tableID)
	if err != nil {
		return err
	}
	root := rootFrame.Page()
	root.InitInternal(NonePage)
	root.SetLeftmostChild(leftFrame.pageNum)
	root.SetPairKey(0, key)
	root.SetPairChild(0, rightFrame.pageNum)
	root.SetNumKeys(1)

	leftFrame.Page().SetParent(rootFrame.pageNum)
	rightFrame.Page().SetParent(rootFrame.pageNum)

	headerFrame, err := t.pool.GetBuffer(t.tableID, 0)
	if err != nil {
		return err
	}
	headerFrame.Page().SetRoot(rootFrame.pageNum)

	t.pool.MarkDirty(leftFrame)
	t.pool.MarkDirty(rightFrame)
	t.pool.MarkDirty(rootFrame)
	t.pool.MarkDirty(headerFrame)
	t.pool.Unpin(leftFrame)
	t.pool.Unpin(rightFrame)
	t.pool.Unpin(rootFrame)
	t.pool.Unpin(headerFrame)
	return nil
}

// Delete removes key from the tree.
func (t *BTree) Delete(key int64) error {
	leafFrame, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	if leafFrame == nil {
		return newErr("Delete", KindNotFound, nil)
	}
	if _, found := leafFindSlot(leafFrame.Page(), key); !found {
		t.pool.Unpin(leafFrame)
		return newErr("Delete", KindNotFound, nil)
	}
	return t.deleteEntry(leafFrame, key)
}

func (t *BTree) removeEntryFromPage(frame *bufFrame, key int64) {
	p := frame.Page()
	if !p.IsLeaf() {
		pairs := readInternalPairs(p)
		out := pairs[:0]
		for _, e := range pairs {
			if e.key != key {
				out = append(out, e)
			}
		}
		writeInternalPairs(p, p.LeftmostChild(), out)
	} else {
		entries := readLeafEntries(p)
		out := entries[:0]
		for _, e := range entries {
			if e.key != key {
				out = append(out, e)
			}
		}
		writeLeafEntries(p, out)
	}
	t.pool.MarkDirty(frame)
}

// neighborIndex returns the index of the parent pair whose child is
// childNum; the neighbor to borrow from or coalesce with is then the
// child to its left (pair index-1's child, or the leftmost child for
// index 0). -1 means childNum is the leftmost child, so its neighbor is
// found to its right instead. Failing to find childNum
// among the parent's children at all is a fatal structural invariant
// violation.
func (t *BTree) neighborIndex(parent page, childNum PageNum) int {
	if parent.LeftmostChild() == childNum {
		return -1
	}
	for i := 0; i < parent.NumKeys(); i++ {
		if parent.PairChild(i) == childNum {
			return i
		}
	}
	panic(fmt.Sprintf("engine: structural invariant violated: page %d not found among its parent's children", childNum))
}

func (t *BTree) deleteEntry(frame *bufFrame, key int64) error {
	t.removeEntryFromPage(frame, key)

	headerFrame, err := t.pool.GetBuffer(t.tableID, 0)
	if err != nil {
		t.pool.Unpin(frame)
		return err
	}
	rootNum := headerFrame.Page().Root()
	t.pool.Unpin(headerFrame)

	if frame.pageNum == rootNum {
		return t.adjustRoot(frame)
	}

	p := frame.Page()
	if !p.IsLeaf() {
		if p.NumKeys() >= internalMinKeys {
			t.pool.MarkDirty(frame)
			t.pool.Unpin(frame)
			return nil
		}
	} else {
		if p.FreeSpace() < Threshold {
			t.pool.MarkDirty(frame)
			t.pool.Unpin(frame)
			return nil
		}
	}

	parentNum := p.Parent()
	parentFrame, err := t.pool.GetBuffer(t.tableID, parentNum)
	if err != nil {
		t.pool.Unpin(frame)
		return err
	}
	parent := parentFrame.Page()

	neighborIdx := t.neighborIndex(parent, frame.pageNum)
	kPrimeIndex := neighborIdx
	if neighborIdx == -1 {
		kPrimeIndex = 0
	}

	var kPrime int64
	var neighborNum PageNum
	if neighborIdx > 0 {
		kPrime = parent.PairKey(neighborIdx)
		neighborNum = parent.PairChild(neighborIdx - 1)
	} else {
		kPrime = parent.PairKey(0)
		if neighborIdx == -1 {
			neighborNum = parent.PairChild(0)
		} else {
			neighborNum = parent.LeftmostChild()
		}
	}

	neighborFrame, err := t.pool.GetBuffer(t.tableID, neighborNum)
	if err != nil {
		t.pool.Unpin(frame)
		t.pool.Unpin(parentFrame)
		return err
	}
	neighbor := neighborFrame.Page()

	var coalesce bool
	if !p.IsLeaf() {
		coalesce = neighbor.NumKeys()+p.NumKeys() < MaxInternal
	} else {
		coalesce = neighbor.FreeSpace()+p.FreeSpace() >= DataSize
	}

	if coalesce {
		return t.coalesceNodes(frame, neighborFrame, parentFrame, neighborIdx, kPrime)
	}
	return t.redistributeNodes(frame, neighborFrame, parentFrame, neighborIdx, kPrimeIndex, kPrime)
}

func (t *BTree) adjustRoot(rootFrame *bufFrame) error {
	root := rootFrame.Page()
	if root.NumKeys() > 0 {
		t.pool.MarkDirty(rootFrame)
		t.pool.Unpin(rootFrame)
		return nil
	}

	headerFrame, err := t.pool.GetBuffer(t.tableID, 0)
	if err != nil {
		t.pool.Unpin(rootFrame)
		return err
	}

	isLeaf := root.IsLeaf()
	var newRoot PageNum
	if !isLeaf {
		newRoot = root.LeftmostChild()
	} else {
		newRoot = NonePage
	}

	if err := t.pool.FreePage(t.tableID, rootFrame); err != nil {
		t.pool.Unpin(headerFrame)
		t.pool.Unpin(rootFrame)
		return err
	}
	t.pool.Unpin(rootFrame)

	headerFrame.Page().SetRoot(newRoot)
	if !isLeaf {
		childFrame, err := t.pool.GetBuffer(t.tableID, newRoot)
		if err != nil {
			t.pool.Unpin(headerFrame)
			return err
		}
		childFrame.Page().SetParent(NonePage)
		t.pool.MarkDirty(childFrame)
		t.pool.Unpin(childFrame)
	}
	t.pool.MarkDirty(headerFrame)
	t.pool.Unpin(headerFrame)
	return nil
}

// coalesceNodes merges the right node of the pair into the left one and
// frees the right node (frame into its left neighbor, or, when frame is
// the leftmost child, its right neighbor into frame), then recurses the
// deletion of k_prime from the parent.
func (t *BTree) coalesceNodes(frame, neighborFrame, parentFrame *bufFrame, neighborIndex int, kPrime int64) error {
	if neighborIndex == -1 {
		frame, neighborFrame = neighborFrame, frame
	}
	p := frame.Page()
	neighbor := neighborFrame.Page()

	if !p.IsLeaf() {
		ownPairs := readInternalPairs(p)
		ownLeftmost := p.LeftmostChild()
		neighborPairs := readInternalPairs(neighbor)

		combined := make([]kp, 0, len(neighborPairs)+1+len(ownPairs))
		combined = append(combined, neighborPairs...)
		combined = append(combined, kp{kPrime, ownLeftmost})
		combined = append(combined, ownPairs...)
		writeInternalPairs(neighbor, neighbor.LeftmostChild(), combined)

		if err := t.setChildParent(ownLeftmost, neighborFrame.pageNum); err != nil {
			return err
		}
		for _, e := range ownPairs {
			if err := t.setChildParent(e.child, neighborFrame.pageNum); err != nil {
				return err
			}
		}
	} else {
		neighborEntries := readLeafEntries(neighbor)
		ownEntries := readLeafEntries(p)
		rightSib := p.RightSibling()

		combined := make([]leafEntry, 0, len(neighborEntries)+len(ownEntries))
		combined = append(combined, neighborEntries...)
		combined = append(combined, ownEntries...)
		writeLeafEntries(neighbor, combined)
		neighbor.SetRightSibling(rightSib)
	}

	if err := t.pool.FreePage(t.tableID, frame); err != nil {
		t.pool.Unpin(frame)
		t.pool.Unpin(neighborFrame)
		return err
	}
	t.pool.MarkDirty(neighborFrame)
	t.pool.Unpin(frame)
	t.pool.Unpin(neighborFrame)

	return t.deleteEntry(parentFrame, kPrime)
}

func (t *BTree) redistributeNodes(frame, neighborFrame, parentFrame *bufFrame, neighborIndex, kPrimeIndex int, kPrime int64) error {
	if frame.Page().IsLeaf() {
		return t.redistributeLeaf(frame, neighborFrame, parentFrame, neighborIndex, kPrimeIndex)
	}
	return t.redistributeInternal(frame, neighborFrame, parentFrame, neighborIndex, kPrimeIndex, kPrime)
}

func (t *BTree) redistributeInternal(frame, neighborFrame, parentFrame *bufFrame, neighborIndex, kPrimeIndex int, kPrime int64) error {
	p := frame.Page()
	neighbor := neighborFrame.Page()
	parent := parentFrame.Page()

	if neighborIndex != -1 {
		nn := neighbor.NumKeys()
		lastKey := neighbor.PairKey(nn - 1)
		lastChild := neighbor.PairChild(nn - 1)

		n := p.NumKeys()
		for i := n; i > 0; i-- {
			p.SetPairKey(i, p.PairKey(i-1))
			p.SetPairChild(i, p.PairChild(i-1))
		}
		parent.SetPairKey(kPrimeIndex, lastKey)
		p.SetPairKey(0, kPrime)
		p.SetPairChild(0, p.LeftmostChild())
		p.SetLeftmostChild(lastChild)
		p.SetNumKeys(n + 1)
		neighbor.SetNumKeys(nn - 1)

		if err := t.setChildParent(lastChild, frame.pageNum); err != nil {
			return err
		}
	} else {
		n := p.NumKeys()
		firstKey := neighbor.PairKey(0)
		firstLeftmost := neighbor.LeftmostChild()

		parent.SetPairKey(kPrimeIndex, firstKey)
		p.SetPairKey(n, kPrime)
		p.SetPairChild(n, firstLeftmost)
		neighbor.SetLeftmostChild(neighbor.PairChild(0))

		nn := neighbor.NumKeys()
		for i := 0; i < nn-1; i++ {
			neighbor.SetPairKey(i, neighbor.PairKey(i+1))
			neighbor.SetPairChild(i, neighbor.PairChild(i+1))
		}
		neighbor.SetNumKeys(nn - 1)
		p.SetNumKeys(n + 1)

		if err := t.setChildParent(firstLeftmost, frame.pageNum); err != nil {
			return err
		}
	}

	t.pool.MarkDirty(parentFrame)
	t.pool.MarkDirty(frame)
	t.pool.MarkDirty(neighborFrame)
	t.pool.Unpin(parentFrame)
	t.pool.Unpin(frame)
	t.pool.Unpin(neighborFrame)
	return nil
}

func (t *BTree) redistributeLeaf(frame, neighborFrame, parentFrame *bufFrame, neighborIndex, kPrimeIndex int) error {
	p := frame.Page()
	neighbor := neighborFrame.Page()
	parent := parentFrame.Page()

	pEntries := readLeafEntries(p)
	nEntries := readLeafEntries(neighbor)

	if neighborIndex != -1 {
		freeSpace := p.FreeSpace()
		count := 0
		for i := len(nEntries) - 1; i >= 0; i-- {
			freeSpace -= SlotSize + len(nEntries[i].val)
			count++
			if freeSpace < Threshold {
				break
			}
		}
		moved := append([]leafEntry(nil), nEntries[len(nEntries)-count:]...)
		nEntries = nEntries[:len(nEntries)-count]
		pEntries = append(moved, pEntries...)

		writeLeafEntries(neighbor, nEntries)
		writeLeafEntries(p, pEntries)
		parent.SetPairKey(kPrimeIndex, pEntries[0].key)
	} else {
		freeSpace := p.FreeSpace()
		count := 0
		for i := 0; i < len(nEntries); i++ {
			freeSpace -= SlotSize + len(nEntries[i].val)
			count++
			if freeSpace < Threshold {
				break
			}
		}
		moved := append([]leafEntry(nil), nEntries[:count]...)
		nEntries = nEntries[count:]
		pEntries = append(pEntries, moved...)

		writeLeafEntries(p, pEntries)
		writeLeafEntries(neighbor, nEntries)
		parent.SetPairKey(kPrimeIndex, nEntries[0].key)
	}

	t.pool.MarkDirty(parentFrame)
	t.pool.MarkDirty(frame)
	t.pool.MarkDirty(neighborFrame)
	t.pool.Unpin(parentFrame)
	t.pool.Unpin(frame)
	t.pool.Unpin(neighborFrame)
	return nil
}

// Scan visits every record with begin <= key <= end in ascending key
// order, stopping early if fn returns false.
func (t *BTree) Scan(begin, end int64, fn func(key int64, value []byte) bool) error {
	if begin > end {
		return newErr("Scan", KindNotFound, fmt.Errorf("begin %d > end %d", begin, end))
	}

	leafFrame, err := t.findLeaf(begin)
	if err != nil {
		return err
	}
	if leafFrame == nil {
		return newErr("Scan", KindNotFound, fmt.Errorf("table is empty"))
	}

	leaf := leafFrame.Page()
	idx, _ := leafFindSlot(leaf, begin)

	any := false
	for {
		n := leaf.NumKeys()
		for idx < n {
			k := leaf.SlotKey(idx)
			if k > end {
				t.pool.Unpin(leafFrame)
				if !any {
					return newErr("Scan", KindNotFound, nil)
				}
				return nil
			}
			rec := leaf.Record(idx)
			val := make([]byte, len(rec))
			copy(val, rec)
			any = true
			if !fn(k, val) {
				t.pool.Unpin(leafFrame)
				return nil
			}
			idx++
		}
		sib := leaf.RightSibling()
		t.pool.Unpin(leafFrame)
		if sib == NonePage {
			break
		}
		leafFrame, err = t.pool.GetBuffer(t.tableID, sib)
		if err != nil {
			return err
		}
		leaf = leafFrame.Page()
		idx = 0
	}

	if !any {
		return newErr("Scan", KindNotFound, nil)
	}
	return nil
}
