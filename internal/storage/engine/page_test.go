package engine

import "testing"

func TestHeaderPage_RoundTrip(t *testing.T) {
	buf := newPageBuf()
	p := wrapPage(buf)
	p.InitHeader()
	p.SetFreeHead(PageNum(2559))
	p.SetPageCount(2560)
	p.SetRoot(NonePage)

	if got := p.Magic(); got != MagicNumber {
		t.Fatalf("Magic() = %d, want %d", got, uint64(MagicNumber))
	}
	if got := p.FreeHead(); got != 2559 {
		t.Fatalf("FreeHead() = %d, want 2559", got)
	}
	if got := p.PageCount(); got != 2560 {
		t.Fatalf("PageCount() = %d, want 2560", got)
	}
	if got := p.Root(); got != NonePage {
		t.Fatalf("Root() = %d, want NonePage", got)
	}
}

func TestLeafPage_SlotAndRecordRoundTrip(t *testing.T) {
	buf := newPageBuf()
	p := wrapPage(buf)
	p.InitLeaf(PageNum(7))

	if !p.IsLeaf() {
		t.Fatal("expected IsLeaf() true after InitLeaf")
	}
	if p.FreeSpace() != DataSize {
		t.Fatalf("FreeSpace() = %d, want %d", p.FreeSpace(), DataSize)
	}

	entries := []leafEntry{
		{10, make([]byte, 50)},
		{20, make([]byte, 80)},
		{30, make([]byte, 112)},
	}
	for i := range entries {
		for j := range entries[i].val {
			entries[i].val[j] = byte(i + 1)
		}
	}
	writeLeafEntries(p, entries)

	if p.NumKeys() != 3 {
		t.Fatalf("NumKeys() = %d, want 3", p.NumKeys())
	}
	wantFree := DataSize - 3*SlotSize - 50 - 80 - 112
	if p.FreeSpace() != wantFree {
		t.Fatalf("FreeSpace() = %d, want %d", p.FreeSpace(), wantFree)
	}
	for i, e := range entries {
		if p.SlotKey(i) != e.key {
			t.Fatalf("slot %d key = %d, want %d", i, p.SlotKey(i), e.key)
		}
		rec := p.Record(i)
		if len(rec) != len(e.val) {
			t.Fatalf("slot %d record length = %d, want %d", i, len(rec), len(e.val))
		}
		for j := range rec {
			if rec[j] != e.val[j] {
				t.Fatalf("slot %d record byte %d mismatch", i, j)
			}
		}
	}
}

func TestInternalPage_PairRoundTrip(t *testing.T) {
	buf := newPageBuf()
	p := wrapPage(buf)
	p.InitInternal(NonePage)
	p.SetLeftmostChild(PageNum(1))

	pairs := []kp{{100, 2}, {200, 3}, {300, 4}}
	writeInternalPairs(p, PageNum(1), pairs)

	if p.NumKeys() != 3 {
		t.Fatalf("NumKeys() = %d, want 3", p.NumKeys())
	}
	if p.LeftmostChild() != 1 {
		t.Fatalf("LeftmostChild() = %d, want 1", p.LeftmostChild())
	}
	for i, e := range pairs {
		if p.PairKey(i) != e.key || p.PairChild(i) != e.child {
			t.Fatalf("pair %d = (%d,%d), want (%d,%d)", i, p.PairKey(i), p.PairChild(i), e.key, e.child)
		}
	}
}
