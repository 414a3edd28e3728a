package engine

import (
	"path/filepath"
	"testing"
)

func TestOpenTableFile_CreatesInitializedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.db")

	fm := newFileManager()
	id, err := fm.OpenTableFile(path)
	if err != nil {
		t.Fatalf("OpenTableFile: %v", err)
	}

	hdrBuf := newPageBuf()
	if err := fm.ReadPage(id, 0, hdrBuf); err != nil {
		t.Fatalf("ReadPage header: %v", err)
	}
	hdr := wrapPage(hdrBuf)
	if hdr.Magic() != MagicNumber {
		t.Fatalf("Magic() = %d, want %d", hdr.Magic(), uint64(MagicNumber))
	}
	if hdr.PageCount() != InitialPageCount {
		t.Fatalf("PageCount() = %d, want %d", hdr.PageCount(), uint64(InitialPageCount))
	}
	if hdr.FreeHead() != PageNum(InitialPageCount-1) {
		t.Fatalf("FreeHead() = %d, want %d", hdr.FreeHead(), InitialPageCount-1)
	}

	// Walk the free chain; it must visit every page from
	// InitialPageCount-1 down to 1 and terminate at NonePage.
	count := 0
	buf := newPageBuf()
	for cur := hdr.FreeHead(); cur != NonePage; {
		if err := fm.ReadPage(id, cur, buf); err != nil {
			t.Fatalf("ReadPage(%d): %v", cur, err)
		}
		count++
		cur = wrapPage(buf).NextFree()
	}
	if count != InitialPageCount-1 {
		t.Fatalf("free chain length = %d, want %d", count, InitialPageCount-1)
	}
}

func TestOpenTableFile_SamePathReturnsSameID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.db")

	fm := newFileManager()
	id1, err := fm.OpenTableFile(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	id2, err := fm.OpenTableFile(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("OpenTableFile returned different ids for the same path: %d vs %d", id1, id2)
	}
}

func TestOpenTableFile_RejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.db")

	fm := newFileManager()
	id, err := fm.OpenTableFile(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	buf := newPageBuf()
	wrapPage(buf).SetMagic(1)
	if err := fm.WritePage(id, 0, buf); err != nil {
		t.Fatalf("corrupt header: %v", err)
	}
	if err := fm.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}

	fm2 := newFileManager()
	if _, err := fm2.OpenTableFile(path); !IsKind(err, KindFormatMismatch) {
		t.Fatalf("OpenTableFile on corrupted file: got %v, want KindFormatMismatch", err)
	}
}

func TestAllocAndFreePage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.db")

	fm := newFileManager()
	id, err := fm.OpenTableFile(path)
	if err != nil {
		t.Fatalf("OpenTableFile: %v", err)
	}

	n, err := fm.AllocPage(id)
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	if n != PageNum(InitialPageCount-1) {
		t.Fatalf("AllocPage() = %d, want %d", n, InitialPageCount-1)
	}
	if err := fm.FreePage(id, n); err != nil {
		t.Fatalf("FreePage: %v", err)
	}

	n2, err := fm.AllocPage(id)
	if err != nil {
		t.Fatalf("AllocPage after free: %v", err)
	}
	if n2 != n {
		t.Fatalf("AllocPage after FreePage = %d, want reused page %d", n2, n)
	}
}
