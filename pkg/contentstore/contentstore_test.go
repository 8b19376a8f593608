package contentstore

import (
	"bytes"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	blob := []byte(`{"name":"one","description":"first","image":"cas://img"}`)

	cid, err := s.Add(blob)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if cid != CID(blob) {
		t.Fatalf("cid mismatch: %s vs %s", cid, CID(blob))
	}

	got, err := s.Get(cid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("blob mismatch")
	}

	// Content addressing: same blob, same id.
	cid2, err := s.Add(blob)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if cid2 != cid {
		t.Fatalf("re-add cid got=%s want=%s", cid2, cid)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(CID([]byte("never stored"))); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err got=%v want ErrNotFound", err)
	}
	ok, err := s.Has(CID([]byte("never stored")))
	if err != nil || ok {
		t.Fatalf("has got=%v err=%v want false", ok, err)
	}
}

func TestURIRoundTrip(t *testing.T) {
	cid := CID([]byte("x"))
	uri := URI(cid)
	got, ok := ParseURI(uri)
	if !ok || got != cid {
		t.Fatalf("parse %q got=%q ok=%v", uri, got, ok)
	}
	if _, ok := ParseURI("https://example.com/x"); ok {
		t.Fatalf("foreign uri should not parse")
	}
	if _, ok := ParseURI(URIScheme); ok {
		t.Fatalf("empty cid should not parse")
	}
}
