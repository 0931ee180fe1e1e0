package store

import (
	"bytes"
	"fmt"
	"testing"
)

func TestSSTableRoundTripGet(t *testing.T) {
	b := NewBuilder()
	keys := [][]byte{[]byte("a/1"), []byte("a/2"), []byte("b/1"), []byte("c/1")}
	vals := [][]byte{[]byte("v1"), []byte("v2"), []byte("v3"), []byte("v4")}
	for i := range keys {
		if err := b.Add(keys[i], vals[i]); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	data, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r, err := OpenReader(data, 8)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	for i := range keys {
		v, ok, err := r.Get(keys[i])
		if err != nil || !ok {
			t.Fatalf("Get(%s): ok=%v err=%v", keys[i], ok, err)
		}
		if !bytes.Equal(v, vals[i]) {
			t.Fatalf("Get(%s): got %q want %q", keys[i], v, vals[i])
		}
	}
	if _, ok, _ := r.Get([]byte("missing")); ok {
		t.Fatalf("expected miss for absent key")
	}
}

func TestSSTableManyKeysAcrossBlocks(t *testing.T) {
	b := NewBuilder()
	const n = 500
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%05d", i))
		val := []byte(fmt.Sprintf("value-%05d-payload", i))
		if err := b.Add(key, val); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	data, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	r, err := OpenReader(data, 4)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	for _, i := range []int{0, 1, 250, 499} {
		key := []byte(fmt.Sprintf("key-%05d", i))
		want := []byte(fmt.Sprintf("value-%05d-payload", i))
		v, ok, err := r.Get(key)
		if err != nil || !ok || !bytes.Equal(v, want) {
			t.Fatalf("Get(%s): v=%q ok=%v err=%v", key, v, ok, err)
		}
	}
}

func TestSSTableScanRange(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		if err := b.Add(key, []byte(fmt.Sprintf("v%02d", i))); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	data, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	r, err := OpenReader(data, 4)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	it, err := r.NewScan([]byte("k05"), []byte("k10"))
	if err != nil {
		t.Fatalf("NewScan: %v", err)
	}
	var got []string
	for {
		k, _, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	want := []string{"k05", "k06", "k07", "k08", "k09"}
	if len(got) != len(want) {
		t.Fatalf("scan returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scan returned %v, want %v", got, want)
		}
	}
}

func TestSSTableTombstoneSkippedOnScan(t *testing.T) {
	b := NewBuilder()
	if err := b.Add([]byte("a"), []byte("live")); err != nil {
		t.Fatal(err)
	}
	if err := b.Add([]byte("b"), nil); err != nil {
		t.Fatal(err)
	}
	if err := b.Add([]byte("c"), []byte("live2")); err != nil {
		t.Fatal(err)
	}
	data, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	r, err := OpenReader(data, 4)
	if err != nil {
		t.Fatal(err)
	}
	it, err := r.NewScan(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for {
		k, _, ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		keys = append(keys, string(k))
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Fatalf("expected tombstone for 'b' to be skipped, got %v", keys)
	}
}

func TestSSTableLargeValueBlock(t *testing.T) {
	b := NewBuilder()
	big := bytes.Repeat([]byte{'x'}, largeValueThreshold+10)
	if err := b.Add([]byte("small"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := b.Add([]byte("zlarge"), big); err != nil {
		t.Fatal(err)
	}
	data, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	r, err := OpenReader(data, 4)
	if err != nil {
		t.Fatal(err)
	}
	v, ok, err := r.Get([]byte("zlarge"))
	if err != nil || !ok || !bytes.Equal(v, big) {
		t.Fatalf("large value round trip failed: ok=%v err=%v len=%d", ok, err, len(v))
	}
}
