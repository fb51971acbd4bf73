package stream

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestInputBufferFillConsume(t *testing.T) {
	in := NewInputBuffer(strings.NewReader("hello world"), 4)

	var got []byte
	for {
		buf, err := in.FillBuf()
		if err != nil {
			t.Fatalf("FillBuf: %v", err)
		}
		if len(buf) == 0 {
			break
		}
		got = append(got, buf...)
		in.Consume(len(buf))
	}

	if string(got) != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}

func TestOutputBufferFlushesWhenFull(t *testing.T) {
	var dst bytes.Buffer
	out := NewOutputBuffer(&dst, 4)

	if err := out.WriteAll([]byte("hello world")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := out.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if dst.String() != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", dst.String())
	}
}

func TestLimitedReaderZeroBudgetIsImmediateEOF(t *testing.T) {
	in := NewInputBuffer(strings.NewReader("hello"), 16)
	lr := NewLimitedReader(in, 0)

	buf, err := lr.FillBuf()
	if err != nil || len(buf) != 0 {
		t.Fatalf("expected immediate EOF, got buf=%q err=%v", buf, err)
	}
}

func TestLimitedReaderCapsBytes(t *testing.T) {
	in := NewInputBuffer(strings.NewReader("hello world"), 16)
	lr := NewLimitedReader(in, 5)

	var got []byte
	for {
		buf, err := lr.FillBuf()
		if err != nil {
			t.Fatalf("FillBuf: %v", err)
		}
		if len(buf) == 0 {
			break
		}
		got = append(got, buf...)
		lr.Consume(len(buf))
	}

	if string(got) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestPipeCopiesUntilEOF(t *testing.T) {
	in := NewInputBuffer(strings.NewReader("the quick brown fox"), 5)
	var dst bytes.Buffer
	out := NewOutputBuffer(&dst, 7)

	n, err := Pipe(in, out)
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	if err := out.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if dst.String() != "the quick brown fox" {
		t.Fatalf("expected round-trip, got %q", dst.String())
	}
	if n != int64(len("the quick brown fox")) {
		t.Fatalf("expected n=%d, got %d", len("the quick brown fox"), n)
	}
}

func TestInputBufferReadImplementsIOReader(t *testing.T) {
	in := NewInputBuffer(strings.NewReader("abc"), 16)
	data, err := io.ReadAll(in)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("expected abc, got %q", data)
	}
}
