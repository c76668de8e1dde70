package ann

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeFvecs(t *testing.T, path string, rows [][]float32) {
	t.Helper()
	var buf bytes.Buffer
	for _, row := range rows {
		if err := binary.Write(&buf, binary.LittleEndian, int32(len(row))); err != nil {
			t.Fatalf("writing dim: %v", err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, row); err != nil {
			t.Fatalf("writing row: %v", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func writeIvecs(t *testing.T, path string, rows [][]int32) {
	t.Helper()
	var buf bytes.Buffer
	for _, row := range rows {
		if err := binary.Write(&buf, binary.LittleEndian, int32(len(row))); err != nil {
			t.Fatalf("writing dim: %v", err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, row); err != nil {
			t.Fatalf("writing row: %v", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestReadFvecsRoundTrip(t *testing.T) {
	want := [][]float32{
		{1, 2, 3, 4},
		{-1, -2, -3, -4},
		{0, 0, 0, 0},
	}
	path := filepath.Join(t.TempDir(), "base.fvecs")
	writeFvecs(t, path, want)

	got, err := ReadFvecs(path)
	if err != nil {
		t.Fatalf("ReadFvecs: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ReadFvecs returned %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %v, want %v", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestReadFvecsRejectsDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fvecs")
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(4))
	binary.Write(&buf, binary.LittleEndian, []float32{1, 2, 3, 4})
	binary.Write(&buf, binary.LittleEndian, int32(3))
	binary.Write(&buf, binary.LittleEndian, []float32{1, 2, 3})
	os.WriteFile(path, buf.Bytes(), 0o600)

	if _, err := ReadFvecs(path); err == nil {
		t.Error("ReadFvecs with inconsistent dimensions returned nil error")
	}
}

func TestReadIvecsRoundTrip(t *testing.T) {
	want := [][]int32{
		{3, 1, 4},
		{9, 2, 6},
	}
	path := filepath.Join(t.TempDir(), "groundtruth.ivecs")
	writeIvecs(t, path, want)

	got, err := ReadIvecs(path)
	if err != nil {
		t.Fatalf("ReadIvecs: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ReadIvecs returned %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %v, want %v", i, j, got[i][j], want[i][j])
			}
		}
	}
}
