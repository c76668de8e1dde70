package lsh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Save writes the index to path in the bit-exact persisted format: a
// little-endian header of (M, L, D, N, S) as 32-bit unsigned ints (I is
// not persisted), followed by, for each table: the N-entry rnd array, a
// bucket count, each bucket's (id, length, members) in whatever order the
// table's map iterates, and finally the table's N x D basis as row-major
// float32. The index must be Trained or Populated.
func (idx *Index) Save(path string) error {
	if idx.state != StateTrained && idx.state != StatePopulated {
		return fmt.Errorf("%w: Save requires a trained index, got %s", ErrState, idx.state)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := idx.writeTo(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (idx *Index) writeTo(w io.Writer) error {
	header := []uint32{idx.params.M, idx.params.L, idx.params.D, idx.params.N, idx.params.S}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("%w: writing header: %v", ErrIO, err)
		}
	}

	for i := 0; i < int(idx.params.L); i++ {
		for _, v := range idx.rnd[i] {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return fmt.Errorf("%w: writing rnd[%d]: %v", ErrIO, i, err)
			}
		}

		table := idx.tables[i]
		if err := binary.Write(w, binary.LittleEndian, uint32(len(table))); err != nil {
			return fmt.Errorf("%w: writing bucket count for table %d: %v", ErrIO, i, err)
		}
		for bid, members := range table {
			if err := binary.Write(w, binary.LittleEndian, bid); err != nil {
				return fmt.Errorf("%w: writing bucket id in table %d: %v", ErrIO, i, err)
			}
			if err := binary.Write(w, binary.LittleEndian, uint32(len(members))); err != nil {
				return fmt.Errorf("%w: writing bucket length in table %d: %v", ErrIO, i, err)
			}
			for _, m := range members {
				if err := binary.Write(w, binary.LittleEndian, uint32(m)); err != nil {
					return fmt.Errorf("%w: writing member in table %d: %v", ErrIO, i, err)
				}
			}
		}

		basis := idx.hasher.Basis(i)
		for _, row := range basis {
			for _, f := range row {
				if err := binary.Write(w, binary.LittleEndian, f); err != nil {
					return fmt.Errorf("%w: writing basis for table %d: %v", ErrIO, i, err)
				}
			}
		}
	}
	return nil
}

// Load reads an index previously written by Save. If the file cannot be
// opened, the index is left unchanged. If its contents cannot be read or
// parsed, the index is set to the Empty state; a partially-read target is
// never exposed. Load transitions Empty -> Populated directly.
func (idx *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	loaded, err := readFrom(bufio.NewReader(f))
	if err != nil {
		idx.state = StateEmpty
		return err
	}
	*idx = *loaded
	return nil
}

func readFrom(r io.Reader) (*Index, error) {
	var header [5]uint32
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("%w: reading header: %v", ErrIO, err)
		}
	}
	p := Parameter{M: header[0], L: header[1], D: header[2], N: header[3], S: header[4]}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: persisted parameters invalid: %v", ErrFormat, err)
	}

	idx := &Index{params: p}
	idx.tables = make([]map[uint64][]int, p.L)
	idx.rnd = make([][]uint32, p.L)
	bases := make([][][]float32, p.L)

	n, d := int(p.N), int(p.D)
	for i := 0; i < int(p.L); i++ {
		rnd := make([]uint32, n)
		for j := range rnd {
			if err := binary.Read(r, binary.LittleEndian, &rnd[j]); err != nil {
				return nil, fmt.Errorf("%w: reading rnd[%d]: %v", ErrIO, i, err)
			}
		}
		idx.rnd[i] = rnd

		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, fmt.Errorf("%w: reading bucket count for table %d: %v", ErrIO, i, err)
		}
		table := make(map[uint64][]int, count)
		for b := uint32(0); b < count; b++ {
			var bid uint64
			if err := binary.Read(r, binary.LittleEndian, &bid); err != nil {
				return nil, fmt.Errorf("%w: reading bucket id in table %d: %v", ErrIO, i, err)
			}
			var length uint32
			if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
				return nil, fmt.Errorf("%w: reading bucket length in table %d: %v", ErrIO, i, err)
			}
			members := make([]int, length)
			for m := uint32(0); m < length; m++ {
				var row uint32
				if err := binary.Read(r, binary.LittleEndian, &row); err != nil {
					return nil, fmt.Errorf("%w: reading member in table %d: %v", ErrIO, i, err)
				}
				members[m] = int(row)
			}
			table[bid] = members
		}
		idx.tables[i] = table

		basis := make([][]float32, n)
		for row := 0; row < n; row++ {
			vec := make([]float32, d)
			for col := 0; col < d; col++ {
				if err := binary.Read(r, binary.LittleEndian, &vec[col]); err != nil {
					return nil, fmt.Errorf("%w: reading basis for table %d: %v", ErrIO, i, err)
				}
			}
			basis[row] = vec
		}
		bases[i] = basis
	}

	hasher, err := NewHasher(bases, n, d)
	if err != nil {
		return nil, err
	}
	idx.hasher = hasher
	idx.state = StatePopulated
	return idx, nil
}

