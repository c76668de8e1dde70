package probing

import "testing"

func TestHeapScannerKeepsClosestK(t *testing.T) {
	dist := map[int]float64{0: 5, 1: 1, 2: 9, 3: 2, 4: 0.5, 5: 7}
	s := NewHeapScanner(3, func(row int) float64 { return dist[row] })
	for row := range dist {
		s.Offer(row)
	}

	results := s.Results()
	if len(results) != 3 {
		t.Fatalf("Results() returned %d neighbors, want 3", len(results))
	}
	wantOrder := []int{4, 1, 3} // distances 0.5, 1, 2
	for i, nb := range results {
		if nb.Row != wantOrder[i] {
			t.Errorf("Results()[%d].Row = %d, want %d", i, nb.Row, wantOrder[i])
		}
	}
}

func TestHeapScannerDedupesRepeatedOffers(t *testing.T) {
	calls := 0
	s := NewHeapScanner(2, func(row int) float64 {
		calls++
		return float64(row)
	})
	s.Offer(1)
	s.Offer(1)
	s.Offer(1)
	if s.Len() != 1 {
		t.Errorf("Len() = %d after repeated Offer(1), want 1", s.Len())
	}
	if calls != 1 {
		t.Errorf("metric invoked %d times for a duplicate offer, want 1", calls)
	}
}

func TestHeapScannerFewerThanK(t *testing.T) {
	s := NewHeapScanner(5, func(row int) float64 { return float64(row) })
	s.Offer(1)
	s.Offer(2)
	results := s.Results()
	if len(results) != 2 {
		t.Fatalf("Results() returned %d neighbors, want 2", len(results))
	}
}
