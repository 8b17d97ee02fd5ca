package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestChunkRange(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		chunkSize int
		want      [][2]int
	}{
		{name: "empty", total: 0, chunkSize: 3},
		{name: "exact", total: 6, chunkSize: 3, want: [][2]int{{0, 3}, {3, 6}}},
		{name: "remainder", total: 7, chunkSize: 3, want: [][2]int{{0, 3}, {3, 6}, {6, 7}}},
		{name: "no chunk size", total: 4, chunkSize: 0, want: [][2]int{{0, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got [][2]int
			err := ChunkRange(tt.total, tt.chunkSize, func(start, end int) error {
				got = append(got, [2]int{start, end})
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("windows = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkRangeStopsOnError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := ChunkRange(10, 2, func(start, end int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}
