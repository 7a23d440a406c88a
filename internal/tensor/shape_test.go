package tensor

import "testing"

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{2, 3}, 6},
		{Shape{1}, 1},
		{Shape{4, 10, 1, 64, 64}, 163840},
		{Shape{}, 0},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("NumElements(%v) = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	if len(strides) != len(want) {
		t.Fatalf("strides = %v, want %v", strides, want)
	}
	for i := range want {
		if strides[i] != want[i] {
			t.Errorf("strides[%d] = %d, want %d", i, strides[i], want[i])
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b    Shape
		want    Shape
		needsBC bool
		ok      bool
	}{
		{Shape{2, 3}, Shape{2, 3}, Shape{2, 3}, false, true},
		{Shape{4, 96, 16, 16}, Shape{96, 16, 16}, Shape{4, 96, 16, 16}, true, true},
		{Shape{2, 1, 4}, Shape{2, 3, 1}, Shape{2, 3, 4}, true, true},
		{Shape{1, 4, 1, 1}, Shape{2, 4, 16, 16}, Shape{2, 4, 16, 16}, true, true},
		{Shape{2, 3}, Shape{4, 3}, nil, false, false},
	}
	for _, tt := range tests {
		got, needsBC, err := BroadcastShapes(tt.a, tt.b)
		if tt.ok && err != nil {
			t.Errorf("BroadcastShapes(%v, %v): %v", tt.a, tt.b, err)
			continue
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("BroadcastShapes(%v, %v): expected error, got %v", tt.a, tt.b, got)
			}
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("BroadcastShapes(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if needsBC != tt.needsBC {
			t.Errorf("BroadcastShapes(%v, %v) needsBroadcast = %v, want %v", tt.a, tt.b, needsBC, tt.needsBC)
		}
	}
}

func TestRawTensorCopyOnWrite(t *testing.T) {
	raw, err := NewRaw(Shape{2, 2}, Float32, CPU)
	if err != nil {
		t.Fatal(err)
	}
	if !raw.IsUnique() {
		t.Fatal("fresh tensor should own its buffer")
	}
	release := raw.ForceNonUnique()
	if raw.IsUnique() {
		t.Error("pinned tensor should report shared buffer")
	}
	release()
	if !raw.IsUnique() {
		t.Error("released tensor should be unique again")
	}
}
