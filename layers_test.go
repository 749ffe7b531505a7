package deskpad

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func namedText(id string) *TextObject {
	o := NewText(id, 0, 0, DefaultTextStyle())
	o.ID = id
	return o
}

func TestResolveLayerOrder(t *testing.T) {
	tests := []struct {
		name    string
		objects []string
		layers  []Layer
		want    map[string]int
	}{
		{
			name:    "top-most first",
			objects: []string{"text1", "text2"},
			layers:  []Layer{{Key: "text2", Order: 0}, {Key: "text1", Order: 1}},
			want:    map[string]int{"text2": 1, "text1": 0},
		},
		{
			name:    "empty list keeps canvas order",
			objects: []string{"a", "b", "c"},
			want:    map[string]int{"a": 0, "b": 1, "c": 2},
		},
		{
			name:    "unlisted above listed in canvas order",
			objects: []string{"x", "a", "y", "b"},
			layers:  []Layer{{Key: "a", Order: 0}, {Key: "b", Order: 1}},
			want:    map[string]int{"a": 1, "b": 0, "x": 2, "y": 3},
		},
		{
			name:    "first entry wins",
			objects: []string{"a", "b"},
			layers:  []Layer{{Key: "a", Order: 0}, {Key: "b", Order: 1}, {Key: "a", Order: 2}},
			want:    map[string]int{"a": 2, "b": 1},
		},
		{
			name:    "stale layer entries ignored",
			objects: []string{"a"},
			layers:  []Layer{{Key: "gone", Order: 0}, {Key: "a", Order: 1}},
			want:    map[string]int{"a": 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := make([]Object, len(tt.objects))
			for i, id := range tt.objects {
				objects[i] = namedText(id)
			}
			got := ResolveLayerOrder(objects, tt.layers)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolveLayerOrder() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPaintSequence(t *testing.T) {
	objects := []Object{namedText("text1"), namedText("text2"), namedText("note")}
	layers := []Layer{{Key: "text2", Order: 0}, {Key: "text1", Order: 1}}

	got := PaintSequence(objects, layers)
	want := []int{0, 1, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PaintSequence() mismatch (-want +got):\n%s", diff)
	}

	layers = []Layer{{Key: "text1", Order: 0}, {Key: "text2", Order: 1}}
	got = PaintSequence(objects, layers)
	want = []int{1, 0, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PaintSequence() reversed mismatch (-want +got):\n%s", diff)
	}
}

func TestPaintSequenceSharedKey(t *testing.T) {
	// Two unnamed rects share the key "rect_undefined" and keep canvas order.
	objects := []Object{
		NewRect(0, 0, 1, 1, ShapeStyle{}),
		namedText("t"),
		NewRect(0, 0, 2, 2, ShapeStyle{}),
	}
	layers := []Layer{{Key: "rect_undefined", Order: 0}, {Key: "t", Order: 1}}
	got := PaintSequence(objects, layers)
	want := []int{1, 0, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PaintSequence() mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectKeys(t *testing.T) {
	tests := []struct {
		obj  Object
		want string
	}{
		{&ImageObject{ImageID: "img_1", ID: "x"}, "img_1"},
		{&ImageObject{ID: "x"}, "x"},
		{&ImageObject{Name: "logo"}, "image_logo"},
		{&TextObject{}, "text_undefined"},
		{&ShapeObject{Shape: ShapeCircle, Name: "dot"}, "circle_dot"},
	}
	for _, tt := range tests {
		if got := tt.obj.Key(); got != tt.want {
			t.Errorf("%T.Key() = %q, want %q", tt.obj, got, tt.want)
		}
	}
}
