package deskpad

import "sort"

// Layer is one entry of the editor's layer panel. Order 0 is the top-most
// layer.
type Layer struct {
	Key   string
	Order int
}

// ResolveLayerOrder maps every object key to its paint order, where a lower
// paint order is painted first.
//
// A listed key gets maxOrder − order. Keys missing from the list are painted
// above everything listed, in input order. With an empty list, paint order
// is the input order.
//
// Objects sharing a key share a paint order; PaintSequence keeps them in
// input order.
func ResolveLayerOrder(objects []Object, layers []Layer) map[string]int {
	orders := make(map[string]int, len(objects))
	if len(layers) == 0 {
		for i, obj := range objects {
			if _, ok := orders[obj.Key()]; !ok {
				orders[obj.Key()] = i
			}
		}
		return orders
	}

	maxOrder := layers[0].Order
	for _, l := range layers[1:] {
		maxOrder = max(maxOrder, l.Order)
	}

	listed := make(map[string]int, len(layers))
	for _, l := range layers {
		// The first entry for a key wins.
		if _, ok := listed[l.Key]; !ok {
			listed[l.Key] = l.Order
		}
	}

	next := maxOrder
	for _, obj := range objects {
		key := obj.Key()
		if order, ok := listed[key]; ok {
			orders[key] = maxOrder - order
			next = max(next, maxOrder-order)
		}
	}
	for _, obj := range objects {
		key := obj.Key()
		if _, ok := orders[key]; !ok {
			next++
			orders[key] = next
		}
	}
	return orders
}

// PaintSequence returns the indexes of objects in paint order: ascending by
// ResolveLayerOrder, ties in input order.
func PaintSequence(objects []Object, layers []Layer) []int {
	orders := ResolveLayerOrder(objects, layers)
	seq := make([]int, len(objects))
	for i := range seq {
		seq[i] = i
	}
	sort.SliceStable(seq, func(a, b int) bool {
		return orders[objects[seq[a]].Key()] < orders[objects[seq[b]].Key()]
	})
	return seq
}
