// Package ordering holds the pure rules behind card and column positions:
// the WIP admission predicate, index clamping and list reinsertion.
// Everything here is side-effect free so the store and the client
// snapshot share exactly the same arithmetic.
package ordering

// CanAdmit reports whether a column with the given WIP limit may hold
// proposedCount cards. A limit of 0 means unlimited.
func CanAdmit(wipLimit, proposedCount int) bool {
	return wipLimit == 0 || proposedCount <= wipLimit
}

// Clamp bounds a requested insertion index for a list that will hold n
// items after the insert. Negative indexes go to the front and anything
// past the end appends.
func Clamp(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	if index > n-1 {
		return n - 1
	}
	return index
}

// Reorder moves the element at from to index to (clamped), shifting the
// elements in between. It returns a new slice and leaves items untouched.
func Reorder[T any](items []T, from, to int) []T {
	out := make([]T, 0, len(items))
	if from < 0 || from >= len(items) {
		return append(out, items...)
	}
	moved := items[from]
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	return Insert(out, moved, to)
}

// Insert places item at index (clamped to append) and returns a new slice
func Insert[T any](items []T, item T, index int) []T {
	index = Clamp(index, len(items)+1)
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:index]...)
	out = append(out, item)
	return append(out, items[index:]...)
}

// Remove drops the element at index and returns a new slice
func Remove[T any](items []T, index int) []T {
	if index < 0 || index >= len(items) {
		return append([]T(nil), items...)
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:index]...)
	return append(out, items[index+1:]...)
}

// Dense reports whether positions is exactly {0..n-1} in order
func Dense(positions []int) bool {
	for i, p := range positions {
		if p != i {
			return false
		}
	}
	return true
}
