package ollama

import (
	"iter"
)

// Fold merges a sequence of items into one. The first element error aborts
// the fold and is returned unchanged; no partial result is returned. An
// empty sequence is a KindInvalidResponse error.
func Fold[T Item[T]](seq iter.Seq2[T, error]) (T, error) {
	var (
		acc  T
		seen bool
	)

	for item, err := range seq {
		if err != nil {
			var zero T
			return zero, err
		}
		if !seen {
			acc, seen = item, true
			continue
		}
		acc = acc.Merge(item)
	}

	if !seen {
		var zero T
		return zero, &Error{Kind: KindInvalidResponse, Detail: "empty stream"}
	}
	return acc, nil
}

// Aggregate drains s and folds it into a single item. The stream is closed
// on return.
func Aggregate[T Item[T]](s *Stream[T]) (T, error) {
	defer s.Close()
	return Fold(s.All())
}
