// Package attribute implements the typed per-element attribute store and the
// transactional scope stack layered on top of it.
//
// # Columns
//
// A column holds `dimension` values of type T per element id of one primitive
// type. All columns of a primitive type share one reserved size, which only
// grows (except during consolidation):
//
//	store := attribute.NewStore()
//	pos, _ := attribute.Register(store, model.Vertex, "position", 3, 0.0)
//	store.Reserve(model.Vertex, 128)
//
// # Scopes
//
// Writes never go to the base columns directly. A worker owns a Stack and
// writes through its active Scope; values become visible outside the worker
// only when the outermost scope is popped with commit=true:
//
//	st := attribute.NewStack(store)
//	st.Push()
//	_ = attribute.Write(st, pos, 7, []float64{1, 2, 3})
//	st.Pop(false) // discarded, vertex 7 reads as before
//
// Nested Push/Pop(false) round trips are lossless.
package attribute
