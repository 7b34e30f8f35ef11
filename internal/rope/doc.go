// Package rope implements Document, an index-addressed rope of non-owning
// string views.
//
// A Document is an arena of slots linked into a doubly linked list. Each
// slot holds a string that aliases bytes owned elsewhere (the template
// source, a literal, a resolved data value); the Document never copies or
// owns text. Splitting, inserting and erasing are O(1) and never move the
// text of unrelated slots, which lets a parser pin a directive occurrence to
// a slot and rewrite it later while the rest of the document stays put.
//
// Slots are addressed by Handle, an (index, generation) pair. An erased slot
// goes back to the free list and its generation is bumped when it is reused,
// so every handle to its previous life is detected as stale. Passing a
// stale or nil handle to any operation is a contract violation and panics
// with a *errors.TplError of type contract.
//
// Search operations never find a needle that straddles two slots. This is
// intentional: directive scanning always runs over a single slot's text.
package rope
