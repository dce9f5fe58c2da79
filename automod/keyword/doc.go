// Helpers for matching free-form message text against term lists, with unicode folding.
package keyword
