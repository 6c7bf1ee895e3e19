// Package xmltext owns stateless helpers over complete in-memory fragments.
//
// Ownership boundary:
// - entity encode/decode
// - start-tag location and tag value extraction
// - tag attribute extraction
//
// None of these helpers validate XML. Nested same-named tags are not
// handled and absent tags yield defaults rather than errors.
package xmltext
