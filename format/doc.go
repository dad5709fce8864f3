// Package format emulates the printf and scanf calls the hosted module makes.
//
// The module passes variadic arguments as a pointer to an array of 32-bit
// words, one word per conversion specifier regardless of the argument's C
// type. Args loads that array into a typed slice and hands words out in
// specifier order.
//
// Only the conversions the module actually uses are implemented:
//
//	Sprintf   %s %d %u %%, optional width (consumed, not applied)
//	Sscanf    %f %d %c %%
//
// Unknown print conversions render as an inline <!FMT:c:value!> placeholder.
// Unknown scan conversions are protocol violations.
package format
