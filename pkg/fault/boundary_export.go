package fault

/*
#include <stdint.h>
*/
import "C"
import "unsafe"

// get_boundary_register_preservation is the exported C ABI symbol generated
// code calls directly to locate the calling thread's
// BoundaryRegisterPreservation area.
//
//export get_boundary_register_preservation
func get_boundary_register_preservation() unsafe.Pointer {
	return unsafe.Pointer(GetBoundaryRegisterPreservation())
}
