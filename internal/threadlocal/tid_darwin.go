//go:build darwin

package threadlocal

/*
#include <pthread.h>
*/
import "C"

func currentTID() int32 {
	var tid C.uint64_t
	C.pthread_threadid_np(nil, &tid)
	return int32(tid)
}
