//go:build !linux

package mapreduce

// checkAppendAtomic has no filesystem probe outside Linux.
func checkAppendAtomic(int, string) error { return nil }
