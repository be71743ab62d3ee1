package windowpool

// Monitor receives advisory callbacks about pool statistics, status and
// allocation errors. Implement this interface to integrate with monitoring
// systems; all callbacks must be cheap and non-blocking.
type Monitor interface {
	// RecordStatistics is called when the pool dumps its counters, typically
	// at close.
	RecordStatistics(storeName string, hit, miss, switches, ooe int64)

	// RecordStatus is called once at construction with the outcome of brick
	// sizing.
	RecordStatus(storeName string, brickCount, brickSize int, availableMem, size int64)

	// AllocationError is called when memory mapping a brick fails; the pool
	// recovers locally by leaving the brick unmapped. Failures of plain-window
	// buffer allocation or loading are not reported here.
	AllocationError(storeName string, cause error, description string)

	// InsufficientMemoryForMapping is called once at setup when the
	// configured memory is too small to map anything at all.
	InsufficientMemoryForMapping(availableMem, wantedMem int64)
}

// NoopMonitor is a Monitor that ignores all callbacks.
// Use this when monitoring is not needed.
type NoopMonitor struct{}

func (NoopMonitor) RecordStatistics(string, int64, int64, int64, int64) {}
func (NoopMonitor) RecordStatus(string, int, int, int64, int64)        {}
func (NoopMonitor) AllocationError(string, error, string)              {}
func (NoopMonitor) InsufficientMemoryForMapping(int64, int64)          {}
