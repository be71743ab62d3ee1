package windowpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupBricks(t *testing.T) {
	tests := []struct {
		name      string
		pageSize  int
		mappedMem int64
		fileSize  int64

		wantBrickSize  int
		wantBrickCount int
		wantDisabled   [2]int64 // non-zero when the monitor must be notified
	}{
		{
			name:      "no memory disables mapping",
			pageSize:  9,
			mappedMem: 0,
			fileSize:  900,
		},
		{
			name:           "memory below ten records disables mapping",
			pageSize:       9,
			mappedMem:      8,
			fileSize:       900,
			wantDisabled:   [2]int64{8, 90},
			wantBrickSize:  0,
			wantBrickCount: 0,
		},
		{
			name:           "scarce memory targets a thousand bricks",
			pageSize:       9,
			mappedMem:      90,
			fileSize:       900,
			wantBrickSize:  9,
			wantBrickCount: 10000,
		},
		{
			name:           "full fit targets a thousand equally sized bricks",
			pageSize:       16,
			mappedMem:      160_000,
			fileSize:       16_000,
			wantBrickSize:  160,
			wantBrickCount: 100,
		},
		{
			name:           "scarce memory over a huge file clamps the brick count",
			pageSize:       33,
			mappedMem:      10_000_000,
			fileSize:       10_000_000_000,
			wantBrickSize:  99_990,
			wantBrickCount: 100_000,
		},
		{
			name:          "empty file sizes bricks from memory alone",
			pageSize:      16,
			mappedMem:     1_600,
			fileSize:      0,
			wantBrickSize: 16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := &recordingMonitor{}
			ch := newTestChannel(t, tt.fileSize)

			p, err := New("sizing", tt.pageSize, ch,
				WithMappedMemory(tt.mappedMem),
				WithMonitor(monitor),
			)
			require.NoError(t, err)
			defer p.Close()

			stats := p.Stats()
			assert.Equal(t, tt.wantBrickSize, stats.BrickSize)
			assert.Equal(t, tt.wantBrickCount, stats.BrickCount)
			if stats.BrickSize > 0 {
				assert.Zero(t, stats.BrickSize%tt.pageSize, "brick size must be a multiple of the record size")
			}

			monitor.mu.Lock()
			defer monitor.mu.Unlock()
			assert.Equal(t, 1, monitor.statusCalls)
			if tt.wantDisabled != [2]int64{} {
				require.Len(t, monitor.insufficientCalls, 1)
				assert.Equal(t, tt.wantDisabled, monitor.insufficientCalls[0])
				assert.Zero(t, stats.AvailableMem)
			} else {
				assert.Empty(t, monitor.insufficientCalls)
			}
		})
	}
}

func TestSetupBricks_StatisticsReportedOnClose(t *testing.T) {
	monitor := &recordingMonitor{}
	ch := newTestChannel(t, 0)

	p, err := New("status", 16, ch, WithMonitor(monitor))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	assert.Equal(t, 1, monitor.statisticsCalls)
}

func TestBrickFactoryInjection(t *testing.T) {
	var created []int
	factory := func(index int) *BrickElement {
		created = append(created, index)
		return NewBrickElement(index)
	}

	ch := newTestChannel(t, 16_000)
	p, err := New("factory", 16, ch,
		WithMappedMemory(160_000),
		WithBrickFactory(factory),
	)
	require.NoError(t, err)
	defer p.Close()

	assert.Len(t, created, p.Stats().BrickCount)
}
