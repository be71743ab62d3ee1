package windowpool

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// HeatProfile is a diagnostic snapshot of per-brick demand, taken for offline
// analysis of access patterns and mapping decisions.
type HeatProfile struct {
	StoreName  string      `json:"store_name"`
	CapturedAt time.Time   `json:"captured_at"`
	PageSize   int         `json:"page_size"`
	BrickSize  int         `json:"brick_size"`
	BrickCount int         `json:"brick_count"`
	MemUsed    int64       `json:"mem_used"`
	Bricks     []BrickHeat `json:"bricks"`
}

// BrickHeat is one brick's entry in a HeatProfile.
type BrickHeat struct {
	Index  int   `json:"index"`
	Hit    int64 `json:"hit"`
	Mapped bool  `json:"mapped"`
}

// WriteHeatProfile writes a zstd-compressed JSON heat profile of the pool to
// w. Demand counters are read without stopping traffic, so the snapshot is
// approximate.
func (p *Pool) WriteHeatProfile(w io.Writer) error {
	bricks := *p.bricks.Load()

	p.mu.Lock()
	profile := HeatProfile{
		StoreName:  p.storeName,
		CapturedAt: time.Now().UTC(),
		PageSize:   p.pageSize,
		BrickSize:  p.brickSize,
		BrickCount: p.brickCount,
		MemUsed:    p.memUsed,
		Bricks:     make([]BrickHeat, 0, len(bricks)),
	}
	p.mu.Unlock()

	for _, be := range bricks {
		profile.Bricks = append(profile.Bricks, BrickHeat{
			Index:  be.Index(),
			Hit:    be.Hit(),
			Mapped: be.getWindow() != nil,
		})
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("windowpool: create heat profile writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(profile); err != nil {
		enc.Close()
		return fmt.Errorf("windowpool: encode heat profile: %w", err)
	}
	return enc.Close()
}

// ReadHeatProfile decodes a profile previously written by WriteHeatProfile.
func ReadHeatProfile(r io.Reader) (*HeatProfile, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("windowpool: open heat profile reader: %w", err)
	}
	defer dec.Close()

	var profile HeatProfile
	if err := json.NewDecoder(dec).Decode(&profile); err != nil {
		return nil, fmt.Errorf("windowpool: decode heat profile: %w", err)
	}
	return &profile, nil
}
