package download

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
)

// Progress is a point-in-time view of a Download.
type Progress struct {
	State        string `json:"state"`
	Rate         int64  `json:"rate"`
	Completed    uint32 `json:"completed"`
	NumPieces    uint32 `json:"num_pieces"`
	Done         int64  `json:"done"`
	Total        int64  `json:"total"`
	Downloaded   int64  `json:"downloaded"`
	Corrupted    int64  `json:"corrupted"`
	Peers        int    `json:"peers"`
	Unobtainable int    `json:"unobtainable"`
}

func (d *Download) Progress() Progress {
	completed := d.bm.Count()

	var done int64
	if completed != 0 {
		if !d.bm.Get(d.m.NumPieces - 1) {
			done = int64(completed) * d.m.PieceLength
		} else {
			done = int64(completed-1)*d.m.PieceLength + d.m.LastPieceSize
		}
	}

	d.um.Lock()
	unobtainable := len(d.unobtainable)
	d.um.Unlock()

	return Progress{
		State:        State(d.state.Load()).String(),
		Rate:         d.ioDown.Status().CurRate,
		Completed:    completed,
		NumPieces:    d.m.NumPieces,
		Done:         done,
		Total:        d.m.TotalLength,
		Downloaded:   d.downloaded.Load(),
		Corrupted:    d.corrupted.Load(),
		Peers:        d.conn.Size(),
		Unobtainable: unobtainable,
	}
}

func (d *Download) report(ctx context.Context) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := d.Progress()
			d.log.Info().
				Str("done", humanize.IBytes(uint64(p.Done))).
				Str("total", humanize.IBytes(uint64(p.Total))).
				Str("rate", humanize.IBytes(uint64(p.Rate))+"/s").
				Uint32("pieces", p.Completed).
				Int("peers", p.Peers).
				Msgf("%.1f%%", float64(p.Done*1000/max(p.Total, 1))/10)
		}
	}
}
