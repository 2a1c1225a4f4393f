package source

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/JamesPrial/custom-gateway-core/internal/codec"
	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// seedBatchSize bounds how many items are stored per PutItems call
const seedBatchSize = 500

// Seed stores the items of a captured import stream: one PerformImport
// response JSON object per line, as printed by gateway-probe. Log messages
// are skipped. It returns the number of stored items.
func Seed(ctx context.Context, backend Backend, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		batch  []insights.Item
		stored int
		line   int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := backend.PutItems(ctx, batch); err != nil {
			return err
		}
		stored += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var resp wire.PerformImportResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return stored, errors.Wrapf(err, errors.ErrCodeTransportUnmarshal, "line %d: %v", line, err)
		}
		item, err := codec.DecodeItem(&resp)
		if err != nil {
			return stored, errors.Wrapf(err, errors.ErrCodeInvalidItem, "line %d: %s", line, errors.GetMessage(err))
		}
		if _, isLog := item.(insights.Log); isLog {
			continue
		}

		batch = append(batch, item)
		if len(batch) == seedBatchSize {
			if err := flush(); err != nil {
				return stored, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stored, errors.Wrap(err, errors.ErrCodeTransportUnmarshal, "failed to read seed")
	}

	return stored, flush()
}
