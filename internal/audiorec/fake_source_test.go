package audiorec

import "context"

// fakeSource is a synthetic Source used in tests, returning silence.
type fakeSource struct{}

func (fakeSource) ReadChunk(ctx context.Context, n int) ([]int16, error) {
	return make([]int16, n), nil
}

func (fakeSource) Close() error { return nil }
