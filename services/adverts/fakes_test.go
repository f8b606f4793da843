package adverts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
)

type fakeImageStore struct {
	mu        sync.Mutex
	uploads   []*core.Image
	deleted   []string
	url       string // returned URL; a numbered one when empty
	uploadErr error
}

func (f *fakeImageStore) Upload(ctx context.Context, img *core.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, img)
	if f.url != "" {
		return f.url, nil
	}
	return fmt.Sprintf("https://cdn/%d.jpg", len(f.uploads)), nil
}

func (f *fakeImageStore) Delete(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeImageStore) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	counts  []int
	image   []byte
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, n int) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.counts = append(f.counts, n)
	if f.err != nil {
		return nil, f.err
	}
	data := f.image
	if data == nil {
		data = []byte("generated:" + prompt)
	}
	return [][]byte{data}, nil
}

// countingStore wraps a store, counts calls and can fail or stall them.
type countingStore struct {
	core.AdvertStore

	mu        sync.Mutex
	finds     int
	inserts   int
	insertErr error

	// countBarrier, when set, stalls Count until every expected caller
	// arrived or the barrier timed out.
	countBarrier *barrier
}

func (s *countingStore) Find(ctx context.Context, f core.AdvertFilter, limit, skip int) ([]*core.Advert, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	return s.AdvertStore.Find(ctx, f, limit, skip)
}

func (s *countingStore) Count(ctx context.Context, f core.AdvertFilter) (int64, error) {
	n, err := s.AdvertStore.Count(ctx, f)
	if s.countBarrier != nil {
		s.countBarrier.wait()
	}
	return n, err
}

func (s *countingStore) Insert(ctx context.Context, a *core.Advert) (string, error) {
	s.mu.Lock()
	s.inserts++
	err := s.insertErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.AdvertStore.Insert(ctx, a)
}

func (s *countingStore) findCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

type barrier struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

func newBarrier(n int, timeout time.Duration) *barrier {
	b := &barrier{timeout: timeout}
	b.wg.Add(n)
	return b
}

// wait registers one arrival and blocks until all arrived or the timeout passed.
func (b *barrier) wait() {
	b.wg.Done()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(b.timeout):
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.AdvertEvent
}

func (p *recordingPublisher) Publish(e core.AdvertEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

var errStoreDown = errors.New("store down")
