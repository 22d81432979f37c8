package pipeline

import (
	"errors"
	"sync"

	"github.com/aluiziolira/go-scrape-tyres/models"
	"github.com/aluiziolira/go-scrape-tyres/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after Flush.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter persists the records of one chain under a file name stem.
type OutputWriter interface {
	Write(stem string, entries []*models.ResultEntry) ([]string, error)
}

// Pipeline accumulates the records of exactly one chain. It is created when
// the chain starts, grows page by page and is flushed once at Done.
type Pipeline struct {
	writer OutputWriter

	mu      sync.Mutex
	entries []*models.ResultEntry
	closed  bool
}

// NewPipeline builds an empty accumulator writing through writer.
func NewPipeline(writer OutputWriter) *Pipeline {
	return &Pipeline{writer: writer}
}

// Process validates and appends entries in page order. The first invalid
// entry aborts the call; entries before it are kept.
func (p *Pipeline) Process(entries ...*models.ResultEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}
	for _, entry := range entries {
		if err := parser.ValidateEntry(entry); err != nil {
			return err
		}
		p.entries = append(p.entries, entry)
	}
	return nil
}

// Len returns the number of accumulated records.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Flush writes every record under stem and closes the pipeline. An empty
// accumulator is a persistence failure, never an empty file.
func (p *Pipeline) Flush(stem string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPipelineClosed
	}
	p.closed = true

	if len(p.entries) == 0 {
		return nil, models.Errorf(models.KindPersistence, "", "no records to write for %s", stem)
	}
	files, err := p.writer.Write(stem, p.entries)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	return files, nil
}

func wrapPersistence(err error) error {
	if models.IsKind(err, models.KindPersistence) {
		return err
	}
	return models.NewError(models.KindPersistence, "", "write output", err)
}
