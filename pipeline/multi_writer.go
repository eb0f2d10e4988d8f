package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-venues/models"
)

// MultiWriter fans listings out to several writers in order.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter skips nil writers.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Len returns the number of wrapped writers.
func (mw *MultiWriter) Len() int {
	return len(mw.writers)
}

// Write stops at the first failing writer.
func (mw *MultiWriter) Write(listings []*models.Listing) error {
	for i, w := range mw.writers {
		if err := w.Write(listings); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every writer and joins their errors.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validate writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
