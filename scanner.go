package rttiscanner

import (
	"context"
	"fmt"

	"github.com/apex/log"
)

// Scanner searches every readable region of a target
type Scanner struct {
	target Target
}

// NewScanner creates a new memory scanner for an opened target
func NewScanner(target Target) *Scanner {
	return &Scanner{target: target}
}

// Close closes the underlying target
func (s *Scanner) Close() error {
	return s.target.Close()
}

// Scan scans the target memory for the specified pattern
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) error {
	pattern, err := ParsePattern(opts.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	if opts.Handler == nil {
		return fmt.Errorf("no match handler")
	}

	regions, err := s.target.Regions()
	if err != nil {
		return fmt.Errorf("failed to enumerate regions: %w", err)
	}

	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	for _, region := range regions {
		// Check if context was cancelled
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		begin, end := region.Base, region.End()
		if begin < opts.MinAddress {
			begin = opts.MinAddress
		}
		if opts.MaxAddress != 0 && end > opts.MaxAddress {
			end = opts.MaxAddress
		}
		if end <= begin {
			continue
		}

		log.WithFields(log.Fields{
			"base": begin,
			"size": uint64(end - begin),
		}).Debug("Scanning region")

		for _, addr := range RemoteSearchPattern(s.target, begin, uint64(end-begin), pageSize, pattern, false) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			// Extract matched data
			matchedData := make([]byte, pattern.Len())
			if err := s.target.ReadMemory(addr, matchedData); err != nil {
				continue
			}

			if !opts.Handler(Match{Address: addr, Data: matchedData}) {
				return nil
			}
		}
	}

	return nil
}
