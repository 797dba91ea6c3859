package entityset

import (
	"context"
	"fmt"

	"github.com/roach88/bindery/internal/entity"
	"github.com/roach88/bindery/internal/transport"
)

// URL returns the set's sync URL, which members without a URL root inherit.
func (s *Set) URL() (string, error) {
	if s.config.URL == "" {
		return "", entity.ErrURLRequired
	}
	return s.config.URL, nil
}

// Syncer returns the set's transport, which members without their own
// inherit.
func (s *Set) Syncer() transport.Syncer { return s.config.Sync }

// Fetch reads the set from its transport and sets the parsed response, or
// resets to it when opts.Reset. Parsing is on unless opts.SkipParse.
func (s *Set) Fetch(ctx context.Context, opts *entity.Options) (*transport.Response, error) {
	opts = opts.Clone()
	opts.Parse = !opts.SkipParse

	req, err := entity.NewRequest(transport.Read, s, opts, nil)
	if err != nil {
		return nil, err
	}
	resp, err := entity.Send(ctx, s, req, opts)
	if err != nil {
		return resp, entity.Fail(s, resp, opts, err)
	}

	if opts.Reset {
		s.Reset(resp.JSON, opts)
	} else {
		s.Set(resp.JSON, opts)
	}
	entity.Succeed(s, resp, opts)
	return resp, nil
}

// Create materializes item as a member and saves it. The new entity is added
// right away unless opts.Wait, in which case it is added once the server
// confirms. An item failing validation is neither added nor sent.
func (s *Set) Create(ctx context.Context, item any, opts *entity.Options) (*entity.Entity, *transport.Response, error) {
	opts = opts.Clone()
	m, err := s.prepare(item, opts)
	if m == nil {
		return nil, nil, fmt.Errorf("%w: %w", entity.ErrInvalid, err)
	}

	if !opts.Wait {
		s.Add(m, opts)
	}

	success := opts.Success
	opts.Success = func(target any, resp *transport.Response, cbOpts *entity.Options) {
		if opts.Wait {
			s.Add(target, cbOpts)
		}
		if success != nil {
			success(target, resp, cbOpts)
		}
	}

	resp, err := m.Save(ctx, nil, opts)
	return m, resp, err
}
