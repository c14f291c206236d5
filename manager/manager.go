// Package manager provides high-level orchestration using
// the fetch/compute/execute pattern.
//
// Every operation opens its own transport through the Dialer, performs
// one request or dump, and closes it again. Flush is the exception: it
// holds a second transport for the deletes it issues while the dump on
// the first one is still being consumed.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mdlayher/netlink"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/codec"
	"github.com/frobware/go-nexthop/compute"
	"github.com/frobware/go-nexthop/interpreter"
)

// ErrNotFound is returned by Get and BucketGet when the kernel replies
// without a record.
var ErrNotFound = errors.New("nexthop not found")

// Manager orchestrates nexthop operations using fetch/compute/execute.
type Manager struct {
	codec  *codec.Codec
	dialer interpreter.Dialer
	logger *slog.Logger
}

// New creates a new Manager.
func New(c *codec.Codec, dialer interpreter.Dialer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		codec:  c,
		dialer: dialer,
		logger: WithOpIDHandler(logger).With("component", "manager"),
	}
}

// Codec returns the codec used to build requests.
func (m *Manager) Codec() *codec.Codec {
	return m.codec
}

// Add installs n. It fails if a nexthop with the same id exists.
func (m *Manager) Add(ctx context.Context, n nexthop.Nexthop) error {
	return m.install(ctx, n, false)
}

// Replace installs n, overwriting any nexthop with the same id.
func (m *Manager) Replace(ctx context.Context, n nexthop.Nexthop) error {
	return m.install(ctx, n, true)
}

func (m *Manager) install(ctx context.Context, n nexthop.Nexthop, replace bool) error {
	ctx = beginOp(ctx)

	// COMPUTE
	if err := n.Validate(); err != nil {
		return err
	}
	a := compute.CreateAction(n, replace)

	verb := "add"
	if replace {
		verb = "replace"
	}

	// EXECUTE
	return m.withTransport(ctx, func(t interpreter.Transport) error {
		if err := interpreter.NewExecutor(m.codec, t).Execute(ctx, a); err != nil {
			return fmt.Errorf("%s nexthop %d: %w", verb, n.ID, err)
		}
		m.logger.InfoContext(ctx, "installed nexthop", "id", n.ID, "replace", replace, "action", n.Action)
		return nil
	})
}

// Delete removes the nexthop with the given id.
func (m *Manager) Delete(ctx context.Context, id nexthop.ID) error {
	ctx = beginOp(ctx)
	return m.withTransport(ctx, func(t interpreter.Transport) error {
		if err := m.deleteOn(ctx, interpreter.NewExecutor(m.codec, t), id); err != nil {
			return fmt.Errorf("delete nexthop %d: %w", id, err)
		}
		m.logger.InfoContext(ctx, "deleted nexthop", "id", id)
		return nil
	})
}

// Get fetches one nexthop by id.
func (m *Manager) Get(ctx context.Context, id nexthop.ID, family nexthop.Family) (nexthop.Nexthop, error) {
	ctx = beginOp(ctx)

	req, err := m.codec.GetNexthop(id, family)
	if err != nil {
		return nexthop.Nexthop{}, err
	}

	var n nexthop.Nexthop
	err = m.withTransport(ctx, func(t interpreter.Transport) error {
		msgs, err := t.Execute(ctx, req)
		if err != nil {
			return fmt.Errorf("get nexthop %d: %w", id, err)
		}
		if len(msgs) == 0 {
			return fmt.Errorf("get nexthop %d: %w", id, ErrNotFound)
		}
		n, err = m.codec.DecodeNexthop(msgs[0])
		return err
	})
	return n, err
}

// List dumps the nexthops selected by sel. Records are returned in the
// order the kernel sent them. If the dump fails part way, the records
// decoded before the failure are returned with the error.
func (m *Manager) List(ctx context.Context, family nexthop.Family, sel nexthop.Selector) ([]nexthop.Nexthop, error) {
	ctx = beginOp(ctx)

	// FETCH
	f := codec.NexthopFilter(sel)
	req, err := m.codec.DumpNexthops(family, f)
	if err != nil {
		return nil, err
	}

	var all []nexthop.Nexthop
	err = m.withTransport(ctx, func(t interpreter.Transport) error {
		return t.Dump(ctx, req, func(msg netlink.Message) error {
			n, err := m.codec.DecodeNexthop(msg)
			if err != nil {
				return err
			}
			all = append(all, n)
			return nil
		})
	})

	// COMPUTE
	selected := compute.FilterNexthops(all, f.Match)
	if err != nil {
		return selected, fmt.Errorf("dump nexthops: %w", err)
	}
	m.logger.DebugContext(ctx, "listed nexthops", "dumped", len(all), "selected", len(selected))
	return selected, nil
}

func (m *Manager) deleteOn(ctx context.Context, exec interpreter.ActionExecutor, id nexthop.ID) error {
	a, ok := compute.FlushAction(nexthop.Nexthop{ID: id}, nexthop.Selector{})
	if !ok {
		return &nexthop.UsageError{Arg: id.String(), Reason: "invalid id value"}
	}
	return exec.Execute(ctx, a)
}

func (m *Manager) withTransport(ctx context.Context, fn func(interpreter.Transport) error) error {
	t, err := m.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer t.Close()
	return fn(t)
}
