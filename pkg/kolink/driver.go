package kolink

import (
	"context"
	"fmt"
	"io"

	"github.com/kos-tools/klinker/internal/ko"
	"github.com/kos-tools/klinker/internal/ksm"
	"github.com/kos-tools/klinker/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config holds the per-link knobs a driver is constructed with.
type Config struct {
	// EntryPoint is the function name used as the link's start root for
	// an executable build. Ignored for a shared build.
	EntryPoint string
	// Shared builds a loadable library instead of an executable: _init
	// becomes required and the entry point is not a root at all.
	Shared bool
	// Log receives progress messages as the driver advances through its
	// states. Defaults to a no-op logger.
	Log *logrus.Logger
}

type moduleInput struct {
	name string
	file *ko.File
}

// Driver links a set of KO modules into one KSM file. It moves forward
// through a fixed state machine and is used once: Add every module, then
// call Link.
type Driver struct {
	state   State
	config  Config
	modules []moduleInput
}

// NewDriver creates a driver ready to accept modules.
func NewDriver(config Config) *Driver {
	if config.EntryPoint == "" {
		config.EntryPoint = "_start"
	}
	if config.Log == nil {
		config.Log = logrus.New()
		config.Log.SetOutput(io.Discard)
	}
	return &Driver{state: StateBuilding, config: config}
}

// State reports the driver's current pipeline state.
func (d *Driver) State() State { return d.state }

// Add registers an already-decoded KO module under name. name is the
// path or identifier reported in error messages; it need not be a real
// filesystem path.
func (d *Driver) Add(name string, file *ko.File) error {
	if d.state != StateBuilding {
		return errInternal("cannot add module %q: driver is past the Building state (%v)", name, d.state)
	}
	d.modules = append(d.modules, moduleInput{name: name, file: file})
	return nil
}

// AddFile reads and registers the KO module at path.
func (d *Driver) AddFile(path string) error {
	file, err := ko.ReadFile(path)
	if err != nil {
		return errIOError(path, err)
	}
	return d.Add(path, file)
}

// Link runs the full pipeline over every added module: concurrent
// ingest, resolve, reachability, and emit. On success it transitions to
// Done and returns the linked KSM file; on any failure it transitions to
// Failed and returns the error that caused it.
func (d *Driver) Link(ctx context.Context) (*ksm.File, error) {
	if d.state != StateBuilding {
		return nil, errInternal("link already attempted on this driver (state %v)", d.state)
	}
	if len(d.modules) == 0 {
		d.state = StateFailed
		return nil, errInternal("no input modules")
	}

	d.state = StateJoining
	d.config.Log.WithField("modules", len(d.modules)).Debug("ingesting input modules")

	objectData := make([]*ObjectData, len(d.modules))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range d.modules {
		i, m := i, m
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			obj, err := Ingest(m.name, m.file)
			if err != nil {
				return err
			}
			objectData[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.state = StateFailed
		return nil, err
	}

	for i, obj := range objectData {
		for _, fn := range obj.FunctionTable.byHash {
			fn.ObjectDataIndex = i
		}
		for _, fn := range obj.LocalFunctionTable.byHash {
			fn.ObjectDataIndex = i
		}
	}

	initHash := NameHash("_init")
	entryPointHash := NameHash(d.config.EntryPoint)
	if d.config.Shared {
		entryPointHash = initHash
	}

	d.state = StateResolving
	master := newMasterTables()
	for i, obj := range objectData {
		if err := resolveModule(master, obj, entryPointHash); err != nil {
			d.state = StateFailed
			return nil, fmt.Errorf("module %s: %w", d.modules[i].name, err)
		}
	}
	if err := resolveExterns(master); err != nil {
		d.state = StateFailed
		return nil, err
	}

	d.state = StateLinking
	globalByHash := make(map[uint64]*Function)
	for _, obj := range objectData {
		for _, hash := range obj.FunctionTable.hashesInOrder() {
			fn, _ := obj.FunctionTable.get(hash)
			globalByHash[hash] = fn
		}
	}

	init, start, err := findRoots(globalByHash, initHash, entryPointHash, d.config.EntryPoint, d.config.Shared)
	if err != nil {
		d.state = StateFailed
		return nil, err
	}

	r := resolveReachability(objectData, globalByHash, init, start)
	names := utils.Map(r.Order, func(fn *Function) string { return fn.Name })
	d.config.Log.WithField("count", len(names)).Debugf("reachable functions: %s", utils.FormatSlice(names, ", "))

	d.state = StateEmitting
	file, err := emitModule(r, master, objectData)
	if err != nil {
		d.state = StateFailed
		return nil, err
	}

	d.state = StateDone
	return file, nil
}
